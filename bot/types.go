package bot

import (
	"fmt"
	"strings"
	"time"
)

// Candidate is one search result returned by the remote provider.
type Candidate struct {
	ID           string
	Title        string
	Uploader     string
	Duration     int // seconds, 0 when the provider does not report it
	ThumbnailURL string
}

// NormalizedTitle is the (artist, title) pair derived from a raw provider title.
type NormalizedTitle struct {
	Artist string
	Title  string
}

// String joins the pair the way provider titles are usually written.
func (n NormalizedTitle) String() string {
	return n.Artist + " - " + n.Title
}

// QualityTier is the per-user bitrate preference class.
type QualityTier string

const (
	QualityHigh   QualityTier = "high"
	QualityMedium QualityTier = "medium"
	QualityLow    QualityTier = "low"
)

// DefaultQuality is used when a user never picked a tier.
const DefaultQuality = QualityHigh

// QualityTiers lists the tiers in display order.
var QualityTiers = []QualityTier{QualityHigh, QualityMedium, QualityLow}

func (q QualityTier) String() string {
	return string(q)
}

// Valid reports whether q is a known tier.
func (q QualityTier) Valid() bool {
	switch q {
	case QualityHigh, QualityMedium, QualityLow:
		return true
	default:
		return false
	}
}

// ParseQuality converts a string to a QualityTier.
func ParseQuality(s string) (QualityTier, error) {
	q := QualityTier(strings.ToLower(strings.TrimSpace(s)))
	if !q.Valid() {
		return DefaultQuality, fmt.Errorf("unknown quality tier: %s", s)
	}
	return q, nil
}

// CacheEntry maps a candidate to an artifact already delivered through the transport.
type CacheEntry struct {
	CandidateID string
	FileRef     string // reusable transport reference (Telegram file_id)
	ThumbRef    string
	Title       string
	Artist      string
	Duration    int
	Quality     QualityTier
	FromUserID  int64
	FromChatID  int64
	CreatedAt   time.Time
}

// UserSettings represents user preferences for the bot.
type UserSettings struct {
	ID        uint
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    int64
	Quality   QualityTier
}

// Target addresses where a delivery should land.
// InlineMessageID is set when the request came from an inline result; ChatID then
// names the chat used to upload the file before the inline message is edited.
type Target struct {
	ChatID          int64
	ReplyTo         int
	InlineMessageID string
}

// IsInline reports whether the target is an inline message.
func (t Target) IsInline() bool {
	return t.InlineMessageID != ""
}
