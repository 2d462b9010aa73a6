package handler

import (
	"context"
	"strings"
	"sync"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/acquire"
	"github.com/liuran001/TubeBot-Go/bot/cache"
	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/mymmrac/telego"
)

func textMessage(chatType string, chatID, userID int64, text string) *telego.Message {
	msg := &telego.Message{
		MessageID: 10,
		From:      &telego.User{ID: userID, FirstName: "Tester", Username: "tester"},
		Chat:      telego.Chat{ID: chatID, Type: chatType},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []telego.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

func messageUpdate(chatType string, chatID, userID int64, text string) *telego.Update {
	return &telego.Update{Message: textMessage(chatType, chatID, userID, text)}
}

// callbackUpdate builds a button press on a list message that replies to message 5.
func callbackUpdate(chatType string, chatID, userID int64, data string) *telego.Update {
	return &telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:   "cb-1",
		From: telego.User{ID: userID, FirstName: "Tester"},
		Message: &telego.Message{
			MessageID:      20,
			Chat:           telego.Chat{ID: chatID, Type: chatType},
			ReplyToMessage: &telego.Message{MessageID: 5, Chat: telego.Chat{ID: chatID, Type: chatType}},
		},
		Data: data,
	}}
}

func inlineCallbackUpdate(userID int64, inlineMessageID, data string) *telego.Update {
	return &telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:              "cb-2",
		From:            telego.User{ID: userID, FirstName: "Tester"},
		InlineMessageID: inlineMessageID,
		Data:            data,
	}}
}

type stubFinder struct {
	options []dispatch.Option
	err     error

	mu      sync.Mutex
	queries []string
}

func (s *stubFinder) Find(ctx context.Context, requesterID int64, query string) ([]dispatch.Option, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return s.options, s.err
}

type stubSelector struct {
	err    error
	joined bool
	cancel context.CancelFunc // called mid-acquisition, before err is returned

	mu         sync.Mutex
	selections []dispatch.Selection
}

func (s *stubSelector) Select(ctx context.Context, sel dispatch.Selection) (dispatch.Outcome, error) {
	s.mu.Lock()
	s.selections = append(s.selections, sel)
	s.mu.Unlock()
	if sel.OnStage != nil {
		sel.OnStage(acquire.StageDownloading)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.err != nil {
		return dispatch.Outcome{}, s.err
	}
	if sel.OnStage != nil {
		sel.OnStage(acquire.StageSending)
	}
	return dispatch.Outcome{Entry: botpkg.CacheEntry{CandidateID: sel.CandidateID, FileRef: "file-1"}, Joined: s.joined}, nil
}

func (s *stubSelector) calls() []dispatch.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dispatch.Selection(nil), s.selections...)
}

type stubInline struct {
	results []dispatch.InlineResult
	err     error
}

func (s *stubInline) Inline(ctx context.Context, userID int64, query string) ([]dispatch.InlineResult, error) {
	return s.results, s.err
}

type stubStats struct {
	mu    sync.Mutex
	count int64
}

func (s *stubStats) IncrementSendCount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return nil
}

func (s *stubStats) GetSendCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

type stubSettings struct {
	mu       sync.Mutex
	settings map[int64]botpkg.QualityTier
}

func newStubSettings() *stubSettings {
	return &stubSettings{settings: make(map[int64]botpkg.QualityTier)}
}

func (s *stubSettings) GetUserSettings(ctx context.Context, userID int64) (*botpkg.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quality, ok := s.settings[userID]
	if !ok {
		quality = botpkg.DefaultQuality
	}
	return &botpkg.UserSettings{UserID: userID, Quality: quality}, nil
}

func (s *stubSettings) UpdateUserSettings(ctx context.Context, settings *botpkg.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.UserID] = settings.Quality
	return nil
}

type stubCache struct {
	entries map[string]bool
}

func (s *stubCache) Remove(ctx context.Context, candidateID string) error {
	if !s.entries[candidateID] {
		return cache.ErrNotFound
	}
	delete(s.entries, candidateID)
	return nil
}

func (s *stubCache) Len() int {
	return len(s.entries)
}

type stubQuota struct {
	remaining, limit int
}

func (s stubQuota) Remaining(int64) int { return s.remaining }
func (s stubQuota) Limit() int          { return s.limit }

type stubActivity int

func (s stubActivity) Active() int { return int(s) }

type recordingHandler struct {
	name string
	hits *[]string
}

func (h recordingHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	*h.hits = append(*h.hits, h.name)
}

type stubContributions map[int64]int64

func (s stubContributions) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	return s[userID], nil
}
