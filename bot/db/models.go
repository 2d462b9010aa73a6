package db

import (
	"github.com/liuran001/TubeBot-Go/bot"
	"gorm.io/gorm"
)

// CacheEntryModel mirrors the delivered_tracks schema. One row per candidate.
type CacheEntryModel struct {
	gorm.Model
	CandidateID string `gorm:"uniqueIndex;not null"`
	FileRef     string `gorm:"not null"`
	ThumbRef    string
	Title       string
	Artist      string
	Duration    int
	Quality     string `gorm:"not null;default:'high'"`
	FromUserID  int64
	FromChatID  int64
}

func (CacheEntryModel) TableName() string {
	return "delivered_tracks"
}

// BotStatModel stores aggregated bot statistics.
type BotStatModel struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Value int64
}

func (BotStatModel) TableName() string {
	return "bot_stats"
}

// UserSettingsModel stores user preferences for the bot.
type UserSettingsModel struct {
	gorm.Model
	UserID  int64  `gorm:"uniqueIndex;not null"`
	Quality string `gorm:"not null;default:'high'"`
}

func (UserSettingsModel) TableName() string {
	return "user_settings"
}

func toInternal(model CacheEntryModel) bot.CacheEntry {
	quality, err := bot.ParseQuality(model.Quality)
	if err != nil {
		quality = bot.DefaultQuality
	}
	return bot.CacheEntry{
		CandidateID: model.CandidateID,
		FileRef:     model.FileRef,
		ThumbRef:    model.ThumbRef,
		Title:       model.Title,
		Artist:      model.Artist,
		Duration:    model.Duration,
		Quality:     quality,
		FromUserID:  model.FromUserID,
		FromChatID:  model.FromChatID,
		CreatedAt:   model.CreatedAt,
	}
}

func toModel(entry bot.CacheEntry) *CacheEntryModel {
	model := &CacheEntryModel{
		CandidateID: entry.CandidateID,
		FileRef:     entry.FileRef,
		ThumbRef:    entry.ThumbRef,
		Title:       entry.Title,
		Artist:      entry.Artist,
		Duration:    entry.Duration,
		Quality:     entry.Quality.String(),
		FromUserID:  entry.FromUserID,
		FromChatID:  entry.FromChatID,
	}
	if model.Quality == "" {
		model.Quality = bot.DefaultQuality.String()
	}
	if !entry.CreatedAt.IsZero() {
		model.CreatedAt = entry.CreatedAt
	}
	return model
}

func userSettingsToInternal(settings UserSettingsModel) *bot.UserSettings {
	quality, err := bot.ParseQuality(settings.Quality)
	if err != nil {
		quality = bot.DefaultQuality
	}
	return &bot.UserSettings{
		ID:        settings.ID,
		CreatedAt: settings.CreatedAt,
		UpdatedAt: settings.UpdatedAt,
		UserID:    settings.UserID,
		Quality:   quality,
	}
}
