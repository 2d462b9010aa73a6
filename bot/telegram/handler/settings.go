package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/mymmrac/telego"
)

// SettingsHandler shows the quality picker.
type SettingsHandler struct {
	Repo           botpkg.SettingsStore
	RateLimiter    *telegram.RateLimiter
	DefaultQuality botpkg.QualityTier
	Logger         botpkg.Logger
}

func (h *SettingsHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil || h.Repo == nil {
		return
	}
	message := update.Message
	userID := message.From.ID

	current := currentQuality(ctx, h.Repo, userID, h.DefaultQuality)
	params := &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: message.Chat.ID},
		Text:            fmt.Sprintf(settingsText, qualityLabel(current)),
		ReplyParameters: &telego.ReplyParameters{MessageID: message.MessageID, AllowSendingWithoutReply: true},
		ReplyMarkup:     settingsKeyboard(userID, current),
	}
	if _, err := sendMessage(ctx, h.RateLimiter, b, params); err != nil && h.Logger != nil {
		h.Logger.Warn("failed to send settings", "chat", message.Chat.ID, "error", err)
	}
}

// SettingsCallbackHandler applies "settings quality <tier> <userID>" buttons.
type SettingsCallbackHandler struct {
	Repo        botpkg.SettingsStore
	RateLimiter *telegram.RateLimiter
	Logger      botpkg.Logger
}

func (h *SettingsCallbackHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	if update == nil || update.CallbackQuery == nil || h.Repo == nil {
		return
	}
	query := update.CallbackQuery

	quality, ownerID, ok := parseSettingsCallback(query.Data)
	if !ok {
		answerCallback(ctx, b, query.ID, callbackInvalid, true)
		return
	}
	if ownerID != query.From.ID {
		answerCallback(ctx, b, query.ID, settingsDenied, true)
		return
	}

	settings, err := h.Repo.GetUserSettings(ctx, ownerID)
	if err == nil {
		if settings == nil {
			settings = &botpkg.UserSettings{UserID: ownerID}
		}
		settings.Quality = quality
		err = h.Repo.UpdateUserSettings(ctx, settings)
	}
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("failed to save settings", "user", ownerID, "error", err)
		}
		answerCallback(ctx, b, query.ID, settingsFailed, true)
		return
	}
	answerCallback(ctx, b, query.ID, fmt.Sprintf(settingsSaved, qualityLabel(quality)), false)

	if query.Message == nil {
		return
	}
	msg := query.Message.Message()
	if msg == nil {
		return
	}
	err = editMessageText(ctx, h.RateLimiter, b, &telego.EditMessageTextParams{
		ChatID:      telego.ChatID{ID: msg.Chat.ID},
		MessageID:   msg.MessageID,
		Text:        fmt.Sprintf(settingsText, qualityLabel(quality)),
		ReplyMarkup: settingsKeyboard(ownerID, quality),
	})
	if err != nil && h.Logger != nil {
		h.Logger.Warn("failed to refresh settings", "chat", msg.Chat.ID, "error", err)
	}
}

func currentQuality(ctx context.Context, repo botpkg.SettingsStore, userID int64, fallback botpkg.QualityTier) botpkg.QualityTier {
	if !fallback.Valid() {
		fallback = botpkg.DefaultQuality
	}
	settings, err := repo.GetUserSettings(ctx, userID)
	if err != nil || settings == nil || !settings.Quality.Valid() {
		return fallback
	}
	return settings.Quality
}

func settingsKeyboard(userID int64, current botpkg.QualityTier) *telego.InlineKeyboardMarkup {
	row := make([]telego.InlineKeyboardButton, 0, len(botpkg.QualityTiers))
	for _, tier := range botpkg.QualityTiers {
		label := qualityLabel(tier)
		if tier == current {
			label = fmt.Sprintf(qualityLabelSelected, label)
		}
		row = append(row, telego.InlineKeyboardButton{
			Text:         label,
			CallbackData: fmt.Sprintf("%s quality %s %d", SettingsCallbackPrefix, tier, userID),
		})
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{row}}
}

func parseSettingsCallback(data string) (botpkg.QualityTier, int64, bool) {
	fields := strings.Fields(data)
	if len(fields) != 4 || fields[0] != SettingsCallbackPrefix || fields[1] != "quality" {
		return "", 0, false
	}
	quality, err := botpkg.ParseQuality(fields[2])
	if err != nil {
		return "", 0, false
	}
	userID, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return quality, userID, true
}

func qualityLabel(q botpkg.QualityTier) string {
	if label, ok := qualityLabels[q.String()]; ok {
		return label
	}
	return q.String()
}
