package handler

import (
	"context"
	"fmt"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/mymmrac/telego"
)

// StatusHandler handles /status command.
type StatusHandler struct {
	Cache       CacheRemover
	Quota       QuotaReader
	Stats       SendCounter
	Contributed ContributionCounter
	Pool        Activity
	RateLimiter *telegram.RateLimiter
	Logger      botpkg.Logger
}

func (h *StatusHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}
	message := update.Message
	user := message.From

	cached := 0
	if h.Cache != nil {
		cached = h.Cache.Len()
	}
	var sent int64
	if h.Stats != nil {
		if count, err := h.Stats.GetSendCount(ctx); err == nil {
			sent = count
		} else if h.Logger != nil {
			h.Logger.Warn("failed to read send count", "error", err)
		}
	}
	var contributed int64
	if h.Contributed != nil {
		if count, err := h.Contributed.CountByUserID(ctx, user.ID); err == nil {
			contributed = count
		} else if h.Logger != nil {
			h.Logger.Warn("failed to count user's cached tracks", "user", user.ID, "error", err)
		}
	}
	running := 0
	if h.Pool != nil {
		running = h.Pool.Active()
	}
	remaining, limit := 0, 0
	if h.Quota != nil {
		remaining, limit = h.Quota.Remaining(user.ID), h.Quota.Limit()
	}

	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	text := fmt.Sprintf(statusInfo, cached, sent, running, contributed, mdV2Replacer.Replace(name), user.ID, remaining, limit)
	if limit <= 0 {
		text = fmt.Sprintf(statusInfoUnlimited, cached, sent, running, contributed)
	}

	params := &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: message.Chat.ID},
		Text:            text,
		ParseMode:       telego.ModeMarkdownV2,
		ReplyParameters: &telego.ReplyParameters{MessageID: message.MessageID, AllowSendingWithoutReply: true},
	}
	if _, err := sendMessage(ctx, h.RateLimiter, b, params); err != nil && h.Logger != nil {
		h.Logger.Warn("failed to send status", "chat", message.Chat.ID, "error", err)
	}
}
