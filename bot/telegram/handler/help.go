package handler

import (
	"context"
	"fmt"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/mymmrac/telego"
)

// HelpHandler handles /start and /help.
type HelpHandler struct {
	BotName     string
	RateLimiter *telegram.RateLimiter
	Logger      botpkg.Logger
}

func (h *HelpHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	if update == nil || update.Message == nil {
		return
	}
	message := update.Message
	params := &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: message.Chat.ID},
		Text:            fmt.Sprintf(helpText, mdV2Replacer.Replace(h.BotName)),
		ParseMode:       telego.ModeMarkdownV2,
		ReplyParameters: &telego.ReplyParameters{MessageID: message.MessageID, AllowSendingWithoutReply: true},
	}
	if _, err := sendMessage(ctx, h.RateLimiter, b, params); err != nil && h.Logger != nil {
		h.Logger.Warn("failed to send help", "chat", message.Chat.ID, "error", err)
	}
}
