package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/mymmrac/telego"
)

// SearchHandler handles /search and plain private text.
type SearchHandler struct {
	Finder      Finder
	RateLimiter *telegram.RateLimiter
	Logger      botpkg.Logger
}

func (h *SearchHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	if update == nil || update.Message == nil || h.Finder == nil {
		return
	}
	message := update.Message

	keyword := message.Text
	if strings.HasPrefix(strings.TrimSpace(keyword), "/") {
		keyword = commandArguments(keyword)
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		_, _ = replyText(ctx, h.RateLimiter, b, message, searchUsage)
		return
	}

	status, err := replyText(ctx, h.RateLimiter, b, message, fmt.Sprintf(searchingText, keyword))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("failed to send search status", "chat", message.Chat.ID, "error", err)
		}
		return
	}

	requesterID := int64(0)
	if message.From != nil {
		requesterID = message.From.ID
	}
	options, err := h.Finder.Find(ctx, requesterID, keyword)
	if err != nil && !errors.Is(err, dispatch.ErrEmptyQuery) && h.Logger != nil {
		h.Logger.Error("search failed", "query", keyword, "error", err)
	}

	params := &telego.EditMessageTextParams{
		ChatID:    telego.ChatID{ID: message.Chat.ID},
		MessageID: status.MessageID,
	}
	if len(options) == 0 {
		params.Text = fmt.Sprintf(noResults, keyword)
	} else {
		params.Text = fmt.Sprintf(searchResults, keyword)
		params.ReplyMarkup = resultKeyboard(options)
	}
	if err := editMessageText(ctx, h.RateLimiter, b, params); err != nil && h.Logger != nil {
		h.Logger.Warn("failed to show search results", "chat", message.Chat.ID, "error", err)
	}
}

// resultKeyboard lays out one option per row.
func resultKeyboard(options []dispatch.Option) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, len(options))
	for _, option := range options {
		rows = append(rows, []telego.InlineKeyboardButton{{
			Text:         option.Label,
			CallbackData: option.Payload,
		}})
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}
