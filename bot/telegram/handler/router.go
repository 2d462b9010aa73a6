package handler

import (
	"context"
	"strings"

	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/mymmrac/telego"
)

// SettingsCallbackPrefix starts the callback data of settings buttons.
const SettingsCallbackPrefix = "settings"

// Router delegates updates to feature handlers.
type Router struct {
	Help             MessageHandler
	Search           MessageHandler
	Status           MessageHandler
	Settings         MessageHandler
	RmCache          MessageHandler
	Whitelist        MessageHandler
	Callback         CallbackHandler
	SettingsCallback CallbackHandler
	Inline           InlineHandler
	Gate             ChatGate
	BotName          string
}

// ChatGate decides whether a chat may use the bot.
type ChatGate interface {
	IsAllowed(chatID int64, userID int64) bool
}

// Handle matches telegram.UpdateHandler.
func (r *Router) Handle(ctx context.Context, b *telego.Bot, update telego.Update) {
	if !r.allowed(ctx, b, &update) {
		return
	}
	switch {
	case update.Message != nil:
		r.routeMessage(ctx, b, &update)
	case update.CallbackQuery != nil:
		r.routeCallback(ctx, b, &update)
	case update.InlineQuery != nil:
		dispatchTo(ctx, b, &update, r.Inline)
	}
}

func (r *Router) routeMessage(ctx context.Context, b *telego.Bot, update *telego.Update) {
	message := update.Message
	if message.Text == "" {
		return
	}
	if isCommandMessage(message) {
		switch commandName(message.Text, r.BotName) {
		case "start", "help":
			dispatchTo(ctx, b, update, r.Help)
		case "search":
			dispatchTo(ctx, b, update, r.Search)
		case "status":
			dispatchTo(ctx, b, update, r.Status)
		case "settings":
			dispatchTo(ctx, b, update, r.Settings)
		case "rmcache":
			dispatchTo(ctx, b, update, r.RmCache)
		case "allow", "deny", "allowlist":
			dispatchTo(ctx, b, update, r.Whitelist)
		}
		return
	}
	// Free text is a search only in private chats; groups need /search.
	if message.Chat.Type == "private" {
		dispatchTo(ctx, b, update, r.Search)
	}
}

func (r *Router) routeCallback(ctx context.Context, b *telego.Bot, update *telego.Update) {
	action, _, _ := strings.Cut(update.CallbackQuery.Data, " ")
	switch action {
	case dispatch.ActionDownload:
		dispatchTo(ctx, b, update, r.Callback)
	case SettingsCallbackPrefix:
		dispatchTo(ctx, b, update, r.SettingsCallback)
	}
}

// allowed applies the gate. Denied callbacks are answered so the button stops
// spinning; other denied updates are dropped.
func (r *Router) allowed(ctx context.Context, b *telego.Bot, update *telego.Update) bool {
	if r.Gate == nil {
		return true
	}
	switch {
	case update.Message != nil:
		message := update.Message
		if message.From == nil {
			return false
		}
		return r.Gate.IsAllowed(message.Chat.ID, message.From.ID)
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		chatID := query.From.ID
		if query.Message != nil {
			if msg := query.Message.Message(); msg != nil {
				chatID = msg.Chat.ID
			}
		}
		if r.Gate.IsAllowed(chatID, query.From.ID) {
			return true
		}
		if b != nil {
			answerCallback(ctx, b, query.ID, notAllowedText, true)
		}
		return false
	case update.InlineQuery != nil:
		return r.Gate.IsAllowed(update.InlineQuery.From.ID, update.InlineQuery.From.ID)
	}
	return true
}

func dispatchTo(ctx context.Context, b *telego.Bot, update *telego.Update, handler interface {
	Handle(ctx context.Context, b *telego.Bot, update *telego.Update)
}) {
	if handler == nil {
		return
	}
	handler.Handle(ctx, b, update)
}
