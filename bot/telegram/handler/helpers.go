package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/liuran001/TubeBot-Go/bot/acquire"
	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/mymmrac/telego"
)

func commandArguments(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	parts := strings.SplitN(text, " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// commandName returns the command without slash and bot mention, or "" when
// the command is addressed to another bot.
func commandName(text, botName string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	parts := strings.Fields(text)
	command := strings.TrimPrefix(parts[0], "/")
	if command == "" {
		return ""
	}
	if strings.Contains(command, "@") {
		seg := strings.SplitN(command, "@", 2)
		command = seg[0]
		if botName != "" && seg[1] != "" && !strings.EqualFold(seg[1], botName) {
			return ""
		}
	}
	return strings.ToLower(command)
}

func isCommandMessage(message *telego.Message) bool {
	if message == nil || message.Text == "" {
		return false
	}
	if !strings.HasPrefix(message.Text, "/") {
		return false
	}
	for _, entity := range message.Entities {
		if entity.Type == "bot_command" && entity.Offset == 0 {
			return true
		}
	}
	return false
}

func isBotAdmin(adminIDs map[int64]struct{}, userID int64) bool {
	if len(adminIDs) == 0 {
		return false
	}
	_, ok := adminIDs[userID]
	return ok
}

// AdminSet builds the lookup used for bot admin checks.
func AdminSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func isRequesterOrAdmin(ctx context.Context, b *telego.Bot, chatID int64, userID int64, requesterID int64) bool {
	if requesterID != 0 && requesterID == userID {
		return true
	}
	if b == nil {
		return false
	}
	member, err := b.GetChatMember(ctx, &telego.GetChatMemberParams{ChatID: telego.ChatID{ID: chatID}, UserID: userID})
	if err == nil && member != nil {
		status := member.MemberStatus()
		if status == telego.MemberStatusCreator || status == telego.MemberStatusAdministrator {
			return true
		}
	}
	admins, err := b.GetChatAdministrators(ctx, &telego.GetChatAdministratorsParams{ChatID: telego.ChatID{ID: chatID}})
	if err != nil {
		return false
	}
	for _, admin := range admins {
		if admin.MemberUser().ID != userID {
			continue
		}
		status := admin.MemberStatus()
		return status == telego.MemberStatusCreator || status == telego.MemberStatusAdministrator
	}
	return false
}

// userVisibleError maps an internal failure to a fixed user-facing text.
// Internal error strings never reach the chat.
func userVisibleError(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrRateLimited):
		return rateLimitedText
	case errors.Is(err, dispatch.ErrInvalidPayload):
		return callbackInvalid
	case errors.Is(err, acquire.ErrArtifactMissing):
		return fileNotFoundText
	case errors.Is(err, acquire.ErrTimeout):
		return timeoutText
	case errors.Is(err, acquire.ErrSourceUnavailable):
		return unavailableText
	case errors.Is(err, acquire.ErrDeliveryFailed):
		return deliveryFailedText
	default:
		return genericFailureText
	}
}

func sendMessage(ctx context.Context, rl *telegram.RateLimiter, b *telego.Bot, params *telego.SendMessageParams) (*telego.Message, error) {
	if rl != nil {
		return telegram.SendMessageWithRetry(ctx, rl, b, params)
	}
	return b.SendMessage(ctx, params)
}

func editMessageText(ctx context.Context, rl *telegram.RateLimiter, b *telego.Bot, params *telego.EditMessageTextParams) error {
	var err error
	if rl != nil {
		_, err = telegram.EditMessageTextWithRetry(ctx, rl, b, params)
	} else {
		_, err = b.EditMessageText(ctx, params)
	}
	if telegram.IsMessageNotModified(err) {
		return nil
	}
	return err
}

func deleteMessage(ctx context.Context, rl *telegram.RateLimiter, b *telego.Bot, chatID int64, messageID int) error {
	params := &telego.DeleteMessageParams{ChatID: telego.ChatID{ID: chatID}, MessageID: messageID}
	if rl != nil {
		return telegram.DeleteMessageWithRetry(ctx, rl, b, params)
	}
	return b.DeleteMessage(ctx, params)
}

func replyText(ctx context.Context, rl *telegram.RateLimiter, b *telego.Bot, message *telego.Message, text string) (*telego.Message, error) {
	return sendMessage(ctx, rl, b, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: message.Chat.ID},
		Text:            text,
		ReplyParameters: &telego.ReplyParameters{MessageID: message.MessageID, AllowSendingWithoutReply: true},
	})
}

func answerCallback(ctx context.Context, b *telego.Bot, queryID, text string, alert bool) {
	_ = b.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: queryID, Text: text, ShowAlert: alert})
}
