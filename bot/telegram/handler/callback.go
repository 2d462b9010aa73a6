package handler

import (
	"context"
	"time"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/acquire"
	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/mymmrac/telego"
)

// finalStatusTimeout bounds the last status edit, which is sent even when the
// update's context is already done.
const finalStatusTimeout = 10 * time.Second

// DownloadCallbackHandler serves "dl" buttons from search lists and inline results.
type DownloadCallbackHandler struct {
	Selector     Selector
	RateLimiter  *telegram.RateLimiter
	Stats        SendCounter
	AdminIDs     map[int64]struct{}
	UploadChatID int64 // staging chat for inline deliveries, 0 = the user's private chat
	Logger       botpkg.Logger
}

func (h *DownloadCallbackHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	if update == nil || update.CallbackQuery == nil || h.Selector == nil {
		return
	}
	query := update.CallbackQuery

	payload, err := dispatch.ParsePayload(query.Data)
	if err != nil {
		answerCallback(ctx, b, query.ID, callbackInvalid, true)
		return
	}

	if query.InlineMessageID != "" {
		h.handleInline(ctx, b, query, payload)
		return
	}

	if query.Message == nil {
		return
	}
	msg := query.Message.Message()
	if msg == nil {
		answerCallback(ctx, b, query.ID, callbackInvalid, true)
		return
	}

	if msg.Chat.Type != "private" && !isBotAdmin(h.AdminIDs, query.From.ID) &&
		!isRequesterOrAdmin(ctx, b, msg.Chat.ID, query.From.ID, payload.RequesterID) {
		answerCallback(ctx, b, query.ID, callbackDenied, true)
		return
	}
	answerCallback(ctx, b, query.ID, callbackText, false)

	target := botpkg.Target{ChatID: msg.Chat.ID}
	if msg.ReplyToMessage != nil {
		target.ReplyTo = msg.ReplyToMessage.MessageID
	}
	editStatus := func(ctx context.Context, text string) {
		err := editMessageText(ctx, h.RateLimiter, b, &telego.EditMessageTextParams{
			ChatID:    telego.ChatID{ID: msg.Chat.ID},
			MessageID: msg.MessageID,
			Text:      text,
		})
		if err != nil && h.Logger != nil {
			h.Logger.Warn("failed to update status message", "chat", msg.Chat.ID, "error", err)
		}
	}
	setStatus := func(text string) { editStatus(ctx, text) }

	setStatus(downloadingText)
	out, err := h.Selector.Select(ctx, dispatch.Selection{
		UserID:      query.From.ID,
		CandidateID: payload.CandidateID,
		Target:      target,
		OnStage:     stageReporter(setStatus),
	})
	if err != nil {
		h.logFailure(query.From.ID, payload.CandidateID, err)
		reportFailure(ctx, editStatus, err)
		return
	}
	if !out.Joined {
		h.countSend(ctx)
	}
	if err := deleteMessage(ctx, h.RateLimiter, b, msg.Chat.ID, msg.MessageID); err != nil && h.Logger != nil {
		h.Logger.Warn("failed to delete status message", "chat", msg.Chat.ID, "error", err)
	}
}

// handleInline uploads to the staging chat and then swaps the inline message's media.
func (h *DownloadCallbackHandler) handleInline(ctx context.Context, b *telego.Bot, query *telego.CallbackQuery, payload dispatch.Payload) {
	if payload.RequesterID != 0 && payload.RequesterID != query.From.ID {
		answerCallback(ctx, b, query.ID, callbackDenied, true)
		return
	}
	answerCallback(ctx, b, query.ID, callbackText, false)

	chatID := h.UploadChatID
	if chatID == 0 {
		chatID = query.From.ID
	}
	editStatus := func(ctx context.Context, text string) {
		err := editMessageText(ctx, h.RateLimiter, b, &telego.EditMessageTextParams{
			InlineMessageID: query.InlineMessageID,
			Text:            text,
		})
		if err != nil && h.Logger != nil {
			h.Logger.Warn("failed to update inline message", "inline_message", query.InlineMessageID, "error", err)
		}
	}
	setStatus := func(text string) { editStatus(ctx, text) }

	out, err := h.Selector.Select(ctx, dispatch.Selection{
		UserID:      query.From.ID,
		CandidateID: payload.CandidateID,
		Target:      botpkg.Target{ChatID: chatID, InlineMessageID: query.InlineMessageID},
		OnStage:     stageReporter(setStatus),
	})
	if err != nil {
		h.logFailure(query.From.ID, payload.CandidateID, err)
		reportFailure(ctx, editStatus, err)
		return
	}
	if !out.Joined {
		h.countSend(ctx)
	}
}

// reportFailure edits the status to the user-facing failure text on a context
// that outlives ctx, so a shutdown still leaves the user with an answer.
func reportFailure(ctx context.Context, editStatus func(context.Context, string), err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalStatusTimeout)
	defer cancel()
	editStatus(ctx, userVisibleError(err))
}

func (h *DownloadCallbackHandler) countSend(ctx context.Context) {
	if h.Stats == nil {
		return
	}
	if err := h.Stats.IncrementSendCount(context.WithoutCancel(ctx)); err != nil && h.Logger != nil {
		h.Logger.Error("failed to update send count", "error", err)
	}
}

func (h *DownloadCallbackHandler) logFailure(userID int64, candidateID string, err error) {
	if h.Logger == nil {
		return
	}
	h.Logger.Error("selection failed", "user", userID, "candidate", candidateID, "error", err)
}

func stageReporter(setStatus func(string)) func(acquire.Stage) {
	return func(stage acquire.Stage) {
		switch stage {
		case acquire.StageDownloading:
			setStatus(downloadingText)
		case acquire.StageSending:
			setStatus(sendingText)
		}
	}
}
