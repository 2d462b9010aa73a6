package handler

import (
	"context"
	"fmt"
	"testing"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/acquire"
	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/liuran001/TubeBot-Go/bot/telegram/telegramtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func editedTexts(api *telegramtest.Server) []string {
	var texts []string
	for _, call := range api.Calls("editMessageText") {
		texts = append(texts, call.Params["text"])
	}
	return texts
}

func TestDownloadCallbackPrivate(t *testing.T) {
	api := telegramtest.NewServer(t)
	selector := &stubSelector{}
	stats := &stubStats{}
	h := &DownloadCallbackHandler{Selector: selector, Stats: stats}

	h.Handle(context.Background(), api.Bot(t), callbackUpdate("private", 42, 42, "dl 7wtfhZwyrcc 42"))

	calls := selector.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, dispatch.Selection{
		UserID:      42,
		CandidateID: "7wtfhZwyrcc",
		Target:      botpkg.Target{ChatID: 42, ReplyTo: 5},
	}, withoutStage(calls[0]))

	answers := api.Calls("answerCallbackQuery")
	require.Len(t, answers, 1)
	assert.Equal(t, callbackText, answers[0].Params["text"])

	assert.Equal(t, []string{downloadingText, downloadingText, sendingText}, editedTexts(api))
	deletes := api.Calls("deleteMessage")
	require.Len(t, deletes, 1)
	assert.Equal(t, "20", deletes[0].Params["message_id"])
	assert.Equal(t, int64(1), stats.count)
}

func TestDownloadCallbackFailureKeepsMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited", dispatch.ErrRateLimited, rateLimitedText},
		{"artifact missing", fmt.Errorf("acquire x: %w", acquire.ErrArtifactMissing), fileNotFoundText},
		{"timeout", fmt.Errorf("acquire x: %w", acquire.ErrTimeout), timeoutText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := telegramtest.NewServer(t)
			stats := &stubStats{}
			h := &DownloadCallbackHandler{Selector: &stubSelector{err: tt.err}, Stats: stats}

			h.Handle(context.Background(), api.Bot(t), callbackUpdate("private", 42, 42, "dl abc 42"))

			texts := editedTexts(api)
			require.NotEmpty(t, texts)
			assert.Equal(t, tt.want, texts[len(texts)-1])
			assert.Empty(t, api.Calls("deleteMessage"))
			assert.Zero(t, stats.count)
		})
	}
}

func TestDownloadCallbackReportsFailureAfterCancel(t *testing.T) {
	api := telegramtest.NewServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	selector := &stubSelector{err: fmt.Errorf("acquire x: %w", acquire.ErrTimeout), cancel: cancel}
	h := &DownloadCallbackHandler{Selector: selector, RateLimiter: telegram.NewRateLimiter(1000, 5)}

	h.Handle(ctx, api.Bot(t), callbackUpdate("private", 42, 42, "dl abc 42"))

	texts := editedTexts(api)
	require.NotEmpty(t, texts)
	assert.Equal(t, timeoutText, texts[len(texts)-1])
}

func TestDownloadCallbackInlineReportsFailureAfterCancel(t *testing.T) {
	api := telegramtest.NewServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	selector := &stubSelector{err: fmt.Errorf("acquire x: %w", acquire.ErrTimeout), cancel: cancel}
	h := &DownloadCallbackHandler{Selector: selector}

	h.Handle(ctx, api.Bot(t), inlineCallbackUpdate(42, "inline-9", "dl abc 42"))

	texts := editedTexts(api)
	require.NotEmpty(t, texts)
	assert.Equal(t, timeoutText, texts[len(texts)-1])
}

func TestDownloadCallbackJoinedSelectionNotCounted(t *testing.T) {
	api := telegramtest.NewServer(t)
	stats := &stubStats{}
	h := &DownloadCallbackHandler{Selector: &stubSelector{joined: true}, Stats: stats}

	h.Handle(context.Background(), api.Bot(t), callbackUpdate("private", 42, 42, "dl abc 42"))

	assert.Zero(t, stats.count)
	assert.Len(t, api.Calls("deleteMessage"), 1)
}

func TestDownloadCallbackInvalidPayload(t *testing.T) {
	api := telegramtest.NewServer(t)
	selector := &stubSelector{}
	h := &DownloadCallbackHandler{Selector: selector}

	h.Handle(context.Background(), api.Bot(t), callbackUpdate("private", 42, 42, "dl broken"))

	assert.Empty(t, selector.calls())
	answers := api.Calls("answerCallbackQuery")
	require.Len(t, answers, 1)
	assert.Equal(t, callbackInvalid, answers[0].Params["text"])
	assert.Equal(t, "true", answers[0].Params["show_alert"])
}

func TestDownloadCallbackGroupPermissions(t *testing.T) {
	t.Run("other member denied", func(t *testing.T) {
		api := telegramtest.NewServer(t)
		selector := &stubSelector{}
		h := &DownloadCallbackHandler{Selector: selector}

		h.Handle(context.Background(), api.Bot(t), callbackUpdate("supergroup", -100, 7, "dl abc 42"))

		assert.Empty(t, selector.calls())
		answers := api.Calls("answerCallbackQuery")
		require.Len(t, answers, 1)
		assert.Equal(t, callbackDenied, answers[0].Params["text"])
	})

	t.Run("requester allowed", func(t *testing.T) {
		api := telegramtest.NewServer(t)
		selector := &stubSelector{}
		h := &DownloadCallbackHandler{Selector: selector}

		h.Handle(context.Background(), api.Bot(t), callbackUpdate("supergroup", -100, 42, "dl abc 42"))

		require.Len(t, selector.calls(), 1)
		assert.Empty(t, api.Calls("getChatMember"))
	})

	t.Run("bot admin allowed", func(t *testing.T) {
		api := telegramtest.NewServer(t)
		selector := &stubSelector{}
		h := &DownloadCallbackHandler{Selector: selector, AdminIDs: AdminSet([]int64{7})}

		h.Handle(context.Background(), api.Bot(t), callbackUpdate("supergroup", -100, 7, "dl abc 42"))

		require.Len(t, selector.calls(), 1)
	})

	t.Run("chat admin allowed", func(t *testing.T) {
		api := telegramtest.NewServer(t)
		api.Handle("getChatMember", func(telegramtest.Call, int) any {
			return map[string]any{
				"status":               "administrator",
				"user":                 map[string]any{"id": 7, "is_bot": false, "first_name": "Admin"},
				"can_be_edited":        false,
				"is_anonymous":         false,
				"can_manage_chat":      true,
				"can_delete_messages":  true,
				"can_restrict_members": true,
			}
		})
		selector := &stubSelector{}
		h := &DownloadCallbackHandler{Selector: selector}

		h.Handle(context.Background(), api.Bot(t), callbackUpdate("supergroup", -100, 7, "dl abc 42"))

		calls := selector.calls()
		require.Len(t, calls, 1)
		assert.Equal(t, int64(7), calls[0].UserID)
	})
}

func TestDownloadCallbackInline(t *testing.T) {
	api := telegramtest.NewServer(t)
	selector := &stubSelector{}
	stats := &stubStats{}
	h := &DownloadCallbackHandler{Selector: selector, Stats: stats}

	h.Handle(context.Background(), api.Bot(t), inlineCallbackUpdate(42, "inline-9", "dl abc 42"))

	calls := selector.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, botpkg.Target{ChatID: 42, InlineMessageID: "inline-9"}, calls[0].Target)

	edits := api.Calls("editMessageText")
	require.NotEmpty(t, edits)
	for _, edit := range edits {
		assert.Equal(t, "inline-9", edit.Params["inline_message_id"])
	}
	assert.Empty(t, api.Calls("deleteMessage"))
	assert.Equal(t, int64(1), stats.count)
}

func TestDownloadCallbackInlineUsesUploadChat(t *testing.T) {
	api := telegramtest.NewServer(t)
	selector := &stubSelector{}
	h := &DownloadCallbackHandler{Selector: selector, UploadChatID: -1009}

	h.Handle(context.Background(), api.Bot(t), inlineCallbackUpdate(42, "inline-9", "dl abc 42"))

	calls := selector.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(-1009), calls[0].Target.ChatID)
}

func TestDownloadCallbackInlineOtherUserDenied(t *testing.T) {
	api := telegramtest.NewServer(t)
	selector := &stubSelector{}
	h := &DownloadCallbackHandler{Selector: selector}

	h.Handle(context.Background(), api.Bot(t), inlineCallbackUpdate(7, "inline-9", "dl abc 42"))

	assert.Empty(t, selector.calls())
	answers := api.Calls("answerCallbackQuery")
	require.Len(t, answers, 1)
	assert.Equal(t, callbackDenied, answers[0].Params["text"])
}

func TestDownloadCallbackInlineFailure(t *testing.T) {
	api := telegramtest.NewServer(t)
	h := &DownloadCallbackHandler{Selector: &stubSelector{err: fmt.Errorf("x: %w", acquire.ErrSourceUnavailable)}}

	h.Handle(context.Background(), api.Bot(t), inlineCallbackUpdate(42, "inline-9", "dl abc 42"))

	texts := editedTexts(api)
	require.NotEmpty(t, texts)
	assert.Equal(t, unavailableText, texts[len(texts)-1])
}

func withoutStage(sel dispatch.Selection) dispatch.Selection {
	sel.OnStage = nil
	return sel
}
