package handler

import (
	"context"
	"errors"
	"fmt"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/mymmrac/telego"
)

const inlineCacheTime = 30

// InlineSearchHandler answers inline queries. Cached tracks are sent as audio
// right away; the rest become articles with a download button.
type InlineSearchHandler struct {
	Finder InlineFinder
	Logger botpkg.Logger
}

func (h *InlineSearchHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	if update == nil || update.InlineQuery == nil || h.Finder == nil {
		return
	}
	query := update.InlineQuery

	results, err := h.Finder.Inline(ctx, query.From.ID, query.Query)
	if err != nil && !errors.Is(err, dispatch.ErrEmptyQuery) && h.Logger != nil {
		h.Logger.Error("inline search failed", "query", query.Query, "error", err)
	}

	params := &telego.AnswerInlineQueryParams{
		InlineQueryID: query.ID,
		Results:       buildInlineResults(results),
		CacheTime:     inlineCacheTime,
		// Payloads embed the requester, so results must not be shared.
		IsPersonal: true,
	}
	if len(results) == 0 {
		params.Results = []telego.InlineQueryResult{}
		params.CacheTime = 0
		params.Button = &telego.InlineQueryResultsButton{Text: inlineEmpty, StartParameter: "help"}
	}
	if err := b.AnswerInlineQuery(ctx, params); err != nil && h.Logger != nil {
		h.Logger.Warn("failed to answer inline query", "error", err)
	}
}

func buildInlineResults(results []dispatch.InlineResult) []telego.InlineQueryResult {
	out := make([]telego.InlineQueryResult, 0, len(results))
	for _, result := range results {
		if result.Cached {
			out = append(out, &telego.InlineQueryResultCachedAudio{
				Type:        "audio",
				ID:          result.Candidate.ID,
				AudioFileID: result.Entry.FileRef,
				Caption:     telegram.Caption(result.Entry.Title),
			})
			continue
		}
		out = append(out, &telego.InlineQueryResultArticle{
			Type:         "article",
			ID:           result.Candidate.ID,
			Title:        result.Name.Title,
			Description:  fmt.Sprintf("%s · %s", result.Name.Artist, dispatch.FormatDuration(result.Candidate.Duration)),
			ThumbnailURL: result.Candidate.ThumbnailURL,
			InputMessageContent: &telego.InputTextMessageContent{
				MessageText: fmt.Sprintf("🎵 %s", result.Name.String()),
			},
			ReplyMarkup: &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{{
				{Text: inlineButton, CallbackData: result.Payload},
			}}},
		})
	}
	return out
}
