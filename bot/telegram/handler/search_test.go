package handler

import (
	"context"
	"errors"
	"testing"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/liuran001/TubeBot-Go/bot/telegram/telegramtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchHandlerShowsResults(t *testing.T) {
	api := telegramtest.NewServer(t)
	finder := &stubFinder{options: []dispatch.Option{
		{
			Candidate: botpkg.Candidate{ID: "7wtfhZwyrcc", Title: "Imagine Dragons - Believer", Duration: 217},
			Label:     "1. Imagine Dragons - Believer... (3:37)",
			Payload:   "dl 7wtfhZwyrcc 42",
		},
		{
			Candidate: botpkg.Candidate{ID: "W0DM5lcj6mw", Title: "Believer (Live)"},
			Label:     "2. Believer (Live)... (unknown)",
			Payload:   "dl W0DM5lcj6mw 42",
		},
	}}
	h := &SearchHandler{Finder: finder}

	h.Handle(context.Background(), api.Bot(t), messageUpdate("private", 42, 42, "believer"))

	assert.Equal(t, []string{"believer"}, finder.queries)
	assert.Equal(t, []string{"sendMessage", "editMessageText"}, api.Methods())

	sent := api.Calls("sendMessage")[0]
	assert.Equal(t, "🔍 Searching: believer...", sent.Params["text"])
	assert.Contains(t, sent.Params["reply_parameters"], `"message_id":10`)

	edit := api.Calls("editMessageText")[0]
	assert.Equal(t, `🎶 Results for "believer":`, edit.Params["text"])
	assert.Contains(t, edit.Params["reply_markup"], "dl 7wtfhZwyrcc 42")
	assert.Contains(t, edit.Params["reply_markup"], "2. Believer (Live)... (unknown)")
}

func TestSearchHandlerCommandArguments(t *testing.T) {
	api := telegramtest.NewServer(t)
	finder := &stubFinder{}
	h := &SearchHandler{Finder: finder}

	h.Handle(context.Background(), api.Bot(t), messageUpdate("group", -100, 42, "/search@tube_bot  queen bohemian rhapsody "))

	assert.Equal(t, []string{"queen bohemian rhapsody"}, finder.queries)
}

func TestSearchHandlerNothingFound(t *testing.T) {
	api := telegramtest.NewServer(t)
	h := &SearchHandler{Finder: &stubFinder{err: errors.New("provider down")}}

	h.Handle(context.Background(), api.Bot(t), messageUpdate("private", 42, 42, "zzzz"))

	edits := api.Calls("editMessageText")
	require.Len(t, edits, 1)
	assert.Equal(t, `😔 Nothing found for "zzzz".`, edits[0].Params["text"])
	assert.Empty(t, edits[0].Params["reply_markup"])
}

func TestSearchHandlerEmptyKeyword(t *testing.T) {
	api := telegramtest.NewServer(t)
	finder := &stubFinder{}
	h := &SearchHandler{Finder: finder}

	h.Handle(context.Background(), api.Bot(t), messageUpdate("private", 42, 42, "/search"))

	assert.Empty(t, finder.queries)
	sent := api.Calls("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, searchUsage, sent[0].Params["text"])
}

func TestSearchHandlerStatusSendFailure(t *testing.T) {
	api := telegramtest.NewServer(t)
	api.Fail("sendMessage", 403, "Forbidden: bot was blocked by the user")
	finder := &stubFinder{}
	h := &SearchHandler{Finder: finder}

	h.Handle(context.Background(), api.Bot(t), messageUpdate("private", 42, 42, "believer"))

	assert.Empty(t, finder.queries)
	assert.Empty(t, api.Calls("editMessageText"))
}
