package telegram

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/acquire"
	"github.com/liuran001/TubeBot-Go/bot/telegram/telegramtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUpload(t *testing.T, withCover bool) acquire.Upload {
	t.Helper()
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.m4a")
	require.NoError(t, os.WriteFile(audio, []byte("aac"), 0o644))
	upload := acquire.Upload{
		Path:      audio,
		FileName:  "Imagine Dragons - Believer.m4a",
		Title:     "Believer",
		Performer: "Imagine Dragons",
		Duration:  204,
		Caption:   Caption("Believer"),
	}
	if withCover {
		cover := filepath.Join(dir, "cover.jpg")
		require.NoError(t, os.WriteFile(cover, []byte{0xFF, 0xD8, 0xFF}, 0o644))
		upload.CoverPath = cover
	}
	return upload
}

func TestDeliveryUploadAudio(t *testing.T) {
	api := telegramtest.NewServer(t)
	d := NewDelivery(api.Bot(t), NewRateLimiter(100, 10), 0, nil)

	delivered, err := d.UploadAudio(context.Background(), botpkg.Target{ChatID: 42, ReplyTo: 7}, writeUpload(t, true))
	require.NoError(t, err)
	assert.NotEmpty(t, delivered.FileRef)
	assert.NotEmpty(t, delivered.ThumbRef)

	calls := api.Calls("sendAudio")
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, int64(42), call.ChatID())
	assert.Equal(t, "Believer", call.Params["title"])
	assert.Equal(t, "Imagine Dragons", call.Params["performer"])
	assert.Equal(t, "204", call.Params["duration"])
	assert.Equal(t, "🎵 Believer", call.Params["caption"])
	assert.Equal(t, "Imagine Dragons - Believer.m4a", call.Files["audio"])
	assert.Contains(t, call.Files, "thumbnail")
	assert.Contains(t, call.Params["reply_parameters"], `"message_id":7`)
}

func TestDeliveryUploadInlineStagesThenEdits(t *testing.T) {
	api := telegramtest.NewServer(t)
	d := NewDelivery(api.Bot(t), nil, -1001, nil)

	target := botpkg.Target{ChatID: 5, InlineMessageID: "inline-1"}
	delivered, err := d.UploadAudio(context.Background(), target, writeUpload(t, false))
	require.NoError(t, err)

	uploads := api.Calls("sendAudio")
	require.Len(t, uploads, 1)
	assert.Equal(t, int64(-1001), uploads[0].ChatID())
	assert.Empty(t, uploads[0].Params["reply_parameters"])

	edits := api.Calls("editMessageMedia")
	require.Len(t, edits, 1)
	assert.Equal(t, "inline-1", edits[0].Params["inline_message_id"])
	assert.Contains(t, edits[0].Params["media"], delivered.FileRef)
}

func TestDeliveryUploadFailure(t *testing.T) {
	api := telegramtest.NewServer(t)
	api.Fail("sendAudio", 413, "Request Entity Too Large")
	d := NewDelivery(api.Bot(t), nil, 0, nil)

	_, err := d.UploadAudio(context.Background(), botpkg.Target{ChatID: 1}, writeUpload(t, false))
	assert.Error(t, err)
}

func TestDeliverySendCached(t *testing.T) {
	api := telegramtest.NewServer(t)
	d := NewDelivery(api.Bot(t), nil, 0, nil)
	entry := botpkg.CacheEntry{CandidateID: "x", FileRef: "stored-file-id", Title: "Believer", Artist: "Imagine Dragons", Duration: 204}

	require.NoError(t, d.SendCached(context.Background(), botpkg.Target{ChatID: 9}, entry))
	calls := api.Calls("sendAudio")
	require.Len(t, calls, 1)
	assert.Equal(t, "stored-file-id", calls[0].Params["audio"])
	assert.Empty(t, calls[0].Files)

	require.NoError(t, d.SendCached(context.Background(), botpkg.Target{InlineMessageID: "inline-2"}, entry))
	edits := api.Calls("editMessageMedia")
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Params["media"], "stored-file-id")
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "🎵 Song", Caption(" Song "))
	assert.Equal(t, "🎵", Caption(""))
}
