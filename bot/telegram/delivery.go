package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/acquire"
	"github.com/mymmrac/telego"
)

// Delivery sends audio through Telegram. Inline messages cannot receive an
// upload directly, so files for them are first uploaded to a staging chat
// and the inline message is then edited to point at the stored file.
type Delivery struct {
	client       *telego.Bot
	limiter      *RateLimiter
	uploadChatID int64
	logger       botpkg.Logger
}

var _ acquire.Channel = (*Delivery)(nil)

// NewDelivery creates a Delivery. uploadChatID may be 0, in which case the
// target's ChatID (the requester's private chat) is used for staging.
func NewDelivery(client *telego.Bot, limiter *RateLimiter, uploadChatID int64, logger botpkg.Logger) *Delivery {
	return &Delivery{client: client, limiter: limiter, uploadChatID: uploadChatID, logger: logger}
}

// UploadAudio implements acquire.Channel.
func (d *Delivery) UploadAudio(ctx context.Context, target botpkg.Target, upload acquire.Upload) (acquire.Delivered, error) {
	chatID := target.ChatID
	replyTo := target.ReplyTo
	if target.IsInline() {
		if d.uploadChatID != 0 {
			chatID = d.uploadChatID
		}
		replyTo = 0
	}
	if chatID == 0 {
		return acquire.Delivered{}, errors.New("no chat to upload to")
	}

	audioFile, err := os.Open(upload.Path)
	if err != nil {
		return acquire.Delivered{}, err
	}
	defer audioFile.Close()

	params := &telego.SendAudioParams{
		ChatID:    telego.ChatID{ID: chatID},
		Audio:     telego.InputFile{File: namedFile{File: audioFile, name: upload.FileName}},
		Caption:   upload.Caption,
		Title:     upload.Title,
		Performer: upload.Performer,
		Duration:  upload.Duration,
	}
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true}
	}
	if upload.CoverPath != "" {
		cover, err := os.Open(upload.CoverPath)
		if err == nil {
			defer cover.Close()
			params.Thumbnail = &telego.InputFile{File: cover}
		}
	}

	_ = d.client.SendChatAction(ctx, &telego.SendChatActionParams{ChatID: telego.ChatID{ID: chatID}, Action: "upload_document"})
	msg, err := SendAudioWithRetry(ctx, d.limiter, d.client, params)
	if err != nil {
		return acquire.Delivered{}, fmt.Errorf("send audio: %w", err)
	}
	if msg == nil || msg.Audio == nil || msg.Audio.FileID == "" {
		return acquire.Delivered{}, errors.New("send audio: response carried no audio")
	}

	delivered := acquire.Delivered{FileRef: msg.Audio.FileID}
	if msg.Audio.Thumbnail != nil {
		delivered.ThumbRef = msg.Audio.Thumbnail.FileID
	}

	if target.IsInline() {
		entry := botpkg.CacheEntry{
			FileRef:  delivered.FileRef,
			ThumbRef: delivered.ThumbRef,
			Title:    upload.Title,
			Artist:   upload.Performer,
			Duration: upload.Duration,
		}
		if err := d.editInline(ctx, target.InlineMessageID, entry, upload.Caption); err != nil {
			return delivered, fmt.Errorf("edit inline message: %w", err)
		}
	}
	return delivered, nil
}

// SendCached implements acquire.Channel by re-sending a stored file reference.
func (d *Delivery) SendCached(ctx context.Context, target botpkg.Target, entry botpkg.CacheEntry) error {
	caption := Caption(entry.Title)
	if target.IsInline() {
		return d.editInline(ctx, target.InlineMessageID, entry, caption)
	}

	params := &telego.SendAudioParams{
		ChatID:    telego.ChatID{ID: target.ChatID},
		Audio:     telego.InputFile{FileID: entry.FileRef},
		Caption:   caption,
		Title:     entry.Title,
		Performer: entry.Artist,
		Duration:  entry.Duration,
	}
	if target.ReplyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: target.ReplyTo, AllowSendingWithoutReply: true}
	}
	if _, err := SendAudioWithRetry(ctx, d.limiter, d.client, params); err != nil {
		return fmt.Errorf("send cached audio: %w", err)
	}
	return nil
}

func (d *Delivery) editInline(ctx context.Context, inlineMessageID string, entry botpkg.CacheEntry, caption string) error {
	media := &telego.InputMediaAudio{
		Type:      "audio",
		Media:     telego.InputFile{FileID: entry.FileRef},
		Caption:   caption,
		Title:     entry.Title,
		Performer: entry.Artist,
		Duration:  entry.Duration,
	}
	params := &telego.EditMessageMediaParams{
		InlineMessageID: inlineMessageID,
		Media:           media,
	}
	_, err := EditMessageMediaWithRetry(ctx, d.limiter, d.client, params)
	if err != nil && IsMessageNotModified(err) {
		return nil
	}
	return err
}

// Caption is the text attached to every delivered track.
func Caption(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "🎵"
	}
	return "🎵 " + title
}

// namedFile overrides the upload file name Telegram shows to users.
type namedFile struct {
	*os.File
	name string
}

func (f namedFile) Name() string {
	if f.name != "" {
		return f.name
	}
	return f.File.Name()
}
