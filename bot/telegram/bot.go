package telegram

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/config"
	"github.com/mymmrac/telego"
)

// UpdateHandler processes one update.
type UpdateHandler func(ctx context.Context, b *telego.Bot, update telego.Update)

// Bot wraps telego with application configuration.
type Bot struct {
	client *telego.Bot
	upload *telego.Bot
	config *config.Config
	logger botpkg.Logger

	mu    sync.Mutex
	abort context.CancelFunc
}

// New creates a new Telegram bot client.
func New(cfg *config.Config, logger botpkg.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	pollClient := &http.Client{
		Timeout:   2 * time.Minute,
		Transport: newTransport(),
	}
	uploadClient := &http.Client{
		Timeout:   15 * time.Minute,
		Transport: newTransport(),
	}

	client, err := telego.NewBot(cfg.GetString("BOT_TOKEN"), botOptions(cfg, logger, pollClient)...)
	if err != nil {
		return nil, err
	}
	upload, err := telego.NewBot(cfg.GetString("BOT_TOKEN"), botOptions(cfg, logger, uploadClient)...)
	if err != nil {
		return nil, err
	}
	return &Bot{client: client, upload: upload, config: cfg, logger: logger}, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func botOptions(cfg *config.Config, logger botpkg.Logger, client *http.Client) []telego.BotOption {
	options := []telego.BotOption{
		telego.WithHTTPClient(client),
		telego.WithLogger(telegoLogger{logger: logger}),
	}
	if cfg.GetString("BotAPI") != "" {
		options = append(options, telego.WithAPIServer(cfg.GetString("BotAPI")))
	}
	if cfg.GetBool("BotDebug") {
		options = append(options, telego.WithDebugMode())
	}
	return options
}

// Start long-polls updates and hands each one to handle on its own goroutine.
// It blocks until ctx is canceled and every running handler has returned.
// Handlers do not see ctx's cancellation: an acquisition that already started
// runs to its own deadline unless Abort is called.
func (b *Bot) Start(ctx context.Context, handle UpdateHandler) error {
	handlerCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()
	b.mu.Lock()
	b.abort = abort
	b.mu.Unlock()

	updates, err := b.client.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message", "callback_query", "inline_query"},
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	if me, err := b.client.GetMe(ctx); err == nil {
		b.logger.Info("bot started", "username", me.Username, "id", me.ID)
	}

	var wg sync.WaitGroup
	for update := range updates {
		wg.Add(1)
		go func(update telego.Update) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("update handler panic", "update_id", update.UpdateID, "panic", r)
				}
			}()
			handle(handlerCtx, b.client, update)
		}(update)
	}
	wg.Wait()
	return nil
}

// Abort cancels every running handler. Start must have been called.
func (b *Bot) Abort() {
	b.mu.Lock()
	abort := b.abort
	b.mu.Unlock()
	if abort != nil {
		abort()
	}
}

// Client exposes the underlying bot client.
func (b *Bot) Client() *telego.Bot {
	return b.client
}

// UploadClient exposes a dedicated client for uploads.
func (b *Bot) UploadClient() *telego.Bot {
	if b.upload != nil {
		return b.upload
	}
	return b.client
}

// GetMe retrieves bot info.
func (b *Bot) GetMe(ctx context.Context) (*telego.User, error) {
	return b.client.GetMe(ctx)
}

type telegoLogger struct {
	logger botpkg.Logger
}

func (l telegoLogger) Debugf(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l telegoLogger) Errorf(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Error(fmt.Sprintf(format, args...))
}
