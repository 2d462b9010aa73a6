package telegram

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	"golang.org/x/time/rate"
)

const maxSendAttempts = 3

// ErrRetriesExhausted is returned when Telegram keeps answering with retry-after.
var ErrRetriesExhausted = errors.New("telegram: retry-after limit exhausted")

// RateLimiter keeps one token bucket per chat so a busy group cannot starve
// everyone else of the bot's send budget. Inline message edits carry no chat
// and share bucket 0.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[int64]*chatBucket
	rate    rate.Limit
	burst   int
	now     func() time.Time
	logger  botpkg.Logger
}

type chatBucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewRateLimiter allows msgPerSec sends per chat with the given burst.
func NewRateLimiter(msgPerSec float64, burst int) *RateLimiter {
	if msgPerSec <= 0 {
		msgPerSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[int64]*chatBucket),
		rate:    rate.Limit(msgPerSec),
		burst:   burst,
		now:     time.Now,
	}
}

func (rl *RateLimiter) SetLogger(logger botpkg.Logger) {
	rl.logger = logger
}

func (rl *RateLimiter) logError(msg string, args ...any) {
	if rl != nil && rl.logger != nil {
		rl.logger.Error(msg, args...)
	}
}

func (rl *RateLimiter) bucket(chatID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[chatID]
	if !ok {
		b = &chatBucket{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.buckets[chatID] = b
	}
	b.lastUsed = rl.now()
	return b.limiter
}

// Wait blocks until chatID may send again or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context, chatID int64) error {
	return rl.bucket(chatID).Wait(ctx)
}

// Compact forgets chats idle for longer than idle and returns how many were dropped.
// A forgotten chat starts again with a full burst, which an idle chat has anyway.
func (rl *RateLimiter) Compact(idle time.Duration) int {
	cutoff := rl.now().Add(-idle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	dropped := 0
	for chatID, b := range rl.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(rl.buckets, chatID)
			dropped++
		}
	}
	return dropped
}

// Run compacts every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Compact(interval); n > 0 && rl.logger != nil {
				rl.logger.Debug("send limiter compacted", "chats", n)
			}
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry\s+after[:\s]+(\d+)`)

func parseRetryAfter(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var tgErr *ta.Error
	if errors.As(err, &tgErr) && tgErr.Parameters != nil && tgErr.Parameters.RetryAfter > 0 {
		return tgErr.Parameters.RetryAfter, true
	}

	if matches := retryAfterPattern.FindStringSubmatch(err.Error()); len(matches) == 2 {
		if parsed, parseErr := strconv.Atoi(matches[1]); parseErr == nil {
			return parsed, parsed > 0
		}
	}
	return 0, false
}

// IsMessageNotModified reports Telegram's complaint about an edit that changes nothing.
func IsMessageNotModified(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

// WithRetry waits for the chat's token bucket and retries fn while Telegram
// answers with a retry-after hint.
func WithRetry(ctx context.Context, rl *RateLimiter, chatID int64, fn func() error) error {
	if fn == nil {
		return nil
	}
	if rl == nil {
		return fn()
	}
	var lastErr error
	for attempt := 0; attempt < maxSendAttempts; attempt++ {
		if err := rl.Wait(ctx, chatID); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		retryAfter, shouldRetry := parseRetryAfter(lastErr)
		if !shouldRetry {
			return lastErr
		}

		if attempt < maxSendAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(retryAfter) * time.Second):
			}
		}
	}
	return errors.Join(ErrRetriesExhausted, lastErr)
}

// send runs one Bot API call through WithRetry and logs the final failure.
func send[T any](ctx context.Context, rl *RateLimiter, method string, chatID int64, call func() (T, error), logArgs ...any) (T, error) {
	var result T
	err := WithRetry(ctx, rl, chatID, func() error {
		r, err := call()
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil && !IsMessageNotModified(err) {
		rl.logError(method+" failed", append([]any{"chat_id", chatID, "error", err}, logArgs...)...)
	}
	return result, err
}

func SendMessageWithRetry(ctx context.Context, rl *RateLimiter, b *telego.Bot, params *telego.SendMessageParams) (*telego.Message, error) {
	return send(ctx, rl, "sendMessage", params.ChatID.ID, func() (*telego.Message, error) {
		return b.SendMessage(ctx, params)
	})
}

func EditMessageTextWithRetry(ctx context.Context, rl *RateLimiter, b *telego.Bot, params *telego.EditMessageTextParams) (*telego.Message, error) {
	return send(ctx, rl, "editMessageText", params.ChatID.ID, func() (*telego.Message, error) {
		return b.EditMessageText(ctx, params)
	}, "message_id", params.MessageID, "inline_message_id", params.InlineMessageID)
}

func EditMessageMediaWithRetry(ctx context.Context, rl *RateLimiter, b *telego.Bot, params *telego.EditMessageMediaParams) (*telego.Message, error) {
	return send(ctx, rl, "editMessageMedia", params.ChatID.ID, func() (*telego.Message, error) {
		return b.EditMessageMedia(ctx, params)
	}, "inline_message_id", params.InlineMessageID)
}

func DeleteMessageWithRetry(ctx context.Context, rl *RateLimiter, b *telego.Bot, params *telego.DeleteMessageParams) error {
	_, err := send(ctx, rl, "deleteMessage", params.ChatID.ID, func() (struct{}, error) {
		return struct{}{}, b.DeleteMessage(ctx, params)
	}, "message_id", params.MessageID)
	return err
}

func SendAudioWithRetry(ctx context.Context, rl *RateLimiter, b *telego.Bot, params *telego.SendAudioParams) (*telego.Message, error) {
	return send(ctx, rl, "sendAudio", params.ChatID.ID, func() (*telego.Message, error) {
		return b.SendAudio(ctx, params)
	})
}
