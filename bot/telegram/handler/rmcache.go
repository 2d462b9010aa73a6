package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/cache"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/mymmrac/telego"
)

// RmCacheHandler handles the admin-only /rmcache command.
type RmCacheHandler struct {
	Cache       CacheRemover
	AdminIDs    map[int64]struct{}
	RateLimiter *telegram.RateLimiter
	Logger      botpkg.Logger
}

func (h *RmCacheHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	if update == nil || update.Message == nil || h.Cache == nil {
		return
	}
	message := update.Message
	if message.From == nil || !isBotAdmin(h.AdminIDs, message.From.ID) {
		_, _ = replyText(ctx, h.RateLimiter, b, message, adminOnly)
		return
	}

	fields := strings.Fields(commandArguments(message.Text))
	if len(fields) == 0 {
		_, _ = replyText(ctx, h.RateLimiter, b, message, rmcacheUsage)
		return
	}

	results := make([]string, 0, len(fields))
	for _, id := range fields {
		err := h.Cache.Remove(ctx, id)
		switch {
		case err == nil:
			results = append(results, fmt.Sprintf(rmcacheDone, id))
			if h.Logger != nil {
				h.Logger.Info("cache entry removed", "candidate", id, "admin", message.From.ID)
			}
		case errors.Is(err, cache.ErrNotFound):
			results = append(results, fmt.Sprintf(rmcacheNotFound, id))
		default:
			results = append(results, fmt.Sprintf(rmcacheFailed, id))
			if h.Logger != nil {
				h.Logger.Error("failed to remove cache entry", "candidate", id, "error", err)
			}
		}
	}
	_, _ = replyText(ctx, h.RateLimiter, b, message, strings.Join(results, "\n"))
}
