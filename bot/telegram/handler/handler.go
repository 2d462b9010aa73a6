package handler

import (
	"context"

	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/mymmrac/telego"
)

// MessageHandler handles message-based commands.
type MessageHandler interface {
	Handle(ctx context.Context, b *telego.Bot, update *telego.Update)
}

// InlineHandler handles inline queries.
type InlineHandler interface {
	Handle(ctx context.Context, b *telego.Bot, update *telego.Update)
}

// CallbackHandler handles callback queries.
type CallbackHandler interface {
	Handle(ctx context.Context, b *telego.Bot, update *telego.Update)
}

// Finder runs an explicit search.
type Finder interface {
	Find(ctx context.Context, requesterID int64, query string) ([]dispatch.Option, error)
}

// Selector serves a chosen candidate.
type Selector interface {
	Select(ctx context.Context, sel dispatch.Selection) (dispatch.Outcome, error)
}

// InlineFinder answers inline lookups.
type InlineFinder interface {
	Inline(ctx context.Context, userID int64, query string) ([]dispatch.InlineResult, error)
}

// SendCounter records successful deliveries.
type SendCounter interface {
	IncrementSendCount(ctx context.Context) error
	GetSendCount(ctx context.Context) (int64, error)
}

// ContributionCounter counts the cache entries a user's requests produced.
type ContributionCounter interface {
	CountByUserID(ctx context.Context, userID int64) (int64, error)
}

// CacheRemover is the operator side of the delivery cache.
type CacheRemover interface {
	Remove(ctx context.Context, candidateID string) error
	Len() int
}

// Activity reports how many acquisitions are running.
type Activity interface {
	Active() int
}

// QuotaReader reports the hourly acquisition quota of a user.
type QuotaReader interface {
	Remaining(userID int64) int
	Limit() int
}
