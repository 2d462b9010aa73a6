// Package ratelimit caps how many acquisitions a user may start per clock hour.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/liuran001/TubeBot-Go/bot"
)

// DefaultPerHour is the acquisition cap used when none is configured.
const DefaultPerHour = 20

type windowKey struct {
	userID int64
	bucket int64
}

// Quota counts acquisitions per (user, hour bucket).
// The check and the increment happen under one lock, so concurrent
// presses by the same user can never both pass a full bucket.
type Quota struct {
	limit   int
	now     func() time.Time
	mu      sync.Mutex
	windows map[windowKey]int
	logger  bot.Logger
}

// Option configures a Quota.
type Option func(*Quota)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Quota) {
		if now != nil {
			q.now = now
		}
	}
}

// WithLogger attaches a logger used by Run.
func WithLogger(logger bot.Logger) Option {
	return func(q *Quota) {
		q.logger = logger
	}
}

// NewQuota creates a quota allowing limit acquisitions per user per hour.
// A limit <= 0 disables the cap.
func NewQuota(limit int, opts ...Option) *Quota {
	q := &Quota{
		limit:   limit,
		now:     time.Now,
		windows: make(map[windowKey]int),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Quota) bucket() int64 {
	return q.now().UTC().Unix() / int64(time.Hour/time.Second)
}

// TryAcquire reports whether userID may start another acquisition and, if so, counts it.
// A refusal leaves the counter untouched.
func (q *Quota) TryAcquire(userID int64) bool {
	if q == nil || q.limit <= 0 {
		return true
	}
	key := windowKey{userID: userID, bucket: q.bucket()}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.windows[key] >= q.limit {
		return false
	}
	q.windows[key]++
	return true
}

// Remaining returns how many acquisitions userID has left in the current hour.
// It returns -1 when the cap is disabled.
func (q *Quota) Remaining(userID int64) int {
	if q == nil || q.limit <= 0 {
		return -1
	}
	key := windowKey{userID: userID, bucket: q.bucket()}

	q.mu.Lock()
	used := q.windows[key]
	q.mu.Unlock()
	if used >= q.limit {
		return 0
	}
	return q.limit - used
}

// Limit returns the configured cap.
func (q *Quota) Limit() int {
	if q == nil {
		return 0
	}
	return q.limit
}

// Compact drops counters of past hours and returns how many were removed.
func (q *Quota) Compact() int {
	if q == nil {
		return 0
	}
	current := q.bucket()

	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for key := range q.windows {
		if key.bucket < current {
			delete(q.windows, key)
			removed++
		}
	}
	return removed
}

// Run compacts every interval until ctx is done.
func (q *Quota) Run(ctx context.Context, interval time.Duration) {
	if q == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := q.Compact(); removed > 0 && q.logger != nil {
				q.logger.Debug("quota windows compacted", "removed", removed)
			}
		}
	}
}

func (q *Quota) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.windows)
}
