// Package resolver turns a free-text query into provider candidates.
package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/provider"
)

// Searcher is the part of provider.Provider the resolver needs.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]bot.Candidate, error)
}

var _ Searcher = provider.Provider(nil)

const (
	DefaultLimit   = 5
	DefaultTimeout = 20 * time.Second
)

// Resolver calls the provider once per query and never reorders its results.
type Resolver struct {
	searcher Searcher
	maxLimit int
	timeout  time.Duration
	logger   bot.Logger
}

// New creates a resolver. maxLimit and timeout fall back to defaults when <= 0.
func New(searcher Searcher, maxLimit int, timeout time.Duration, logger bot.Logger) *Resolver {
	if maxLimit <= 0 {
		maxLimit = DefaultLimit
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{searcher: searcher, maxLimit: maxLimit, timeout: timeout, logger: logger}
}

// Search returns up to limit candidates in provider order.
// Provider failures are logged and yield an empty result.
func (r *Resolver) Search(ctx context.Context, query string, limit int) []bot.Candidate {
	query = strings.TrimSpace(query)
	if query == "" || r.searcher == nil {
		return nil
	}
	if limit <= 0 || limit > r.maxLimit {
		limit = r.maxLimit
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	candidates, err := r.searcher.Search(searchCtx, query, limit)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("provider unavailable",
				"provider", r.searcher.Name(),
				"query", query,
				"timeout", errors.Is(err, context.DeadlineExceeded) || errors.Is(searchCtx.Err(), context.DeadlineExceeded),
				"error", err,
			)
		}
		return nil
	}

	out := make([]bot.Candidate, 0, min(len(candidates), limit))
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate.ID) == "" {
			continue
		}
		out = append(out, candidate)
		if len(out) == limit {
			break
		}
	}
	return out
}
