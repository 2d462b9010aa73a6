// Package cache keeps the candidate → delivered artifact mapping in memory,
// backed by a durable store that is written through on every Put.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/liuran001/TubeBot-Go/bot"
)

// ErrNotFound is returned by Remove for unknown candidates.
var ErrNotFound = errors.New("cache: entry not found")

// DeliveryCache is safe for concurrent use.
type DeliveryCache struct {
	store   bot.CacheStore
	logger  bot.Logger
	writeMu sync.Mutex // serialises store writes
	mu      sync.RWMutex
	entries map[string]bot.CacheEntry
}

// Load reads every entry from store. Any error is fatal to the caller:
// running with an empty cache would silently drop acquired history.
func Load(ctx context.Context, store bot.CacheStore, logger bot.Logger) (*DeliveryCache, error) {
	if store == nil {
		return nil, errors.New("cache store required")
	}
	entries, err := store.LoadCacheEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load delivery cache: %w", err)
	}

	c := &DeliveryCache{
		store:   store,
		logger:  logger,
		entries: make(map[string]bot.CacheEntry, len(entries)),
	}
	for _, entry := range entries {
		if entry.CandidateID == "" || entry.FileRef == "" {
			return nil, fmt.Errorf("load delivery cache: incomplete entry %q", entry.CandidateID)
		}
		c.entries[entry.CandidateID] = entry
	}
	if logger != nil {
		logger.Info("delivery cache loaded", "entries", len(c.entries))
	}
	return c, nil
}

// Get returns the entry for candidateID.
func (c *DeliveryCache) Get(candidateID string) (bot.CacheEntry, bool) {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return bot.CacheEntry{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[candidateID]
	return entry, ok
}

// Put persists entry and then publishes it in memory. The in-memory map is
// only updated once the store accepted the write.
func (c *DeliveryCache) Put(ctx context.Context, entry bot.CacheEntry) error {
	entry.CandidateID = strings.TrimSpace(entry.CandidateID)
	if entry.CandidateID == "" {
		return errors.New("candidate id cannot be empty")
	}
	if entry.FileRef == "" {
		return errors.New("delivered reference cannot be empty")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.store.SaveCacheEntry(ctx, entry); err != nil {
		return fmt.Errorf("persist cache entry: %w", err)
	}
	c.mu.Lock()
	c.entries[entry.CandidateID] = entry
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("cached delivered track", "candidate", entry.CandidateID, "artist", entry.Artist, "title", entry.Title)
	}
	return nil
}

// Remove deletes an entry. Used by operators to force a fresh acquisition.
func (c *DeliveryCache) Remove(ctx context.Context, candidateID string) error {
	candidateID = strings.TrimSpace(candidateID)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, ok := c.Get(candidateID); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, candidateID)
	}
	if err := c.store.DeleteCacheEntry(ctx, candidateID); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	c.mu.Lock()
	delete(c.entries, candidateID)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached entries.
func (c *DeliveryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a snapshot sorted newest first.
func (c *DeliveryCache) Entries() []bot.CacheEntry {
	c.mu.RLock()
	out := make([]bot.CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CandidateID < out[j].CandidateID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
