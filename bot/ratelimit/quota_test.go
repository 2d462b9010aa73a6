package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)}
}

func TestQuotaCapPerHour(t *testing.T) {
	clock := newClock()
	q := NewQuota(DefaultPerHour, WithClock(clock.Now))

	for i := 0; i < DefaultPerHour; i++ {
		require.True(t, q.TryAcquire(7), "call %d should pass", i+1)
	}
	assert.False(t, q.TryAcquire(7), "21st call must be refused")
	assert.Equal(t, 0, q.Remaining(7))

	// Refusals do not count.
	assert.False(t, q.TryAcquire(7))
	assert.True(t, q.TryAcquire(8), "other users are independent")

	clock.Advance(time.Hour)
	assert.True(t, q.TryAcquire(7), "next hour bucket starts fresh")
	assert.Equal(t, DefaultPerHour-1, q.Remaining(7))
}

func TestQuotaBucketIsClockHour(t *testing.T) {
	clock := newClock()
	q := NewQuota(1, WithClock(clock.Now))

	require.True(t, q.TryAcquire(1))
	clock.Advance(50 * time.Minute) // 10:55, same bucket
	assert.False(t, q.TryAcquire(1))
	clock.Advance(10 * time.Minute) // 11:05
	assert.True(t, q.TryAcquire(1))
}

func TestQuotaConcurrentSameUser(t *testing.T) {
	q := NewQuota(DefaultPerHour, WithClock(newClock().Now))

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.TryAcquire(99) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(DefaultPerHour), allowed.Load())
}

func TestQuotaDisabled(t *testing.T) {
	q := NewQuota(0)
	for i := 0; i < 100; i++ {
		require.True(t, q.TryAcquire(1))
	}
	assert.Equal(t, -1, q.Remaining(1))

	var nilQuota *Quota
	assert.True(t, nilQuota.TryAcquire(1))
}

func TestQuotaCompact(t *testing.T) {
	clock := newClock()
	q := NewQuota(5, WithClock(clock.Now))
	q.TryAcquire(1)
	q.TryAcquire(2)

	assert.Equal(t, 0, q.Compact(), "current bucket is kept")
	clock.Advance(time.Hour)
	q.TryAcquire(3)

	assert.Equal(t, 2, q.Compact())
	assert.Equal(t, 1, q.size())
}
