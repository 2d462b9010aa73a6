// Package dispatch maps user intents (find, select, inline lookup) onto the
// resolver, rate limiter, delivery cache and acquisition pipeline. It knows
// nothing about the messaging transport.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/acquire"
	"github.com/liuran001/TubeBot-Go/bot/normalize"
)

var (
	ErrEmptyQuery  = errors.New("dispatch: empty query")
	ErrRateLimited = errors.New("dispatch: hourly download limit reached")
)

const labelTitleRunes = 50

// Searcher resolves free text into candidates.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []bot.Candidate
}

// Cache is the read side of the delivery cache.
type Cache interface {
	Get(candidateID string) (bot.CacheEntry, bool)
}

// Acquirer runs an acquisition.
type Acquirer interface {
	Acquire(ctx context.Context, req acquire.Request) (acquire.Result, error)
}

// Limiter is the per-user acquisition quota.
type Limiter interface {
	TryAcquire(userID int64) bool
}

// Option is one entry of an explicit search result list.
type Option struct {
	Candidate bot.Candidate
	Name      bot.NormalizedTitle
	Label     string
	Payload   string
}

// InlineResult is one entry of an inline lookup. Cached results carry the
// delivered entry; the others carry a deferred download payload.
type InlineResult struct {
	Candidate bot.Candidate
	Name      bot.NormalizedTitle
	Cached    bool
	Entry     bot.CacheEntry
	Payload   string
}

// Selection is a user's choice of a candidate.
type Selection struct {
	UserID      int64
	CandidateID string
	Target      bot.Target
	OnStage     func(acquire.Stage)
}

// Outcome reports how a selection was served. Joined is set when the same
// user's identical selection was already running; only that one is charged.
type Outcome struct {
	Entry     bot.CacheEntry
	FromCache bool
	Joined    bool
}

type selectionKey struct {
	userID      int64
	candidateID string
	target      bot.Target
}

// Options configures a Dispatcher.
type Options struct {
	Resolver       Searcher
	Cache          Cache
	Pipeline       Acquirer
	Quota          Limiter
	Settings       bot.SettingsStore
	Pool           bot.WorkerPool
	DefaultQuality bot.QualityTier
	FindLimit      int
	InlineLimit    int
	Logger         bot.Logger
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	resolver       Searcher
	cache          Cache
	pipeline       Acquirer
	quota          Limiter
	settings       bot.SettingsStore
	pool           bot.WorkerPool
	defaultQuality bot.QualityTier
	findLimit      int
	inlineLimit    int
	logger         bot.Logger

	mu      sync.Mutex
	running map[selectionKey]int
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	if !opts.DefaultQuality.Valid() {
		opts.DefaultQuality = bot.DefaultQuality
	}
	return &Dispatcher{
		resolver:       opts.Resolver,
		cache:          opts.Cache,
		pipeline:       opts.Pipeline,
		quota:          opts.Quota,
		settings:       opts.Settings,
		pool:           opts.Pool,
		defaultQuality: opts.DefaultQuality,
		findLimit:      opts.FindLimit,
		inlineLimit:    opts.InlineLimit,
		logger:         opts.Logger,
		running:        make(map[selectionKey]int),
	}
}

// Find searches for query and returns one deferred download option per
// candidate. The cache is not consulted: every option goes through Select.
func (d *Dispatcher) Find(ctx context.Context, requesterID int64, query string) ([]Option, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	candidates := d.resolver.Search(ctx, query, d.findLimit)
	options := make([]Option, 0, len(candidates))
	for i, candidate := range candidates {
		options = append(options, Option{
			Candidate: candidate,
			Name:      normalize.Normalize(candidate.Title, candidate.Uploader),
			Label:     Label(i+1, candidate),
			Payload:   EncodePayload(Payload{CandidateID: candidate.ID, RequesterID: requesterID}),
		})
	}
	return options, nil
}

// Select serves a chosen candidate. A cached candidate is re-sent without
// touching the quota; anything else is charged to the user and acquired on
// the worker pool.
func (d *Dispatcher) Select(ctx context.Context, sel Selection) (Outcome, error) {
	sel.CandidateID = strings.TrimSpace(sel.CandidateID)
	if sel.CandidateID == "" {
		return Outcome{}, fmt.Errorf("%w: empty candidate", ErrInvalidPayload)
	}

	req := acquire.Request{
		CandidateID: sel.CandidateID,
		Target:      sel.Target,
		Requester:   sel.UserID,
		OnStage:     sel.OnStage,
	}

	if _, ok := d.cache.Get(sel.CandidateID); ok {
		res, err := d.pipeline.Acquire(ctx, req)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Entry: res.Entry, FromCache: true}, nil
	}

	key := selectionKey{userID: sel.UserID, candidateID: sel.CandidateID, target: sel.Target}
	joined, admitted := d.admit(key)
	if !admitted {
		d.warn("acquisition refused by quota", "user", sel.UserID, "candidate", sel.CandidateID)
		return Outcome{}, ErrRateLimited
	}
	defer d.end(key)
	req.Quality = d.qualityFor(ctx, sel.UserID)

	var res acquire.Result
	run := func() error {
		var err error
		res, err = d.pipeline.Acquire(ctx, req)
		return err
	}
	var err error
	if d.pool != nil {
		err = d.pool.SubmitWaitContext(ctx, run)
	} else {
		err = run()
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Entry: res.Entry, FromCache: res.FromCache, Joined: joined}, nil
}

// admit registers a running selection. A selection identical to one already
// running joins it without a quota charge; any other must pass the quota.
func (d *Dispatcher) admit(key selectionKey) (joined, admitted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running[key] > 0 {
		d.running[key]++
		return true, true
	}
	if d.quota != nil && !d.quota.TryAcquire(key.userID) {
		return false, false
	}
	d.running[key] = 1
	return false, true
}

func (d *Dispatcher) end(key selectionKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running[key] <= 1 {
		delete(d.running, key)
		return
	}
	d.running[key]--
}

func (d *Dispatcher) runningCount(key selectionKey) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running[key]
}

// Inline resolves query and marks every candidate that can be answered
// straight from the cache.
func (d *Dispatcher) Inline(ctx context.Context, userID int64, query string) ([]InlineResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	candidates := d.resolver.Search(ctx, query, d.inlineLimit)
	results := make([]InlineResult, 0, len(candidates))
	for _, candidate := range candidates {
		result := InlineResult{
			Candidate: candidate,
			Name:      normalize.Normalize(candidate.Title, candidate.Uploader),
		}
		if entry, ok := d.cache.Get(candidate.ID); ok {
			result.Cached = true
			result.Entry = entry
		} else {
			result.Payload = EncodePayload(Payload{CandidateID: candidate.ID, RequesterID: userID})
		}
		results = append(results, result)
	}
	return results, nil
}

func (d *Dispatcher) qualityFor(ctx context.Context, userID int64) bot.QualityTier {
	if d.settings == nil {
		return d.defaultQuality
	}
	settings, err := d.settings.GetUserSettings(ctx, userID)
	if err != nil || settings == nil || !settings.Quality.Valid() {
		if err != nil {
			d.warn("failed to load user settings", "user", userID, "error", err)
		}
		return d.defaultQuality
	}
	return settings.Quality
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

// Label renders a search button: "{i}. {title, 50 runes}... ({m:ss})".
func Label(index int, candidate bot.Candidate) string {
	return fmt.Sprintf("%d. %s... (%s)", index, truncateRunes(candidate.Title, labelTitleRunes), FormatDuration(candidate.Duration))
}

// FormatDuration renders seconds as m:ss, or "unknown" when absent.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
