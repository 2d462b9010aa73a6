package bot

import "context"

// Logger is the minimal logging abstraction used across modules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// CacheStore is the durable backing store of the delivery cache.
type CacheStore interface {
	LoadCacheEntries(ctx context.Context) ([]CacheEntry, error)
	SaveCacheEntry(ctx context.Context, entry CacheEntry) error
	DeleteCacheEntry(ctx context.Context, candidateID string) error
}

// SettingsStore persists per-user preferences.
type SettingsStore interface {
	GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error)
	UpdateUserSettings(ctx context.Context, settings *UserSettings) error
}

// WorkerPool limits concurrency for background tasks.
type WorkerPool interface {
	Submit(task func()) error
	SubmitWait(task func() error) error
	SubmitWaitContext(ctx context.Context, task func() error) error
	Shutdown(ctx context.Context) error
	Size() int
}
