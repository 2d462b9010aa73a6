package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/acquire"
	"github.com/liuran001/TubeBot-Go/bot/cache"
	"github.com/liuran001/TubeBot-Go/bot/config"
	"github.com/liuran001/TubeBot-Go/bot/db"
	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	"github.com/liuran001/TubeBot-Go/bot/download"
	"github.com/liuran001/TubeBot-Go/bot/id3"
	logpkg "github.com/liuran001/TubeBot-Go/bot/logger"
	"github.com/liuran001/TubeBot-Go/bot/provider"
	"github.com/liuran001/TubeBot-Go/bot/provider/ytdlp"
	"github.com/liuran001/TubeBot-Go/bot/ratelimit"
	"github.com/liuran001/TubeBot-Go/bot/resolver"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/liuran001/TubeBot-Go/bot/telegram/handler"
	"github.com/liuran001/TubeBot-Go/bot/worker"
	"github.com/mymmrac/telego"
)

// App wires all application dependencies.
type App struct {
	Config     *config.Config
	Logger     *logpkg.Logger
	DB         *db.Repository
	Lock       *flock.Flock
	Cache      *cache.DeliveryCache
	Quota      *ratelimit.Quota
	Pool       *worker.Pool
	Telegram   *telegram.Bot
	Limiter    *telegram.RateLimiter
	Dispatcher *dispatch.Dispatcher
	Whitelist  *handler.Whitelist
	Build      BuildInfo

	done chan struct{}
}

// BuildInfo provides build-time metadata.
type BuildInfo struct {
	RuntimeVer string
	BinVersion string
	CommitSHA  string
	BuildTime  string
	BuildArch  string
}

// Providers lists the search and extraction backends compiled into the binary.
func Providers() *provider.Registry {
	r := provider.NewRegistry()
	if err := ytdlp.Register(r); err != nil {
		panic(err)
	}
	return r
}

// New builds the application container. A broken config or an unreadable
// delivery cache aborts startup.
func New(ctx context.Context, configPath string, build BuildInfo) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	log, err := logpkg.New(logpkg.Options{
		Level:     conf.GetString("LogLevel"),
		Format:    conf.GetString("LogFormat"),
		AddSource: conf.GetBool("LogSource"),
		Dir:       conf.GetString("LogDir"),
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: conf, Logger: log, Build: build}
	a.Whitelist = handler.NewWhitelist(
		conf.GetBool("EnableWhitelist"),
		conf.GetInt64Slice(handler.WhitelistKey),
		handler.AdminSet(conf.GetInt64Slice("BotAdmin")),
		configPath,
	)
	if err := a.init(ctx); err != nil {
		if a.Pool != nil {
			a.Pool.StopNow()
		}
		_ = a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	conf, log := a.Config, a.Logger

	cacheDir := strings.TrimSpace(conf.GetString("CacheDir"))
	if cacheDir == "" {
		cacheDir = "./cache"
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	databasePath := strings.TrimSpace(conf.GetString("Database"))
	if databasePath == "" {
		databasePath = "cache.db"
	}
	if err := os.MkdirAll(filepath.Dir(databasePath), 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}

	lock, err := cache.LockDatabase(databasePath)
	if err != nil {
		return err
	}
	a.Lock = lock

	gormLogger := logpkg.NewGormLogger(log.Slog(), logpkg.ParseGormLevel(conf.GetString("GormLogLevel")),
		logpkg.WithSlowThreshold(time.Duration(conf.GetInt("DBSlowQueryMs"))*time.Millisecond))
	repo, err := db.NewSQLiteRepository(databasePath, gormLogger)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	a.DB = repo
	lifetime := conf.GetSeconds("DBConnMaxLifetimeSec")
	if err := repo.ConfigurePool(conf.GetInt("DBMaxOpenConns"), conf.GetInt("DBMaxIdleConns"), lifetime); err != nil {
		return fmt.Errorf("configure db pool: %w", err)
	}
	repo.SetDefaultQuality(conf.GetString("DefaultQuality"))

	deliveries, err := cache.Load(ctx, repo, log)
	if err != nil {
		return fmt.Errorf("load delivery cache: %w", err)
	}
	a.Cache = deliveries

	a.Quota = ratelimit.NewQuota(conf.GetInt("AcquireQuotaPerHour"), ratelimit.WithLogger(log))
	a.Pool = worker.New(conf.GetInt("WorkerPoolSize"), worker.WithLogger(log.With("component", "worker")))

	providerName := strings.TrimSpace(conf.GetString("Provider"))
	source, err := Providers().Build(providerName, conf, log.With("provider", providerName))
	if err != nil {
		return err
	}

	tele, err := telegram.New(conf, log)
	if err != nil {
		return fmt.Errorf("init telegram: %w", err)
	}
	a.Telegram = tele

	a.Limiter = telegram.NewRateLimiter(conf.GetFloat64("RateLimitPerSecond"), conf.GetInt("RateLimitBurst"))
	a.Limiter.SetLogger(log)

	thumbnails := download.New(download.Options{
		Timeout: conf.GetSeconds("ThumbnailTimeout"),
		Logger:  log,
	})
	channel := telegram.NewDelivery(tele.UploadClient(), a.Limiter, conf.GetInt64("InlineUploadChatID"), log)

	pipeline, err := acquire.New(acquire.Options{
		Fetcher:    source,
		Thumbnails: thumbnails,
		Tagger:     id3.NewService(log),
		Channel:    channel,
		Cache:      deliveries,
		WorkDir:    cacheDir,
		Timeout:    conf.GetSeconds("AcquireTimeout"),
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	defaultQuality, err := bot.ParseQuality(conf.GetString("DefaultQuality"))
	if err != nil {
		log.Warn("invalid DefaultQuality, using high", "value", conf.GetString("DefaultQuality"))
		defaultQuality = bot.DefaultQuality
	}

	a.Dispatcher = dispatch.New(dispatch.Options{
		Resolver:       resolver.New(source, conf.GetInt("MaxSearchLimit"), conf.GetSeconds("SearchTimeout"), log),
		Cache:          deliveries,
		Pipeline:       pipeline,
		Quota:          a.Quota,
		Settings:       repo,
		Pool:           a.Pool,
		DefaultQuality: defaultQuality,
		FindLimit:      conf.GetInt("MaxSearchLimit"),
		InlineLimit:    conf.GetInt("InlineSearchLimit"),
		Logger:         log,
	})

	log.Info("application initialised",
		"provider", source.Name(),
		"cached", deliveries.Len(),
		"version", a.Build.BinVersion,
	)
	return nil
}

// Router builds the update router for a bot account named botName.
func (a *App) Router(botName string) *handler.Router {
	admins := handler.AdminSet(a.Config.GetInt64Slice("BotAdmin"))
	defaultQuality, err := bot.ParseQuality(a.Config.GetString("DefaultQuality"))
	if err != nil {
		defaultQuality = bot.DefaultQuality
	}
	rl := a.Limiter

	return &handler.Router{
		Help:     &handler.HelpHandler{BotName: botName, RateLimiter: rl, Logger: a.Logger},
		Search:   &handler.SearchHandler{Finder: a.Dispatcher, RateLimiter: rl, Logger: a.Logger},
		Status:   &handler.StatusHandler{Cache: a.Cache, Quota: a.Quota, Stats: a.DB, Contributed: a.DB, Pool: a.Pool, RateLimiter: rl, Logger: a.Logger},
		Settings: &handler.SettingsHandler{Repo: a.DB, RateLimiter: rl, DefaultQuality: defaultQuality, Logger: a.Logger},
		RmCache:  &handler.RmCacheHandler{Cache: a.Cache, AdminIDs: admins, RateLimiter: rl, Logger: a.Logger},
		Whitelist: &handler.WhitelistHandler{
			Whitelist:   a.Whitelist,
			AdminIDs:    admins,
			BotName:     botName,
			RateLimiter: rl,
			Logger:      a.Logger,
		},
		Callback: &handler.DownloadCallbackHandler{
			Selector:     a.Dispatcher,
			RateLimiter:  rl,
			Stats:        a.DB,
			AdminIDs:     admins,
			UploadChatID: a.Config.GetInt64("InlineUploadChatID"),
			Logger:       a.Logger,
		},
		SettingsCallback: &handler.SettingsCallbackHandler{Repo: a.DB, RateLimiter: rl, Logger: a.Logger},
		Inline:           &handler.InlineSearchHandler{Finder: a.Dispatcher, Logger: a.Logger},
		Gate:             a.Whitelist,
		BotName:          botName,
	}
}

// Start registers commands and begins polling in the background.
func (a *App) Start(ctx context.Context) error {
	meCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	me, err := a.Telegram.GetMe(meCtx)
	if err != nil {
		return fmt.Errorf("getMe: %w", err)
	}

	router := a.Router(me.Username)

	commands := []telego.BotCommand{
		{Command: "start", Description: "Start the bot"},
		{Command: "search", Description: "Search for a track"},
		{Command: "settings", Description: "Choose download quality"},
		{Command: "status", Description: "Show cache and quota stats"},
		{Command: "help", Description: "How to use the bot"},
	}
	if err := a.Telegram.Client().SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands}); err != nil {
		a.Logger.Warn("set commands failed", "error", err)
	}

	interval := time.Duration(a.Config.GetInt("QuotaCompactMinutes")) * time.Minute
	go a.Quota.Run(ctx, interval)
	go a.Limiter.Run(ctx, interval)

	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		if err := a.Telegram.Start(ctx, router.Handle); err != nil {
			a.Logger.Error("polling stopped", "error", err)
		}
	}()
	return nil
}

// abortGrace is how long Shutdown waits for handlers to report an abort.
const abortGrace = 10 * time.Second

// Shutdown waits for in-flight updates until ctx is done, then aborts them
// and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if a.done != nil {
		select {
		case <-a.done:
		case <-ctx.Done():
			firstErr = fmt.Errorf("wait for handlers: %w", ctx.Err())
			// Handlers report the cancellation to their users before returning.
			a.Telegram.Abort()
			select {
			case <-a.done:
			case <-time.After(abortGrace):
				a.Logger.Warn("handlers still running after abort")
			}
		}
	}

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Pool.StopNow()
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown worker pool: %w", err)
			}
		}
	}

	if err := a.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *App) close() error {
	var errs []error
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("failed to close database", "error", err)
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		a.DB = nil
	}
	if a.Lock != nil {
		if err := a.Lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
		a.Lock = nil
	}
	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger: %w", err))
		}
	}
	return errors.Join(errs...)
}
