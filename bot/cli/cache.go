package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/flock"
	"github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/cache"
	"github.com/liuran001/TubeBot-Go/bot/config"
	"github.com/liuran001/TubeBot-Go/bot/db"
	"github.com/liuran001/TubeBot-Go/bot/dispatch"
	logpkg "github.com/liuran001/TubeBot-Go/bot/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const stampLayout = "2006-01-02 15:04"

func newCacheCommand(configFlag *string) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the delivery cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(configFlag))
	cacheCmd.AddCommand(newCacheStatsCommand(configFlag))
	cacheCmd.AddCommand(newCacheRemoveCommand(configFlag))

	return cacheCmd
}

func newCacheListCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List delivered tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*configFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.repo.LoadCacheEntries(cmd.Context())
			if err != nil {
				return err
			}
			printCacheEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

func newCacheStatsCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and delivery count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*configFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.repo.Count(cmd.Context())
			if err != nil {
				return err
			}
			sends, err := store.repo.GetSendCount(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cached tracks:   %d\n", count)
			fmt.Fprintf(out, "Files delivered: %d\n", sends)
			return nil
		},
	}
}

func newCacheRemoveCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <candidate-id>...",
		Short: "Forget delivered tracks so they are fetched again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*configFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			var failed int
			for _, id := range args {
				if _, err := store.repo.FindCacheEntry(ctx, id); err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						fmt.Fprintf(out, "%s is not cached\n", id)
						continue
					}
					return err
				}
				if err := store.repo.DeleteCacheEntry(ctx, id); err != nil {
					fmt.Fprintf(out, "%s: %v\n", id, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "removed %s\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d removal(s) failed", failed)
			}
			return nil
		},
	}
}

func printCacheEntries(out io.Writer, entries []bot.CacheEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Cached tracks: none")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		created := "unknown"
		if !entry.CreatedAt.IsZero() {
			created = entry.CreatedAt.Local().Format(stampLayout)
		}
		rows = append(rows, []string{
			entry.CandidateID,
			entry.Artist,
			entry.Title,
			dispatch.FormatDuration(entry.Duration),
			string(entry.Quality),
			created,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Artist", "Title", "Duration", "Quality", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "%d cached\n", len(entries))
}

// store is the cache database opened outside a running bot.
type store struct {
	repo *db.Repository
	lock *flock.Flock
}

// openStore refuses to open a database a running bot holds, since the bot
// keeps its own copy in memory and would not see the change.
func openStore(configPath string) (*store, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	path := strings.TrimSpace(conf.GetString("Database"))
	if path == "" {
		path = "cache.db"
	}

	lock, err := cache.LockDatabase(path)
	if err != nil {
		if errors.Is(err, cache.ErrLocked) {
			return nil, fmt.Errorf("%w; stop the bot or use /rmcache", err)
		}
		return nil, err
	}

	repo, err := db.NewSQLiteRepository(path, logpkg.NewGormLogger(logpkg.Discard().Slog(), gormlogger.Silent))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &store{repo: repo, lock: lock}, nil
}

func (s *store) Close() error {
	err := s.repo.Close()
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}
