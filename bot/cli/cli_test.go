package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/app"
	"github.com/liuran001/TubeBot-Go/bot/cache"
	"github.com/liuran001/TubeBot-Go/bot/db"
	logpkg "github.com/liuran001/TubeBot-Go/bot/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

type cliEnv struct {
	configPath string
	dbPath     string
}

func setupCLIEnv(t *testing.T, entries ...bot.CacheEntry) cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliEnv{
		configPath: filepath.Join(dir, "config.ini"),
		dbPath:     filepath.Join(dir, "cache.db"),
	}
	require.NoError(t, os.WriteFile(env.configPath, []byte("BOT_TOKEN = 1:x\nDatabase = "+env.dbPath+"\n"), 0o600))

	repo, err := db.NewSQLiteRepository(env.dbPath, logpkg.NewGormLogger(logpkg.Discard().Slog(), gormlogger.Silent))
	require.NoError(t, err)
	for _, entry := range entries {
		require.NoError(t, repo.SaveCacheEntry(context.Background(), entry))
	}
	require.NoError(t, repo.Close())
	return env
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(app.BuildInfo{BinVersion: "v1.2.3"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func believer() bot.CacheEntry {
	return bot.CacheEntry{
		CandidateID: "7wtfhZwyrcc",
		FileRef:     "CQACAgIAAxkBAAI",
		Title:       "Believer",
		Artist:      "Imagine Dragons",
		Duration:    217,
		Quality:     bot.QualityHigh,
		FromUserID:  42,
		FromChatID:  42,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
	}
}

func TestCacheList(t *testing.T) {
	env := setupCLIEnv(t, believer())

	out, err := runCLI(t, "-c", env.configPath, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "7wtfhZwyrcc")
	assert.Contains(t, out, "Imagine Dragons")
	assert.Contains(t, out, "3:37")
	assert.Contains(t, out, "1 cached")
}

func TestCacheListEmpty(t *testing.T) {
	env := setupCLIEnv(t)

	out, err := runCLI(t, "--config", env.configPath, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Cached tracks: none")
}

func TestCacheRemove(t *testing.T) {
	env := setupCLIEnv(t, believer())

	out, err := runCLI(t, "-c", env.configPath, "cache", "rm", "7wtfhZwyrcc", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 7wtfhZwyrcc")
	assert.Contains(t, out, "missing is not cached")

	out, err = runCLI(t, "-c", env.configPath, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Cached tracks:   0")
}

func TestCacheCommandsRefuseWhileBotRuns(t *testing.T) {
	env := setupCLIEnv(t, believer())
	lock, err := cache.LockDatabase(env.dbPath)
	require.NoError(t, err)
	defer lock.Unlock()

	_, err = runCLI(t, "-c", env.configPath, "cache", "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, cache.ErrLocked)
}

func TestCacheRemoveRequiresID(t *testing.T) {
	env := setupCLIEnv(t)

	_, err := runCLI(t, "-c", env.configPath, "cache", "rm")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "v1.2.3")
	assert.Contains(t, out, "unknown")
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]string{"A", "B"}, [][]string{{"left", "9"}, {"short"}}, []columnAlignment{alignLeft, alignRight})
	lines := strings.Split(got, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Contains(t, got, "left")
	assert.Contains(t, got, "short")
	assert.Empty(t, renderTable(nil, nil, nil))
}
