package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/liuran001/TubeBot-Go/bot"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrCorrupt is returned when the database fails its integrity check at open.
var ErrCorrupt = errors.New("db: integrity check failed")

// Repository provides access to the delivery cache database.
type Repository struct {
	db             *gorm.DB
	defaultQuality bot.QualityTier
}

// NewSQLiteRepository creates a repository backed by SQLite.
func NewSQLiteRepository(dsn string, gormLogger logger.Interface) (*Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn required")
	}

	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	dbDir := filepath.Dir(dsn)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := checkIntegrity(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := applySQLitePragmas(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := db.AutoMigrate(&CacheEntryModel{}, &UserSettingsModel{}, &BotStatModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Repository{
		db:             db,
		defaultQuality: bot.DefaultQuality,
	}, nil
}

// ConfigurePool updates the database connection pool settings.
func (r *Repository) ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if maxOpen >= 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime >= 0 {
		sqlDB.SetConnMaxLifetime(maxLifetime)
	}
	return nil
}

// SetDefaultQuality sets the tier stored for users without settings.
func (r *Repository) SetDefaultQuality(quality string) {
	if r == nil || strings.TrimSpace(quality) == "" {
		return
	}
	if q, err := bot.ParseQuality(quality); err == nil {
		r.defaultQuality = q
	}
}

// LoadCacheEntries returns every delivered track.
func (r *Repository) LoadCacheEntries(ctx context.Context) ([]bot.CacheEntry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repository not configured")
	}
	var models []CacheEntryModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]bot.CacheEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, toInternal(model))
	}
	return entries, nil
}

// FindCacheEntry returns the delivered track for a candidate.
func (r *Repository) FindCacheEntry(ctx context.Context, candidateID string) (*bot.CacheEntry, error) {
	var model CacheEntryModel
	err := r.db.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&model).Error
	if err != nil {
		return nil, err
	}
	entry := toInternal(model)
	return &entry, nil
}

// SaveCacheEntry inserts or replaces the row for entry.CandidateID in one transaction.
func (r *Repository) SaveCacheEntry(ctx context.Context, entry bot.CacheEntry) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	if strings.TrimSpace(entry.CandidateID) == "" {
		return errors.New("candidate id required")
	}
	if strings.TrimSpace(entry.FileRef) == "" {
		return errors.New("file reference required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := toModel(entry)
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "candidate_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"deleted_at",
				"updated_at",
				"file_ref",
				"thumb_ref",
				"title",
				"artist",
				"duration",
				"quality",
				"from_user_id",
				"from_chat_id",
			}),
		}).Create(model).Error
	})
}

// DeleteCacheEntry removes the row for a candidate.
func (r *Repository) DeleteCacheEntry(ctx context.Context, candidateID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Unscoped().Delete(&CacheEntryModel{}, "candidate_id = ?", candidateID).Error
	})
}

// Count returns total cached tracks.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&CacheEntryModel{}).Count(&count).Error
	return count, err
}

// CountByUserID returns cached count by requesting user.
func (r *Repository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&CacheEntryModel{}).Where("from_user_id = ?", userID).Count(&count).Error
	return count, err
}

// GetSendCount returns total successful send count.
func (r *Repository) GetSendCount(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("repository not configured")
	}
	var stat BotStatModel
	err := r.db.WithContext(ctx).Where("key = ?", "send_count").First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return stat.Value, nil
}

// IncrementSendCount increments total successful send count.
func (r *Repository) IncrementSendCount(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BotStatModel{}).Where("key = ?", "send_count").UpdateColumn("value", gorm.Expr("value + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&BotStatModel{Key: "send_count", Value: 1}).Error
	})
}

// GetUserSettings retrieves settings for a user, creating default if not exists.
func (r *Repository) GetUserSettings(ctx context.Context, userID int64) (*bot.UserSettings, error) {
	var settings UserSettingsModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := UserSettingsModel{
			UserID:  userID,
			Quality: r.defaultQuality.String(),
		}
		if createErr := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&defaults).Error; createErr != nil {
			return nil, createErr
		}
		err = r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	}
	if err != nil {
		return nil, err
	}
	return userSettingsToInternal(settings), nil
}

// UpdateUserSettings updates user settings.
func (r *Repository) UpdateUserSettings(ctx context.Context, settings *bot.UserSettings) error {
	if settings == nil {
		return errors.New("settings required")
	}
	if !settings.Quality.Valid() {
		return fmt.Errorf("invalid quality tier %q", settings.Quality)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "quality"}),
	}).Create(&UserSettingsModel{
		UserID:  settings.UserID,
		Quality: settings.Quality.String(),
	}).Error
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func checkIntegrity(db *gorm.DB) error {
	var rows []string
	if err := db.Raw("PRAGMA integrity_check").Scan(&rows).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(rows) != 1 || !strings.EqualFold(rows[0], "ok") {
		return fmt.Errorf("%w: %s", ErrCorrupt, strings.Join(rows, "; "))
	}
	return nil
}

func applySQLitePragmas(db *gorm.DB) error {
	// synchronous=FULL: a put must survive power loss once it returns.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA cache_size=-64000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, stmt := range pragmas {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
