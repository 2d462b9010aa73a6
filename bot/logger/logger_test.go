package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm/logger"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Options{Level: "warn", Format: "text"})

	log.Info("dropped")
	log.With("candidate", "abc").Warn("kept", "attempt", 2)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "candidate=abc") || !strings.Contains(out, "attempt=2") {
		t.Fatalf("expected structured fields, got %s", out)
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Options{Level: "debug", Format: "json"})
	log.Debug("hello", "k", "v")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected JSON output, got %s", buf.String())
	}
}

func TestParseGormLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"silent": logger.Silent,
		"info":   logger.Info,
		"warn":   logger.Warn,
		"":       logger.Warn,
		"error":  logger.Error,
	}
	for in, want := range tests {
		if got := ParseGormLevel(in); got != want {
			t.Errorf("ParseGormLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGormLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gl := NewGormLogger(base, logger.Error)

	gl.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	if buf.Len() != 0 {
		t.Fatalf("successful query should not be logged at error level: %s", buf.String())
	}

	gl.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, logger.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("record not found should not be logged: %s", buf.String())
	}

	gl.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT x", 0 }, errors.New("boom"))
	if !strings.Contains(buf.String(), "query failed") || !strings.Contains(buf.String(), "component=db") {
		t.Fatalf("expected failed query log, got %s", buf.String())
	}
}

func TestGormLoggerSlowQuery(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gl := NewGormLogger(base, logger.Warn, WithSlowThreshold(time.Millisecond))

	long := "INSERT INTO cache_entries " + strings.Repeat("x", 2*maxLoggedSQL)
	gl.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return long, 1 }, nil)

	out := buf.String()
	if !strings.Contains(out, "slow query") {
		t.Fatalf("expected slow query log, got %s", out)
	}
	if strings.Contains(out, long) {
		t.Fatalf("long statements should be truncated")
	}
}

func TestGormLoggerPrintf(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gl := NewGormLogger(base, logger.Warn)

	gl.Info(context.Background(), "ignored %d", 1)
	gl.Warn(context.Background(), "migrating %s", "cache_entries")

	out := buf.String()
	if strings.Contains(out, "ignored") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "migrating cache_entries") {
		t.Fatalf("expected formatted warning, got %s", out)
	}
}
