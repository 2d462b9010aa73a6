package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDownloadWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	s := New(Options{Timeout: time.Second, HTTPClient: srv.Client()})
	dest := filepath.Join(t.TempDir(), "thumb", "cover.jpg")

	n, err := s.Download(context.Background(), srv.URL+"/hq.jpg", dest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if n != int64(len("jpeg-bytes")) {
		t.Fatalf("unexpected size %d", n)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected file content %q (%v)", data, err)
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := New(Options{Timeout: 5 * time.Second, HTTPClient: srv.Client()})
	if _, err := s.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "a")); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestDownloadNotFoundRemovesFile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := New(Options{Timeout: time.Second, HTTPClient: srv.Client()})
	dest := filepath.Join(t.TempDir(), "missing.jpg")
	_, err := s.Download(context.Background(), srv.URL, dest)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("expected no file on failure")
	}
}

func TestDownloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	s := New(Options{Timeout: time.Second, MaxBytes: 16, HTTPClient: srv.Client()})
	dest := filepath.Join(t.TempDir(), "big")
	if _, err := s.Download(context.Background(), srv.URL, dest); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("expected oversized file to be removed")
	}
}

func TestDownloadValidatesInput(t *testing.T) {
	s := New(Options{})
	if _, err := s.Download(context.Background(), "", "x"); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := s.Download(context.Background(), "http://example.invalid", ""); err == nil {
		t.Fatal("expected error for empty destination")
	}
}
