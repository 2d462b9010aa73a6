// Package download fetches small remote files such as thumbnails with
// retries and a circuit breaker in front of the remote host.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/liuran001/TubeBot-Go/bot"
	"github.com/sony/gobreaker"
)

// ErrTooLarge is returned when the body exceeds the configured limit.
var ErrTooLarge = errors.New("download: response too large")

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download failed with status %d", e.Code)
}

// Options configures a Service.
type Options struct {
	Timeout    time.Duration
	MaxBytes   int64
	RetryMax   int
	HTTPClient *http.Client
	Logger     bot.Logger
}

// Service downloads URLs to local files.
type Service struct {
	client   *retryablehttp.Client
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	maxBytes int64
	logger   bot.Logger
}

// New creates a download service.
func New(opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 * 1024 * 1024
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 3
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	if opts.HTTPClient != nil {
		client.HTTPClient = opts.HTTPClient
	} else {
		client.HTTPClient = &http.Client{Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   minDuration(opts.Timeout, 10*time.Second),
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   minDuration(opts.Timeout, 10*time.Second),
			ResponseHeaderTimeout: minDuration(opts.Timeout, 10*time.Second),
		}}
	}

	settings := gobreaker.Settings{
		Name:        "thumbnail-download",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A missing thumbnail says nothing about the health of the host.
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.Code < 500
			}
			return err == nil || errors.Is(err, ErrTooLarge) || errors.Is(err, context.Canceled)
		},
	}

	return &Service{
		client:   client,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		logger:   opts.Logger,
	}
}

// Download writes rawURL to destPath and returns the number of bytes written.
// A partial file is removed on failure.
func (s *Service) Download(ctx context.Context, rawURL, destPath string) (int64, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return 0, errors.New("download url missing")
	}
	if destPath == "" {
		return 0, errors.New("dest path missing")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.downloadOnce(ctx, rawURL, destPath)
	})
	if err != nil {
		_ = os.Remove(destPath)
		if s.logger != nil {
			s.logger.Debug("download failed", "url", rawURL, "error", err)
		}
		return 0, err
	}
	return result.(int64), nil
}

func (s *Service) downloadOnce(ctx context.Context, rawURL, destPath string) (int64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; TubeBot)")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{Code: resp.StatusCode}
	}
	if resp.ContentLength > s.maxBytes {
		return 0, ErrTooLarge
	}

	file, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}
	written, copyErr := io.Copy(file, io.LimitReader(resp.Body, s.maxBytes+1))
	closeErr := file.Close()
	if copyErr != nil {
		return written, copyErr
	}
	if closeErr != nil {
		return written, closeErr
	}
	if written > s.maxBytes {
		return written, ErrTooLarge
	}
	return written, nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a == 0 || a > b {
		return b
	}
	return a
}
