package provider

import (
	"errors"
	"fmt"
)

// Common provider errors that can be checked with errors.Is.
var (
	// ErrNotFound is returned when the content does not exist.
	ErrNotFound = errors.New("provider: content not found")

	// ErrUnavailable is returned when content exists but cannot be fetched (private, region locked, removed).
	ErrUnavailable = errors.New("provider: content unavailable")

	// ErrRateLimited is returned when the remote side throttles us.
	ErrRateLimited = errors.New("provider: rate limit exceeded")

	// ErrFailed is returned for any other provider failure.
	ErrFailed = errors.New("provider: request failed")
)

// Error wraps an error with the provider, operation and resource involved.
type Error struct {
	Provider string
	Op       string // "search" or "fetch"
	ID       string
	Err      error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Provider, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with provider context.
func NewError(provider, op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: provider, Op: op, ID: id, Err: err}
}
