package acquire

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is against an *Error.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrArtifactMissing   = errors.New("artifact missing after download")
	ErrDeliveryFailed    = errors.New("delivery failed")
	ErrTimeout           = errors.New("acquisition timed out")
)

// Kind classifies an acquisition failure.
type Kind int

const (
	KindSourceUnavailable Kind = iota + 1
	KindArtifactMissing
	KindDeliveryFailed
	KindTimeout
)

func (k Kind) sentinel() error {
	switch k {
	case KindSourceUnavailable:
		return ErrSourceUnavailable
	case KindArtifactMissing:
		return ErrArtifactMissing
	case KindDeliveryFailed:
		return ErrDeliveryFailed
	case KindTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

func (k Kind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by Pipeline.Acquire.
type Error struct {
	Kind        Kind
	CandidateID string
	Err         error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("acquire %s: %s", e.CandidateID, e.Kind)
	}
	return fmt.Sprintf("acquire %s: %s: %v", e.CandidateID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func newError(kind Kind, candidateID string, err error) *Error {
	return &Error{Kind: kind, CandidateID: candidateID, Err: err}
}
