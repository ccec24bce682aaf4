package types

import (
	"errors"
	"fmt"
	"time"
)

// FetchClass categorizes a failed HTTP fetch for retry policy decisions.
type FetchClass int

const (
	// FetchTransient covers 5xx responses, timeouts and transport resets.
	// Retried with exponential backoff inside the fetcher.
	FetchTransient FetchClass = iota
	// FetchPermanent covers 4xx responses other than 429. Never retried.
	FetchPermanent
)

func (c FetchClass) String() string {
	switch c {
	case FetchTransient:
		return "transient"
	case FetchPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// FetchError wraps a failed HTTP fetch with its classification.
type FetchError struct {
	Class      FetchClass
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d (%s)", e.URL, e.StatusCode, e.Class)
	}

	return fmt.Sprintf("fetch %s: %v (%s)", e.URL, e.Err, e.Class)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RateLimitedError signals an HTTP 429. Callers pick their own cooldown
// (typically 60s) and skip the source until it elapses.
type RateLimitedError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.URL)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsTransient reports whether err is a retryable fetch failure.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Class == FetchTransient
}

// IsPermanent reports whether err is a non-retryable fetch failure.
func IsPermanent(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Class == FetchPermanent
}
