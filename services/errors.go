package services

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy. Handlers translate these to HTTP statuses; anything not in
// the list is treated as unexpected and surfaced generically.
var (
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflict")
	ErrPreconditionFailed      = errors.New("precondition failed")
	ErrDeckExhausted           = errors.New("deck exhausted")
	ErrCodeGenerationExhausted = errors.New("game code space exhausted")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrEncoding                = errors.New("encoding failure")
)

// RateLimitedError carries the duration after which the client may retry.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
