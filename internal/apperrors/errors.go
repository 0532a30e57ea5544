package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
// Work rejected with this error was never persisted.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrTransient indicates a failure that is expected to clear on its own
// (network timeout, upstream 5xx, rate limiting). Always retried within the
// configured attempt budget.
var ErrTransient = errors.New("transient error")

// ErrPermanent indicates a failure that will not succeed on retry
// (upstream 4xx other than rate limiting, constraint violation).
var ErrPermanent = errors.New("permanent error")

// ErrConflict indicates that remote state diverged from what this system
// last pushed. Surfaced, never auto-retried.
var ErrConflict = errors.New("conflict detected")

// ErrRateLimited is a transient failure caused by upstream rate limiting.
// Callers that care about the distinction (longer backoff floor) can test for
// it; everyone else sees it as ErrTransient via Is.
var ErrRateLimited = &rateLimitedError{}

type rateLimitedError struct{}

func (e *rateLimitedError) Error() string { return "rate limited" }

// Is makes ErrRateLimited match ErrTransient so generic retry paths need no
// special casing.
func (e *rateLimitedError) Is(target error) bool {
	return target == ErrTransient || target == ErrRateLimited
}

// IsRetryable reports whether err should be retried by the sync queue.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
