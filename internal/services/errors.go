package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCancelled marks a user-initiated abort observed at a wait tick. It is
	// terminal for the whole batch.
	ErrCancelled = errors.New("cancelled")
	// ErrRateLimited is the raw signal from the fetch layer. The rate-limited
	// caller consumes it and never lets it escape.
	ErrRateLimited = errors.New("rate limited")
	// ErrRateLimitExhausted is returned once the backoff schedule is used up.
	// Callers must not retry it.
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")
	ErrVerificationFailed = errors.New("verification failed")
	ErrTransient          = errors.New("transient failure")
	ErrNotFound           = errors.New("not found")
	ErrEmptyContent       = errors.New("empty content")
	ErrConfiguration      = errors.New("configuration error")
	ErrAuthRequired       = errors.New("authentication required")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker so callers can branch with errors.Is. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Cancelled converts a context error into an error matching both ErrCancelled
// and the underlying context error.
func Cancelled(ctx context.Context) error {
	cause := context.Canceled
	if ctx != nil {
		if err := context.Cause(ctx); err != nil {
			cause = err
		}
	}
	return fmt.Errorf("%w: export cancelled by user: %w", ErrCancelled, cause)
}

// IsTerminal reports whether err must stop retries at the item level.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrRateLimitExhausted)
}

// Kind returns a short classification label used in logs and the run history.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrRateLimitExhausted):
		return "rate_limit_exhausted"
	case errors.Is(err, ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "transient"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
