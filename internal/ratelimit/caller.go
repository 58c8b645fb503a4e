// Package ratelimit wraps remote calls with detection of rate-limit replies
// and an escalating, cancellable backoff.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"meetexport/internal/countdown"
	"meetexport/internal/logging"
	"meetexport/internal/services"
)

// Observer receives countdown updates while the caller backs off. Attempt
// numbers are 1-based. Implementations must not block.
type Observer interface {
	RateLimitWait(remaining, total time.Duration, attempt, maxAttempts int)
}

// Settings describes the backoff schedule and detection thresholds.
type Settings struct {
	Delays           []time.Duration
	MaxRetries       int
	Marker           string
	MaxResponseChars int
}

// Option customizes a Caller.
type Option func(*Caller)

// WithObserver registers the countdown observer.
func WithObserver(o Observer) Option {
	return func(c *Caller) { c.observer = o }
}

// WithTimer overrides the wait primitive.
func WithTimer(t *countdown.Timer) Option {
	return func(c *Caller) {
		if t != nil {
			c.timer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Caller) { c.logger = logging.NewComponentLogger(logger, "ratelimit") }
}

// Caller retries rate-limited operations. It is not safe for concurrent use.
type Caller struct {
	settings Settings
	timer    *countdown.Timer
	observer Observer
	logger   *slog.Logger
	sampler  *logging.WaitSampler
}

// New constructs a Caller.
func New(settings Settings, opts ...Option) *Caller {
	settings.Marker = strings.ToLower(strings.TrimSpace(settings.Marker))
	if settings.Marker == "" {
		settings.Marker = "rate limit"
	}
	if len(settings.Delays) == 0 {
		settings.Delays = []time.Duration{120 * time.Second}
	}
	if settings.MaxRetries < 0 {
		settings.MaxRetries = 0
	}
	c := &Caller{
		settings: settings,
		timer:    countdown.New(countdown.DefaultTick, nil),
		logger:   logging.NewComponentLogger(nil, "ratelimit"),
		sampler:  logging.NewWaitSampler(25),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxAttempts is the total number of calls made before giving up.
func (c *Caller) MaxAttempts() int {
	return c.settings.MaxRetries + 1
}

// DelayFor returns the wait after the given 0-based attempt. Attempts beyond
// the schedule reuse its last entry.
func (c *Caller) DelayFor(attempt int) time.Duration {
	delays := c.settings.Delays
	return delays[min(max(attempt, 0), len(delays)-1)]
}

// IsRateLimited reports whether a textual reply is a rate-limit notice rather
// than content. Long replies that merely mention the marker are content.
func (c *Caller) IsRateLimited(text string) bool {
	if utf8.RuneCountInString(text) >= c.settings.MaxResponseChars {
		return false
	}
	return strings.Contains(strings.ToLower(text), c.settings.Marker)
}

// Do performs fn, retrying with backoff while the reply is a rate-limit
// notice or fn returns an error wrapping services.ErrRateLimited. Other
// errors and non-limited replies, including empty strings, are returned
// unchanged. Exhausting the schedule yields services.ErrRateLimitExhausted;
// cancellation during a wait yields services.ErrCancelled.
func (c *Caller) Do(ctx context.Context, op string, fn func(context.Context) (string, error)) (string, error) {
	ctx = services.WithOperation(ctx, op)
	logger := logging.WithContext(ctx, c.logger)
	maxAttempts := c.MaxAttempts()

	var lastNotice string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		reply, err := fn(ctx)
		switch {
		case err != nil && !errors.Is(err, services.ErrRateLimited):
			return "", err
		case err != nil:
			lastNotice = err.Error()
		case !c.IsRateLimited(reply):
			if attempt > 0 {
				logger.Info("rate limit cleared", logging.Int("attempt", attempt+1))
			}
			return reply, nil
		default:
			lastNotice = strings.TrimSpace(reply)
		}

		if attempt == maxAttempts-1 {
			break
		}

		delay := c.DelayFor(attempt)
		logging.WarnWithContext(logger, "rate limited; backing off", "rate_limited",
			logging.Int("attempt", attempt+1),
			logging.Int("max_attempts", maxAttempts),
			logging.Duration("delay", delay),
			logging.String("notice", lastNotice),
			logging.String(logging.FieldImpact, "export paused until the wait completes"),
			logging.String(logging.FieldErrorHint, "raise export.cooldown_seconds if this recurs"),
		)
		phase := fmt.Sprintf("rate_limit attempt %d", attempt+1)
		waitErr := c.timer.Wait(ctx, delay, func(remaining time.Duration) {
			if c.observer != nil {
				c.observer.RateLimitWait(remaining, delay, attempt+1, maxAttempts)
			}
			if c.sampler.ShouldLog(phase, remaining, delay) {
				logger.Debug("rate limit wait", logging.Duration("remaining", remaining), logging.Duration("total", delay))
			}
		})
		if waitErr != nil {
			return "", waitErr
		}
	}

	logging.ErrorWithContext(logger, "rate limit retries exhausted", "rate_limit_exhausted",
		logging.Int("attempts", maxAttempts),
		logging.String("notice", lastNotice),
		logging.String(logging.FieldErrorHint, "wait several minutes before exporting again"),
	)
	return "", services.Wrap(services.ErrRateLimitExhausted, "ratelimit", op,
		fmt.Sprintf("still rate limited after %d attempts (last reply: %q)", maxAttempts, lastNotice), nil)
}
