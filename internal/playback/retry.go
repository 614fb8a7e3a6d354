package playback

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"pipeband-quiz-service/internal/domain"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
)

// RetryPolicy retries throttled and device-not-found play commands with exponential
// backoff, preferring a server supplied wait hint when one is present.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Clock       clockwork.Clock
}

// DefaultRetryPolicy is three attempts starting at two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Clock:       clockwork.NewRealClock(),
	}
}

type retryAfterHint interface {
	RetryAfter() time.Duration
}

// Retryable reports whether err should be attempted again.
func Retryable(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrDeviceNotFound)
}

// Do runs fn until it succeeds, fails permanently, or the attempt cap is reached.
// The last error is returned unchanged, including when the next wait would outlast ctx.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.delay(attempt, err)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			log.Debug().Err(err).Dur("delay", delay).Msg("retry wait exceeds command deadline")
			return err
		}
		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("play command failed, retrying")

		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return err
			}
			return ctx.Err()
		}
	}
	return err
}

func (p RetryPolicy) delay(attempt int, err error) time.Duration {
	var hint retryAfterHint
	if errors.As(err, &hint) && hint.RetryAfter() > 0 {
		return hint.RetryAfter()
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return base << attempt
}
