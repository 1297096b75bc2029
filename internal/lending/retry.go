package lending

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay    = 5 * time.Millisecond
	defaultJitterFactor = 0.3
)

// errStale signals that a guarded update matched no row because another
// request changed the record first. It never leaves the package.
var errStale = errors.New("stale record")

// retryOnConflict runs fn until it succeeds, fails with anything other than
// errStale, or attempts are exhausted. Delays double from defaultBaseDelay
// with jitter. Exhaustion is reported as ErrConcurrentUpdate.
func retryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := defaultBaseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * defaultJitterFactor //nolint:gosec // jitter only
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if !errors.Is(err, errStale) {
			return err
		}
	}

	return fail(ErrConcurrentUpdate)
}
