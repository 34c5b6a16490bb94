// Package await expresses bounded polling of eventually-consistent
// external state: a fixed number of checks at a fixed interval, never
// an unbounded loop.
package await

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrConditionNotMet is returned when every attempt ran and the
// condition still reported false.
var ErrConditionNotMet = errors.New("await: condition not met")

// Condition polls fn until it reports true, up to maxAttempts checks
// spaced interval apart. A non-nil error from fn aborts immediately and
// is returned as-is; context cancellation aborts between attempts.
func Condition(
	ctx context.Context,
	maxAttempts uint64,
	interval time.Duration,
	fn func(ctx context.Context) (bool, error),
) error {
	if maxAttempts == 0 {
		return ErrConditionNotMet
	}

	op := func() error {
		ok, err := fn(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrConditionNotMet
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), maxAttempts-1)
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
