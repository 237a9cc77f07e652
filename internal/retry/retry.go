// Package retry wraps write operations executed under serializable isolation
// so that serialization conflicts are retried with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSerializationConflict marks a failure caused by two concurrent
// transactions that cannot both be ordered consistently.
var ErrSerializationConflict = errors.New("serialization conflict")

// serializationFailureCode is the SQLSTATE Postgres reports for conflicts
// under serializable isolation.
const serializationFailureCode = "40001"

// Policy bounds the retry schedule. The zero value is not usable; start from
// DefaultPolicy.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry; it doubles per retry.
	BaseDelay time.Duration
	// MaxDelay caps the per-retry delay.
	MaxDelay time.Duration

	// sleep is replaced in tests to record delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy matches the backoff the write paths are specified with:
// five retries at 100, 200, 400, 800 and 1000ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 5,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
	}
}

// IsSerializationConflict reports whether err is, or is caused by, a
// serialization conflict: either the dedicated error kind or a database error
// carrying SQLSTATE 40001 anywhere in the chain.
func IsSerializationConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSerializationConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode
}

// Do runs op, retrying per the policy when the failure classifies as a
// serialization conflict. Any other error passes through unmodified on the
// first attempt. When retries are exhausted the last conflict error is
// returned wrapped in ErrSerializationConflict so callers can recover it to
// their sentinel value.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := p.BaseDelay
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsSerializationConflict(err) {
			return zero, err
		}
		if attempt >= p.MaxRetries {
			if errors.Is(err, ErrSerializationConflict) {
				return zero, err
			}
			return zero, errors.Join(ErrSerializationConflict, err)
		}

		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay *= 2
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
