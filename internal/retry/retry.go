// Package retry wraps blocking device and oracle calls with a per-attempt
// timeout and a bounded, fixed-interval retry policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

// Policy bounds a retried call.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// Backoff is the fixed wait between attempts.
	Backoff time.Duration `mapstructure:"backoff" yaml:"backoff"`
	// Timeout bounds each individual attempt. Zero means no per-attempt timeout.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, or the attempts are
// exhausted. Parse errors are always permanent. On exhaustion the last error is
// wrapped with kind and op so it surfaces as a typed failure.
func Do(ctx context.Context, p Policy, kind schemas.ErrorKind, op string, logger *zap.Logger, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Backoff)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		callCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, schemas.ErrParse) {
			return backoff.Permanent(err)
		}
		if logger != nil {
			logger.Warn("Attempt failed",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Error(err))
		}
		return err
	}

	err := backoff.Retry(operation, b)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return schemas.WrapError(kind, op, err)
}
