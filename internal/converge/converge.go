// Package converge provides a bounded observe/act loop for driving an
// indirectly observed system toward a target state.
package converge

import (
	"context"
	"time"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

// Loop describes one convergence attempt.
//
// Each iteration observes, checks Done, and if not done acts and then waits
// SettleDelay before observing again. The loop never runs more than
// MaxIterations actions.
type Loop[T any] struct {
	// Name identifies the loop in errors.
	Name string
	// Observe reads the current state.
	Observe func(ctx context.Context) (T, error)
	// Done reports whether the observed state is the goal.
	Done func(state T) bool
	// Act issues one corrective step given the last observed state.
	Act func(ctx context.Context, state T, attempt int) error
	// MaxIterations caps the number of Act calls. Must be positive.
	MaxIterations int
	// SettleDelay is waited after every Act.
	SettleDelay time.Duration
	// Sleep is used for the settle delay; nil means Sleep from this package.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result reports how a loop ended.
type Result[T any] struct {
	State      T
	Iterations int
}

// Run executes the loop. It returns the final observed state when Done is
// satisfied, a ConvergenceTimeout when the iteration cap is reached, or the
// first Observe/Act/context error.
func Run[T any](ctx context.Context, l Loop[T]) (Result[T], error) {
	var res Result[T]
	if l.MaxIterations <= 0 {
		return res, schemas.NewError(schemas.KindConvergenceTimeout, l.Name, "no iterations allowed")
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	state, err := l.Observe(ctx)
	if err != nil {
		return res, err
	}
	res.State = state

	for res.Iterations < l.MaxIterations {
		if l.Done(state) {
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Iterations++
		if err := l.Act(ctx, state, res.Iterations); err != nil {
			return res, err
		}
		if err := sleep(ctx, l.SettleDelay); err != nil {
			return res, err
		}
		if state, err = l.Observe(ctx); err != nil {
			return res, err
		}
		res.State = state
	}

	if l.Done(state) {
		return res, nil
	}
	return res, schemas.NewError(schemas.KindConvergenceTimeout, l.Name,
		"target state not reached after %d attempts", l.MaxIterations)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
