// Package player drives an on-screen video player into a requested play,
// pause or seek state through a closed observe/act loop.
package player

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/converge"
)

// Oracle answers questions about what the player currently shows. Every call
// looks at a fresh screenshot.
type Oracle interface {
	Classify(ctx context.Context, predicates []schemas.Predicate) (map[schemas.Predicate]schemas.Verdict, error)
	Extract(ctx context.Context, fields []schemas.ExtractionField) (schemas.Extraction, error)
}

// Controller forces the player into the paused or playing state. It is not
// safe for concurrent use; Session serializes callers.
type Controller struct {
	port   schemas.ActuationPort
	oracle Oracle
	model  *Model
	cfg    Config
	sleep  SleepFunc
	now    func() time.Time
	logger *zap.Logger

	// lastTouch is when our most recent press was released. The overlay is
	// up from then until AutoHide has passed.
	lastTouch time.Time
}

// NewController wires a controller. It performs no I/O.
func NewController(port schemas.ActuationPort, oracle Oracle, model *Model, cfg Config, logger *zap.Logger, opts ...Option) *Controller {
	o := buildOptions(opts)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		port:   port,
		oracle: oracle,
		model:  model,
		cfg:    cfg,
		sleep:  o.sleep,
		now:    o.now,
		logger: logger.Named("controller"),
	}
}

// EnsurePaused leaves the player paused with its play icon showing.
func (c *Controller) EnsurePaused(ctx context.Context) error {
	return c.ensure(ctx, schemas.PausedInteractive)
}

// EnsurePlaying leaves the player playing.
func (c *Controller) EnsurePlaying(ctx context.Context) error {
	return c.ensure(ctx, schemas.PlayingInteractive)
}

func (c *Controller) ensure(ctx context.Context, target schemas.InteractivityState) error {
	op := "ensure_paused"
	if target == schemas.PlayingInteractive {
		op = "ensure_playing"
	}

	// Observe until one icon is definitely showing. An unresolved reading is
	// answered by provoking the overlay and pressing the toggle.
	res, err := converge.Run(ctx, converge.Loop[Observation]{
		Name:    op,
		Observe: c.Observe,
		Done:    Observation.Resolved,
		Act: func(ctx context.Context, obs Observation, attempt int) error {
			c.logger.Debug("Player state unresolved, provoking overlay",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Stringer("pause_icon", obs.PauseIcon),
				zap.Stringer("play_icon", obs.PlayIcon))
			if err := c.Provoke(ctx); err != nil {
				return err
			}
			if err := c.settle(ctx); err != nil {
				return err
			}
			return c.Toggle(ctx)
		},
		MaxIterations: c.cfg.MaxConvergeAttempts,
		SettleDelay:   c.cfg.SettleDelay,
		Sleep:         c.sleep,
	})
	if err != nil {
		if errors.Is(err, schemas.ErrConvergenceTimeout) {
			c.logger.Warn("Player state never resolved",
				zap.String("op", op),
				zap.Int("attempts", res.Iterations))
		}
		return err
	}

	if res.State.Interactivity != target {
		// Exactly one toggle from a known opposite state. The overlay seen in
		// the screenshot may have hidden while the oracle was answering.
		c.logger.Debug("Toggling from opposite state",
			zap.String("op", op),
			zap.String("from", string(res.State.Interactivity)))
		if err := c.arm(ctx); err != nil {
			return err
		}
		if err := c.Toggle(ctx); err != nil {
			return err
		}
		if err := c.settle(ctx); err != nil {
			return err
		}
	}

	c.model.SetBelief(target)
	c.logger.Info("Player state reached",
		zap.String("op", op),
		zap.String("state", string(target)),
		zap.Int("attempts", res.Iterations))
	return nil
}

// Observe queries the icon batch and replaces the model's observation.
func (c *Controller) Observe(ctx context.Context) (Observation, error) {
	verdicts, err := c.oracle.Classify(ctx, schemas.InteractivityBatch)
	if err != nil {
		return Observation{}, schemas.WrapError(schemas.KindOracle, "observe", err)
	}
	return c.model.Apply(UpdateFromVerdicts(verdicts)), nil
}

// Toggle presses the play/pause control with a short hold.
func (c *Controller) Toggle(ctx context.Context) error {
	p := c.model.Calibration().PlayPause
	if err := c.port.Swipe(ctx, p, p, c.cfg.ToggleHold); err != nil {
		return schemas.WrapError(schemas.KindActuation, "toggle", err)
	}
	c.touched()
	return nil
}

// Provoke taps just above the toggle to bring the overlay back.
func (c *Controller) Provoke(ctx context.Context) error {
	p := c.model.Calibration().PlayPause.Offset(0, -c.cfg.HotZoneOffsetY)
	if err := c.port.Tap(ctx, p); err != nil {
		return schemas.WrapError(schemas.KindActuation, "provoke_overlay", err)
	}
	c.touched()
	return nil
}

func (c *Controller) settle(ctx context.Context) error {
	return c.sleep(ctx, c.cfg.SettleDelay)
}

func (c *Controller) touched() {
	c.lastTouch = c.now()
}

// armed reports whether a press started now lands on a visible overlay,
// judged from our own last press.
func (c *Controller) armed() bool {
	if c.lastTouch.IsZero() {
		return false
	}
	return c.now().Sub(c.lastTouch)+c.cfg.ToggleHold < c.cfg.AutoHide
}

// arm makes sure the next press hits the controls rather than the overlay.
// Without a recent press of our own the overlay may be about to hide, so wait
// until it certainly has, bring it back and let it settle.
func (c *Controller) arm(ctx context.Context) error {
	if c.armed() {
		return nil
	}
	wait := c.cfg.AutoHide + c.cfg.SettleDelay
	c.logger.Debug("Re-arming overlay", zap.Duration("wait", wait))
	if err := c.sleep(ctx, wait); err != nil {
		return err
	}
	if err := c.Provoke(ctx); err != nil {
		return err
	}
	return c.settle(ctx)
}

// chunkLimit is the longest resumed stretch whose pausing press still starts
// inside the overlay window opened by the resuming press.
func (c *Controller) chunkLimit() time.Duration {
	limit := c.cfg.MicroChunk
	if c.cfg.AutoHide > 0 && limit-c.cfg.ToggleHold >= c.cfg.AutoHide {
		limit = c.cfg.AutoHide
	}
	return limit
}
