package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/converge"
	"github.com/xkilldash9x/vidpilot/internal/timecode"
)

// StepKind is one kind of seek actuation.
type StepKind int

const (
	StepCoarseJump StepKind = iota
	StepForward
	StepBackward
	StepPlayFor
)

func (k StepKind) String() string {
	switch k {
	case StepCoarseJump:
		return "coarse_jump"
	case StepForward:
		return "step_forward"
	case StepBackward:
		return "step_backward"
	case StepPlayFor:
		return "play_for"
	default:
		return fmt.Sprintf("step(%d)", int(k))
	}
}

// Step is one planned seek actuation. Target is set for CoarseJump, Duration
// for PlayFor.
type Step struct {
	Kind     StepKind
	Target   schemas.Point
	Duration time.Duration
}

func (s Step) String() string {
	switch s.Kind {
	case StepCoarseJump:
		return fmt.Sprintf("%s%s", s.Kind, s.Target)
	case StepPlayFor:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Duration)
	default:
		return s.Kind.String()
	}
}

// SeekPlan is the ordered set of steps that would close the current distance.
// Only its first step is ever executed before the next observation.
type SeekPlan []Step

// PredictX interpolates the bar position of target along the progress bar.
// Targets outside [0, total] are clamped to the bar's ends.
func PredictX(bar schemas.Span, total, target time.Duration) float64 {
	if total <= 0 {
		return bar.Start.X
	}
	frac := float64(target) / float64(total)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return bar.Start.X + frac*bar.Length()
}

// ChunkDurations splits d into greedy chunks of at most limit. A remainder
// equal to limit is one chunk; 5s with a 3s limit is 3s then 2s.
func ChunkDurations(d, limit time.Duration) []time.Duration {
	if d <= 0 {
		return nil
	}
	if limit <= 0 {
		return []time.Duration{d}
	}
	var chunks []time.Duration
	for d > 0 {
		c := limit
		if d < c {
			c = d
		}
		chunks = append(chunks, c)
		d -= c
	}
	return chunks
}

// PlanSeek computes the steps from current to target. An empty plan means the
// target is within tolerance.
func PlanSeek(current, target time.Duration, cal Calibration, cfg Config) (SeekPlan, error) {
	current, target = timecode.Seconds(current), timecode.Seconds(target)
	delta := target - current
	dist := delta
	if dist < 0 {
		dist = -dist
	}
	if dist <= cfg.Tolerance {
		return nil, nil
	}

	if dist >= cfg.LargeThreshold {
		if cal.ProgressBar.IsZero() || cal.TotalDuration <= 0 {
			return nil, schemas.NewError(schemas.KindOracle, "plan_seek",
				"progress bar or duration not calibrated for a %s jump", dist)
		}
		x := PredictX(cal.ProgressBar, cal.TotalDuration, target)
		return SeekPlan{{Kind: StepCoarseJump, Target: schemas.Point{X: x, Y: cal.ProgressBar.MidY()}}}, nil
	}

	hops := int(dist / cfg.Step)
	rem := dist % cfg.Step

	var plan SeekPlan
	if delta > 0 {
		plan = appendHops(plan, StepForward, hops)
		if rem > 0 {
			plan = append(plan, Step{Kind: StepPlayFor, Duration: rem})
		}
		return plan, nil
	}

	if rem == 0 {
		return appendHops(plan, StepBackward, hops), nil
	}
	// Overshoot backwards by one hop and play up to the target. A hop that
	// would pass the start clamps at zero, so plan from zero instead.
	if current < time.Duration(hops+1)*cfg.Step {
		toStart := int((current + cfg.Step - 1) / cfg.Step)
		plan = appendHops(plan, StepBackward, toStart)
		if target > 0 {
			plan = append(plan, Step{Kind: StepPlayFor, Duration: target})
		}
		return plan, nil
	}
	plan = appendHops(plan, StepBackward, hops+1)
	return append(plan, Step{Kind: StepPlayFor, Duration: cfg.Step - rem}), nil
}

func appendHops(plan SeekPlan, kind StepKind, n int) SeekPlan {
	for i := 0; i < n; i++ {
		plan = append(plan, Step{Kind: kind})
	}
	return plan
}

// SeekResult describes a finished seek.
type SeekResult struct {
	Target     time.Duration
	Reached    time.Duration
	Iterations int
	Steps      []Step
}

// SeekPlanner moves the playhead to a timestamp, one verified step at a time.
type SeekPlanner struct {
	ctrl   *Controller
	logger *zap.Logger
}

// NewSeekPlanner builds a planner on top of a controller.
func NewSeekPlanner(ctrl *Controller) *SeekPlanner {
	return &SeekPlanner{ctrl: ctrl, logger: ctrl.logger.Named("seek")}
}

// Seek converges the playhead on target. Each round pauses the player, reads
// the timestamp, plans from it and executes only the first planned step.
func (s *SeekPlanner) Seek(ctx context.Context, target time.Duration) (SeekResult, error) {
	c := s.ctrl
	target = timecode.Seconds(target)
	result := SeekResult{Target: target}
	if target < 0 {
		return result, schemas.NewError(schemas.KindParse, "seek", "negative target %s", target)
	}
	if cal := c.model.Calibration(); cal.TotalDuration > 0 && target > cal.TotalDuration {
		return result, schemas.NewError(schemas.KindParse, "seek",
			"target %s is past the end of the video (%s)", timecode.Format(target), timecode.Format(cal.TotalDuration))
	}

	res, err := converge.Run(ctx, converge.Loop[time.Duration]{
		Name:    "seek",
		Observe: s.position,
		Done: func(current time.Duration) bool {
			d := target - current
			if d < 0 {
				d = -d
			}
			return d <= c.cfg.Tolerance
		},
		Act: func(ctx context.Context, current time.Duration, attempt int) error {
			plan, err := PlanSeek(current, target, c.model.Calibration(), c.cfg)
			if err != nil {
				return err
			}
			if len(plan) == 0 {
				return nil
			}
			step := plan[0]
			s.logger.Debug("Executing seek step",
				zap.Int("iteration", attempt),
				zap.String("current", timecode.Format(current)),
				zap.String("target", timecode.Format(target)),
				zap.Stringer("step", step),
				zap.Int("planned_steps", len(plan)))
			if err := s.execute(ctx, step); err != nil {
				return err
			}
			result.Steps = append(result.Steps, step)
			return nil
		},
		MaxIterations: c.cfg.MaxSeekIterations,
		SettleDelay:   c.cfg.SettleDelay,
		Sleep:         c.sleep,
	})
	result.Reached = res.State
	result.Iterations = res.Iterations
	if err != nil {
		if errors.Is(err, schemas.ErrConvergenceTimeout) {
			return result, schemas.NewError(schemas.KindConvergenceTimeout, "seek",
				"seek did not converge on %s after %d iterations (last seen %s)",
				timecode.Format(target), res.Iterations, timecode.Format(res.State))
		}
		return result, err
	}

	s.logger.Info("Seek converged",
		zap.String("target", timecode.Format(target)),
		zap.Int("iterations", res.Iterations))
	return result, nil
}

// position pauses the player and reads the current timestamp, filling any
// calibration gaps from the same extraction.
func (s *SeekPlanner) position(ctx context.Context) (time.Duration, error) {
	c := s.ctrl
	if err := c.EnsurePaused(ctx); err != nil {
		return 0, err
	}
	fields := append([]schemas.ExtractionField{schemas.FieldCurrentTimestamp}, c.model.Calibration().Missing()...)
	ext, err := c.oracle.Extract(ctx, fields)
	if err != nil {
		return 0, schemas.WrapError(schemas.KindOracle, "extract_timestamp", err)
	}
	if ext.CurrentTimestamp == nil {
		return 0, schemas.NewError(schemas.KindOracle, "extract_timestamp", "current timestamp not reported")
	}
	c.model.Refine(ext)
	obs := c.model.Apply(UpdateFromExtraction(ext))
	return obs.Timestamp, nil
}

func (s *SeekPlanner) execute(ctx context.Context, step Step) error {
	c := s.ctrl
	cal := c.model.Calibration()
	switch step.Kind {
	case StepCoarseJump:
		return s.tap(ctx, "coarse_jump", step.Target)
	case StepForward:
		if cal.Forward.IsZero() {
			return schemas.NewError(schemas.KindOracle, "step_forward", "forward control not calibrated")
		}
		return s.tap(ctx, "step_forward", cal.Forward)
	case StepBackward:
		if cal.Backward.IsZero() {
			return schemas.NewError(schemas.KindOracle, "step_backward", "backward control not calibrated")
		}
		return s.tap(ctx, "step_backward", cal.Backward)
	case StepPlayFor:
		return s.playFor(ctx, step.Duration)
	default:
		return fmt.Errorf("unknown seek step %d", int(step.Kind))
	}
}

// playFor resumes playback for d in chunks, re-pausing after each one. A
// press registers on release, so each wait is the chunk less the hold of the
// pausing press. The state before every toggle is known, so the toggles are
// not re-verified here.
func (s *SeekPlanner) playFor(ctx context.Context, d time.Duration) error {
	c := s.ctrl
	if err := c.arm(ctx); err != nil {
		return err
	}
	for i, chunk := range ChunkDurations(d, c.chunkLimit()) {
		if i > 0 {
			if err := c.settle(ctx); err != nil {
				return err
			}
		}
		if err := c.Toggle(ctx); err != nil {
			return err
		}
		if wait := chunk - c.cfg.ToggleHold; wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
		}
		if err := c.Toggle(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *SeekPlanner) tap(ctx context.Context, op string, p schemas.Point) error {
	if err := s.ctrl.port.Tap(ctx, p); err != nil {
		return schemas.WrapError(schemas.KindActuation, op, err)
	}
	s.ctrl.touched()
	return nil
}
