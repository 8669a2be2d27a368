// File: internal/orchestrator/orchestrator.go
// Description: Turns a natural-language instruction into player operations by
// asking a planning oracle for one directive at a time.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
	"github.com/xkilldash9x/vidpilot/internal/journal"
	"github.com/xkilldash9x/vidpilot/internal/player"
)

// Player is the part of a player session the orchestrator drives.
type Player interface {
	EnsurePlaying(ctx context.Context) error
	EnsurePaused(ctx context.Context) error
	Seek(ctx context.Context, target time.Duration) (player.SeekResult, error)
	State() string
}

// Report summarizes one instruction run.
type Report struct {
	Instruction string
	// Iterations counts planner fetches, including the final one.
	Iterations int
	Entries    []journal.Entry
}

// Orchestrator manages the instruction loop.
// It is injected with fully configured components.
type Orchestrator struct {
	cfg     config.OrchestratorConfig
	logger  *zap.Logger
	player  Player
	planner schemas.PlanningOracle
	journal *journal.Log
}

// New creates a new Orchestrator with its dependencies provided as interfaces.
func New(
	cfg config.OrchestratorConfig,
	logger *zap.Logger,
	p Player,
	planner schemas.PlanningOracle,
	log *journal.Log,
) (*Orchestrator, error) {
	if logger == nil ||
		p == nil ||
		planner == nil ||
		log == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("orchestrator max iterations must be positive, got %d", cfg.MaxIterations)
	}
	return &Orchestrator{
		cfg:     cfg,
		logger:  logger.Named("orchestrator"),
		player:  p,
		planner: planner,
		journal: log,
	}, nil
}

// Run asks the planner for directives and executes them until it answers
// finished. A failed directive is journaled and the planner is asked again;
// planner failures, unparseable replies and cancellation end the run.
func (o *Orchestrator) Run(ctx context.Context, instruction string) (Report, error) {
	report := Report{Instruction: instruction}
	o.logger.Info("Running instruction", zap.String("instruction", instruction))

	for i := 1; i <= o.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Iterations = i

		d, err := o.planner.NextDirective(ctx, schemas.PlanningContext{
			Instruction: instruction,
			ActionLog:   lines(report.Entries),
			PlayerState: o.player.State(),
			Iteration:   i,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			return report, schemas.WrapError(schemas.KindOracle, "plan", err)
		}

		res, err := o.dispatch(ctx, d)
		if err != nil && isCancellation(ctx, err) {
			return report, ctx.Err()
		}
		report.Entries = append(report.Entries, o.journal.Append(ctx, instruction, d, res))

		if d.Kind == schemas.DirectiveFinished {
			o.logger.Info("Instruction finished",
				zap.String("instruction", instruction),
				zap.Int("iterations", i))
			return report, nil
		}
	}

	return report, schemas.NewError(schemas.KindPlannerExhausted, "run",
		"instruction %q not finished after %d iterations", instruction, o.cfg.MaxIterations)
}

// dispatch executes one directive. The returned error is already folded into
// the result; it is passed back only so the caller can spot cancellation.
func (o *Orchestrator) dispatch(ctx context.Context, d schemas.Directive) (schemas.OperationResult, error) {
	return Dispatch(ctx, o.player, d, o.logger)
}

// Dispatch executes a single directive against p without consulting a planner.
// Finished converges trivially and unresolved does nothing.
func Dispatch(ctx context.Context, p Player, d schemas.Directive, logger *zap.Logger) (schemas.OperationResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var err error
	switch d.Kind {
	case schemas.DirectivePlay:
		err = p.EnsurePlaying(ctx)
	case schemas.DirectivePause:
		err = p.EnsurePaused(ctx)
	case schemas.DirectiveSeek:
		var res player.SeekResult
		res, err = p.Seek(ctx, d.Target)
		if err == nil {
			logger.Debug("Seek converged", zap.Duration("reached", res.Reached), zap.Int("iterations", res.Iterations))
		}
	case schemas.DirectiveFinished:
		return schemas.OperationResult{Converged: true}, nil
	case schemas.DirectiveUnresolved:
		logger.Info("Planner could not resolve the instruction", zap.String("thought", d.Thought))
		return schemas.OperationResult{}, nil
	default:
		err = schemas.NewError(schemas.KindParse, "dispatch", "unknown directive %q", d.Kind)
	}

	if err != nil {
		logger.Warn("Directive failed", zap.Stringer("directive", d), zap.Error(err))
	}
	return schemas.ResultFromError(err), err
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func lines(entries []journal.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Line()
	}
	return out
}
