// Package oracle turns screenshots into answers about the player: which icons
// are showing and what the timestamp, duration and control positions are.
package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/retry"
)

// Config bounds oracle traffic.
type Config struct {
	// RateLimit is queries per second across all callers; zero means unlimited.
	RateLimit float64
	Burst     int
	// Retry bounds each vision query.
	Retry retry.Policy
	// CaptureRetry bounds screenshot capture.
	CaptureRetry retry.Policy
}

// StateOracle captures one screenshot per question batch and asks the vision
// oracle about it. Every failure it returns is an OracleError.
type StateOracle struct {
	source  schemas.ScreenshotSource
	vision  schemas.VisionOracle
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// NewStateOracle wires a screenshot source to a vision oracle.
func NewStateOracle(source schemas.ScreenshotSource, vision schemas.VisionOracle, cfg Config, logger *zap.Logger) *StateOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &StateOracle{
		source:  source,
		vision:  vision,
		limiter: rate.NewLimiter(limit, burst),
		cfg:     cfg,
		logger:  logger.Named("oracle"),
	}
}

// Capture takes a screenshot, retrying transient failures. Exhaustion is fatal
// to the caller's operation.
func (o *StateOracle) Capture(ctx context.Context) (schemas.Screenshot, error) {
	var shot schemas.Screenshot
	err := retry.Do(ctx, o.cfg.CaptureRetry, schemas.KindOracle, "capture_screenshot", o.logger, func(ctx context.Context) error {
		var err error
		shot, err = o.source.Capture(ctx)
		return err
	})
	if err != nil {
		return schemas.Screenshot{}, schemas.WrapError(schemas.KindOracle, "capture_screenshot", err)
	}
	return shot, nil
}

// Classify asks about each predicate independently and concurrently over one
// screenshot. Any failed sub-query fails the whole batch; contradictory
// answers are returned as they are.
func (o *StateOracle) Classify(ctx context.Context, predicates []schemas.Predicate) (map[schemas.Predicate]schemas.Verdict, error) {
	shot, err := o.Capture(ctx)
	if err != nil {
		return nil, err
	}

	verdicts := make([]schemas.Verdict, len(predicates))
	g, gctx := errgroup.WithContext(ctx)
	for i, pred := range predicates {
		g.Go(func() error {
			v, err := o.classifyOne(gctx, shot, pred)
			if err != nil {
				return err
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, schemas.WrapError(schemas.KindOracle, "classify", err)
	}

	out := make(map[schemas.Predicate]schemas.Verdict, len(predicates))
	fields := make([]zap.Field, 0, len(predicates))
	for i, pred := range predicates {
		out[pred] = verdicts[i]
		fields = append(fields, zap.Stringer(string(pred), verdicts[i]))
	}
	o.logger.Debug("Classified screenshot", fields...)
	return out, nil
}

func (o *StateOracle) classifyOne(ctx context.Context, shot schemas.Screenshot, pred schemas.Predicate) (schemas.Verdict, error) {
	var verdict schemas.Verdict
	err := retry.Do(ctx, o.cfg.Retry, schemas.KindOracle, fmt.Sprintf("classify %s", pred), o.logger, func(ctx context.Context) error {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		res, err := o.vision.Classify(ctx, shot, []schemas.Predicate{pred})
		if err != nil {
			return err
		}
		// An absent answer is a declined answer, not a "no".
		verdict = res[pred]
		return nil
	})
	return verdict, err
}

// Extract reads the requested fields off a fresh screenshot.
func (o *StateOracle) Extract(ctx context.Context, fields []schemas.ExtractionField) (schemas.Extraction, error) {
	shot, err := o.Capture(ctx)
	if err != nil {
		return schemas.Extraction{}, err
	}

	var ext schemas.Extraction
	err = retry.Do(ctx, o.cfg.Retry, schemas.KindOracle, "extract", o.logger, func(ctx context.Context) error {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		ext, err = o.vision.Extract(ctx, shot, fields)
		return err
	})
	if err != nil {
		return schemas.Extraction{}, schemas.WrapError(schemas.KindOracle, "extract", err)
	}
	return ext, nil
}
