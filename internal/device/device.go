// Package device holds what every device backend shares: the Device contract,
// a retrying actuation decorator and an on-disk screenshot archive.
package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/retry"
)

// Device is a backend that can both be driven and photographed.
type Device interface {
	schemas.ActuationPort
	schemas.ScreenshotSource
	Close() error
}

// Resilient retries transient actuation failures with a per-attempt timeout.
// Exhaustion surfaces as an ActuationError.
type Resilient struct {
	port   schemas.ActuationPort
	policy retry.Policy
	logger *zap.Logger
}

// NewResilient wraps port.
func NewResilient(port schemas.ActuationPort, policy retry.Policy, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{port: port, policy: policy, logger: logger.Named("actuation")}
}

func (r *Resilient) Tap(ctx context.Context, p schemas.Point) error {
	r.logger.Debug("Tap", zap.Stringer("point", p))
	return retry.Do(ctx, r.policy, schemas.KindActuation, "tap", r.logger, func(ctx context.Context) error {
		return r.port.Tap(ctx, p)
	})
}

func (r *Resilient) Swipe(ctx context.Context, from, to schemas.Point, d time.Duration) error {
	r.logger.Debug("Swipe", zap.Stringer("from", from), zap.Stringer("to", to), zap.Duration("duration", d))
	// The attempt must outlive the gesture itself.
	policy := r.policy
	if policy.Timeout > 0 {
		policy.Timeout += d
	}
	return retry.Do(ctx, policy, schemas.KindActuation, "swipe", r.logger, func(ctx context.Context) error {
		return r.port.Swipe(ctx, from, to, d)
	})
}

func (r *Resilient) Key(ctx context.Context, key schemas.KeyEvent) error {
	r.logger.Debug("Key", zap.String("key", string(key)))
	return retry.Do(ctx, r.policy, schemas.KindActuation, "key", r.logger, func(ctx context.Context) error {
		return r.port.Key(ctx, key)
	})
}

// Archive keeps a copy of every captured frame under a per-run directory.
// Write failures are logged and never fail the capture.
type Archive struct {
	source schemas.ScreenshotSource
	dir    string
	logger *zap.Logger

	mu  sync.Mutex
	seq int
}

// NewArchive stores frames from source under root/<run timestamp>/.
func NewArchive(source schemas.ScreenshotSource, root string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Join(root, time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return &Archive{source: source, dir: dir, logger: logger.Named("archive")}, nil
}

// Dir is the directory frames are written to.
func (a *Archive) Dir() string { return a.dir }

func (a *Archive) Capture(ctx context.Context) (schemas.Screenshot, error) {
	shot, err := a.source.Capture(ctx)
	if err != nil {
		return shot, err
	}

	a.mu.Lock()
	a.seq++
	name := fmt.Sprintf("frame-%05d%s", a.seq, extensionFor(shot.MIMEType))
	a.mu.Unlock()

	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, shot.Data, 0o644); err != nil {
		a.logger.Warn("Could not persist screenshot", zap.String("path", path), zap.Error(err))
		return shot, nil
	}
	shot.Path = path
	return shot, nil
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/json", "application/x-vidpilot-frame":
		return ".json"
	default:
		return ".bin"
	}
}
