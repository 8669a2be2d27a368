package player

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

// Session is one logical player. At most one ensure or seek operation runs at
// a time, whichever goroutine calls it.
type Session struct {
	mu         sync.Mutex
	model      *Model
	controller *Controller
	seeker     *SeekPlanner
}

// NewSession wires a session over an actuation port and an oracle. No device
// or oracle call is made until the first operation.
func NewSession(port schemas.ActuationPort, oracle Oracle, cal Calibration, cfg Config, logger *zap.Logger, opts ...Option) *Session {
	model := NewModel(cal)
	ctrl := NewController(port, oracle, model, cfg, logger, opts...)
	return &Session{
		model:      model,
		controller: ctrl,
		seeker:     NewSeekPlanner(ctrl),
	}
}

// Model exposes the session's belief, mostly for rendering.
func (s *Session) Model() *Model { return s.model }

// State renders the current belief for the planner.
func (s *Session) State() string { return s.model.String() }

func (s *Session) EnsurePaused(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.EnsurePaused(ctx)
}

func (s *Session) EnsurePlaying(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.EnsurePlaying(ctx)
}

func (s *Session) Seek(ctx context.Context, target time.Duration) (SeekResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeker.Seek(ctx, target)
}
