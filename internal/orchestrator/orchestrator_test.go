// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
	"github.com/xkilldash9x/vidpilot/internal/device/simulator"
	"github.com/xkilldash9x/vidpilot/internal/journal"
	"github.com/xkilldash9x/vidpilot/internal/oracle"
	"github.com/xkilldash9x/vidpilot/internal/player"
	"github.com/xkilldash9x/vidpilot/internal/retry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Mock Implementations for Testing --

type MockPlayer struct {
	mock.Mock
}

func (m *MockPlayer) EnsurePlaying(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPlayer) EnsurePaused(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPlayer) Seek(ctx context.Context, target time.Duration) (player.SeekResult, error) {
	args := m.Called(ctx, target)
	return args.Get(0).(player.SeekResult), args.Error(1)
}

func (m *MockPlayer) State() string {
	return m.Called().String(0)
}

type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) NextDirective(ctx context.Context, pctx schemas.PlanningContext) (schemas.Directive, error) {
	args := m.Called(ctx, pctx)
	return args.Get(0).(schemas.Directive), args.Error(1)
}

func directive(kind schemas.DirectiveKind) schemas.Directive {
	return schemas.Directive{Kind: kind}
}

func newTestOrchestrator(t *testing.T, p Player, planner schemas.PlanningOracle, maxIterations int) (*Orchestrator, *journal.Log) {
	t.Helper()
	log := journal.NewLog(zaptest.NewLogger(t))
	o, err := New(config.OrchestratorConfig{MaxIterations: maxIterations}, zaptest.NewLogger(t), p, planner, log)
	require.NoError(t, err)
	return o, log
}

func TestNew_RejectsNilDependencies(t *testing.T) {
	log := journal.NewLog(zap.NewNop())
	cfg := config.OrchestratorConfig{MaxIterations: 3}

	_, err := New(cfg, zap.NewNop(), nil, new(MockPlanner), log)
	assert.Error(t, err)
	_, err = New(cfg, zap.NewNop(), new(MockPlayer), nil, log)
	assert.Error(t, err)
	_, err = New(config.OrchestratorConfig{}, zap.NewNop(), new(MockPlayer), new(MockPlanner), log)
	assert.Error(t, err)
}

func TestRun_FinishedImmediately(t *testing.T) {
	p := new(MockPlayer)
	p.On("State").Return("VideoPlayer(state=PAUSED_INTERACTIVE)")
	planner := new(MockPlanner)
	planner.On("NextDirective", mock.Anything, mock.Anything).Return(directive(schemas.DirectiveFinished), nil).Once()

	o, log := newTestOrchestrator(t, p, planner, 5)
	report, err := o.Run(context.Background(), "do nothing")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Iterations)
	planner.AssertNumberOfCalls(t, "NextDirective", 1)
	p.AssertNotCalled(t, "EnsurePlaying", mock.Anything)
	p.AssertNotCalled(t, "EnsurePaused", mock.Anything)
	p.AssertNotCalled(t, "Seek", mock.Anything, mock.Anything)
	assert.Equal(t, []string{"1. finished -> converged"}, log.Lines())
}

func TestRun_DispatchesAndFeedsTheActionLog(t *testing.T) {
	p := new(MockPlayer)
	p.On("State").Return("state")
	p.On("EnsurePlaying", mock.Anything).Return(nil).Once()
	p.On("Seek", mock.Anything, 95*time.Second).Return(player.SeekResult{Target: 95 * time.Second, Reached: 95 * time.Second}, nil).Once()

	planner := new(MockPlanner)
	planner.On("NextDirective", mock.Anything, mock.MatchedBy(func(c schemas.PlanningContext) bool {
		return c.Iteration == 1 && len(c.ActionLog) == 0
	})).Return(directive(schemas.DirectivePlay), nil).Once()
	planner.On("NextDirective", mock.Anything, mock.MatchedBy(func(c schemas.PlanningContext) bool {
		return c.Iteration == 2 && assert.ObjectsAreEqual([]string{"1. play -> converged"}, c.ActionLog)
	})).Return(schemas.Directive{Kind: schemas.DirectiveSeek, Target: 95 * time.Second}, nil).Once()
	planner.On("NextDirective", mock.Anything, mock.MatchedBy(func(c schemas.PlanningContext) bool {
		return c.Iteration == 3 && c.PlayerState == "state"
	})).Return(directive(schemas.DirectiveFinished), nil).Once()

	o, _ := newTestOrchestrator(t, p, planner, 5)
	report, err := o.Run(context.Background(), "play, then go to 1:35")
	require.NoError(t, err)

	assert.Equal(t, 3, report.Iterations)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "2. seek(00:01:35) -> converged", report.Entries[1].Line())
	p.AssertExpectations(t)
	planner.AssertExpectations(t)
}

func TestRun_UnresolvedConsumesAnIteration(t *testing.T) {
	p := new(MockPlayer)
	p.On("State").Return("state")
	planner := new(MockPlanner)
	planner.On("NextDirective", mock.Anything, mock.Anything).Return(directive(schemas.DirectiveUnresolved), nil).Once()
	planner.On("NextDirective", mock.Anything, mock.Anything).Return(directive(schemas.DirectiveFinished), nil).Once()

	o, _ := newTestOrchestrator(t, p, planner, 5)
	report, err := o.Run(context.Background(), "hmm")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Iterations)
	assert.Equal(t, "1. unresolved -> no action", report.Entries[0].Line())
}

func TestRun_PlannerExhausted(t *testing.T) {
	p := new(MockPlayer)
	p.On("State").Return("state")
	planner := new(MockPlanner)
	planner.On("NextDirective", mock.Anything, mock.Anything).Return(directive(schemas.DirectiveUnresolved), nil)

	o, log := newTestOrchestrator(t, p, planner, 3)
	report, err := o.Run(context.Background(), "never ends")

	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrPlannerExhausted)
	assert.Equal(t, 3, report.Iterations)
	assert.Len(t, log.Entries(), 3)
}

func TestRun_FailedDirectiveIsJournaledAndReplanned(t *testing.T) {
	p := new(MockPlayer)
	p.On("State").Return("state")
	p.On("EnsurePaused", mock.Anything).
		Return(schemas.NewError(schemas.KindConvergenceTimeout, "ensure_paused", "did not converge")).Once()

	planner := new(MockPlanner)
	planner.On("NextDirective", mock.Anything, mock.Anything).Return(directive(schemas.DirectivePause), nil).Once()
	planner.On("NextDirective", mock.Anything, mock.Anything).Return(directive(schemas.DirectiveFinished), nil).Once()

	o, _ := newTestOrchestrator(t, p, planner, 5)
	report, err := o.Run(context.Background(), "pause")
	require.NoError(t, err)

	require.Len(t, report.Entries, 2)
	res := report.Entries[0].Result
	assert.False(t, res.Converged)
	require.NotNil(t, res.Error)
	assert.Equal(t, schemas.KindConvergenceTimeout, res.Error.Kind)
}

func TestRun_PlannerErrorsEndTheRun(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"parse error keeps its kind", schemas.NewError(schemas.KindParse, "parse_directive", "unrecognized action"), schemas.ErrParse},
		{"untyped failure is an oracle error", errors.New("quota exceeded"), schemas.ErrOracle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPlayer)
			p.On("State").Return("state")
			planner := new(MockPlanner)
			planner.On("NextDirective", mock.Anything, mock.Anything).Return(schemas.Directive{}, tt.err).Once()

			o, log := newTestOrchestrator(t, p, planner, 5)
			_, err := o.Run(context.Background(), "play")
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, log.Entries())
		})
	}
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := new(MockPlayer)
	p.On("State").Return("state")
	p.On("EnsurePlaying", mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(context.Canceled).Once()
	planner := new(MockPlanner)
	planner.On("NextDirective", mock.Anything, mock.Anything).Return(directive(schemas.DirectivePlay), nil)

	o, log := newTestOrchestrator(t, p, planner, 5)
	_, err := o.Run(ctx, "play")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, log.Entries())
	planner.AssertNumberOfCalls(t, "NextDirective", 1)
}

// scriptedPlanner answers from a fixed list and then says finished.
type scriptedPlanner struct {
	directives []schemas.Directive
	seen       []schemas.PlanningContext
}

func (s *scriptedPlanner) NextDirective(_ context.Context, pctx schemas.PlanningContext) (schemas.Directive, error) {
	s.seen = append(s.seen, pctx)
	if len(s.directives) == 0 {
		return directive(schemas.DirectiveFinished), nil
	}
	d := s.directives[0]
	s.directives = s.directives[1:]
	return d, nil
}

func newSimSession(t *testing.T, simCfg simulator.Config) (*player.Session, *simulator.Player) {
	t.Helper()
	sim := simulator.New(simCfg, simulator.NewClock(time.Unix(0, 0)))
	once := retry.Policy{MaxAttempts: 1}
	o := oracle.NewStateOracle(sim, sim, oracle.Config{Retry: once, CaptureRetry: once}, zaptest.NewLogger(t))
	cal := player.Calibration{
		PlayPause:     simCfg.Layout.PlayPause,
		ProgressBar:   simCfg.Layout.Bar,
		Forward:       simCfg.Layout.Forward,
		Backward:      simCfg.Layout.Backward,
		TotalDuration: simCfg.Duration,
	}
	return player.NewSession(sim, o, cal, player.DefaultConfig(), zaptest.NewLogger(t), player.WithClock(sim.Clock())), sim
}

func TestRun_FinishedOnSimulatorTouchesNothing(t *testing.T) {
	session, sim := newSimSession(t, simulator.DefaultConfig())
	o, _ := newTestOrchestrator(t, session, &scriptedPlanner{}, 5)

	report, err := o.Run(context.Background(), "nothing to do")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Iterations)

	stats := sim.Stats()
	assert.Zero(t, stats.Taps+stats.Swipes+stats.Keys)
	assert.Zero(t, stats.Captures)
}

func TestRun_SimulatedPlayerEndsPausedAtTarget(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.Playing = true
	session, sim := newSimSession(t, cfg)
	planner := &scriptedPlanner{directives: []schemas.Directive{
		{Kind: schemas.DirectiveSeek, Target: 95 * time.Second},
		directive(schemas.DirectivePause),
	}}
	o, _ := newTestOrchestrator(t, session, planner, 5)

	report, err := o.Run(context.Background(), "pause the video at 1:35")
	require.NoError(t, err)

	assert.Equal(t, 95*time.Second, sim.Position().Truncate(time.Second))
	assert.False(t, sim.Playing())
	require.Len(t, report.Entries, 3)
	for _, e := range report.Entries {
		assert.True(t, e.Result.Converged, e.Line())
	}
	require.Len(t, planner.seen, 3)
	assert.Contains(t, planner.seen[2].PlayerState, "current_timestamp=00:01:35")
}

func TestDispatch(t *testing.T) {
	t.Run("pause converges", func(t *testing.T) {
		p := new(MockPlayer)
		p.On("EnsurePaused", mock.Anything).Return(nil).Once()
		res, err := Dispatch(context.Background(), p, directive(schemas.DirectivePause), nil)
		require.NoError(t, err)
		assert.True(t, res.Converged)
		p.AssertExpectations(t)
	})

	t.Run("seek failure keeps its kind", func(t *testing.T) {
		p := new(MockPlayer)
		failure := schemas.NewError(schemas.KindConvergenceTimeout, "seek", "seek did not converge")
		p.On("Seek", mock.Anything, time.Minute).Return(player.SeekResult{}, failure).Once()
		res, err := Dispatch(context.Background(), p, schemas.Directive{Kind: schemas.DirectiveSeek, Target: time.Minute}, zaptest.NewLogger(t))
		require.ErrorIs(t, err, schemas.ErrConvergenceTimeout)
		require.NotNil(t, res.Error)
		assert.Equal(t, schemas.KindConvergenceTimeout, res.Error.Kind)
	})

	t.Run("unknown directive is a parse error", func(t *testing.T) {
		res, err := Dispatch(context.Background(), new(MockPlayer), directive("rewind"), zaptest.NewLogger(t))
		require.ErrorIs(t, err, schemas.ErrParse)
		assert.False(t, res.Converged)
	})
}
