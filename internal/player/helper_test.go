package player

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/device/simulator"
	"github.com/xkilldash9x/vidpilot/internal/oracle"
	"github.com/xkilldash9x/vidpilot/internal/retry"
)

// simCalibration is the calibration a fully extracted default layout yields.
func simCalibration(cfg simulator.Config) Calibration {
	return Calibration{
		PlayPause:     cfg.Layout.PlayPause,
		ProgressBar:   cfg.Layout.Bar,
		Forward:       cfg.Layout.Forward,
		Backward:      cfg.Layout.Backward,
		TotalDuration: cfg.Duration,
	}
}

// newSimSession wires a session to a simulated player on a virtual clock.
func newSimSession(t *testing.T, simCfg simulator.Config, cal Calibration) (*Session, *simulator.Player) {
	t.Helper()
	sim := simulator.New(simCfg, simulator.NewClock(time.Unix(0, 0)))
	once := retry.Policy{MaxAttempts: 1}
	o := oracle.NewStateOracle(sim, sim, oracle.Config{Retry: once, CaptureRetry: once}, zaptest.NewLogger(t))
	s := NewSession(sim, o, cal, DefaultConfig(), zaptest.NewLogger(t), WithClock(sim.Clock()))
	return s, sim
}

func verdictRounds(n int, pause, play schemas.Verdict) []map[schemas.Predicate]schemas.Verdict {
	rounds := make([]map[schemas.Predicate]schemas.Verdict, n)
	for i := range rounds {
		rounds[i] = map[schemas.Predicate]schemas.Verdict{
			schemas.PredicatePauseIconVisible: pause,
			schemas.PredicatePlayIconVisible:  play,
		}
	}
	return rounds
}
