// File: internal/service/components.go
package service

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/device"
	"github.com/xkilldash9x/vidpilot/internal/device/simulator"
	"github.com/xkilldash9x/vidpilot/internal/journal"
	"github.com/xkilldash9x/vidpilot/internal/orchestrator"
	"github.com/xkilldash9x/vidpilot/internal/player"
)

// Components holds every initialized service of one controller session and
// owns their lifecycle.
type Components struct {
	Device  device.Device
	Session *player.Session
	Journal *journal.Log
	// Orchestrator is nil unless a planner was requested.
	Orchestrator *orchestrator.Orchestrator
	// Simulator is set when the sim backend is in use.
	Simulator *simulator.Player
	LLM       schemas.LLMClient
	DBPool    *pgxpool.Pool

	logger *zap.Logger
}

// Shutdown releases everything in reverse dependency order. It is safe to
// call on partially initialized components.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Flush and close the journal sinks while the database is still up.
	if c.Journal != nil {
		if err := c.Journal.Close(); err != nil {
			logger.Warn("Error closing journal sinks.", zap.Error(err))
		} else {
			logger.Debug("Journal closed.")
		}
	}

	// 2. The LLM client.
	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			logger.Warn("Error closing LLM client.", zap.Error(err))
		}
	}

	// 3. The device, which may own a browser process.
	if c.Device != nil {
		if err := c.Device.Close(); err != nil {
			logger.Warn("Error closing device.", zap.Error(err))
		} else {
			logger.Debug("Device closed.")
		}
	}

	// 4. The pool. The store sink closes it too; pgxpool tolerates that.
	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down.")
}
