// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
	"github.com/xkilldash9x/vidpilot/internal/device"
	"github.com/xkilldash9x/vidpilot/internal/device/adb"
	"github.com/xkilldash9x/vidpilot/internal/device/cdp"
	"github.com/xkilldash9x/vidpilot/internal/device/simulator"
	"github.com/xkilldash9x/vidpilot/internal/oracle"
	"github.com/xkilldash9x/vidpilot/internal/orchestrator"
	"github.com/xkilldash9x/vidpilot/internal/player"
)

// Options selects the optional parts of a session.
type Options struct {
	// Planner builds the orchestrator and its LLM planner.
	Planner bool
}

// ComponentFactory defines the interface for creating the components of a session.
// This abstraction is the key to making the commands testable.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, opts Options, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// backend is an opened device plus the calibration it could seed.
type backend struct {
	dev         device.Device
	sim         *simulator.Player
	calibration player.Calibration
}

// Create handles the full dependency injection and initialization of a session.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, opts Options, logger *zap.Logger) (*Components, error) {
	components := &Components{logger: logger}

	// Ensure cleanup happens if initialization fails midway.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Device backend
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Device = b.dev
	components.Simulator = b.sim
	logger.Debug("Device backend initialized.", zap.String("backend", cfg.Device().Backend))

	// 2. LLM client, needed by the planner and by any real screen.
	if opts.Planner || b.sim == nil {
		llm, err := InitializeLLMClient(ctx, cfg.Agent(), logger)
		if err != nil {
			initializationErr = err
			return nil, initializationErr
		}
		components.LLM = llm
	}

	// 3. Screenshot source, optionally archived to disk.
	var source schemas.ScreenshotSource = b.dev
	if dir := cfg.Device().ScreenshotDir; dir != "" {
		archive, err := device.NewArchive(b.dev, dir, logger)
		if err != nil {
			initializationErr = err
			return nil, initializationErr
		}
		source = archive
		logger.Info("Archiving screenshots.", zap.String("dir", archive.Dir()))
	}

	// 4. Vision: the simulator answers from ground truth, anything else asks the model.
	var vision schemas.VisionOracle = b.sim
	if b.sim == nil {
		vision = oracle.NewLLMVision(components.LLM, logger)
	}
	oc := cfg.Oracle()
	stateOracle := oracle.NewStateOracle(source, vision, oracle.Config{
		RateLimit:    oc.RateLimit,
		Burst:        oc.Burst,
		Retry:        oc.Retry,
		CaptureRetry: oc.CaptureRetry,
	}, logger)

	// 5. Player session over a retrying actuation port.
	port := device.NewResilient(b.dev, cfg.Device().Retry, logger)
	var sessionOpts []player.Option
	if b.sim != nil {
		sessionOpts = append(sessionOpts, player.WithClock(b.sim.Clock()))
	}
	components.Session = player.NewSession(port, stateOracle, b.calibration, cfg.Player().Control, logger, sessionOpts...)
	logger.Debug("Player session initialized.")

	// 6. Journal
	log, pool, err := InitializeJournal(ctx, cfg.Journal(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Journal = log
	components.DBPool = pool
	logger.Debug("Journal initialized.", zap.Stringer("session_id", log.SessionID()))

	// 7. Orchestrator
	if opts.Planner {
		planner := orchestrator.NewLLMPlanner(components.LLM, logger)
		orch, err := orchestrator.New(cfg.Orchestrator(), logger, components.Session, planner, log)
		if err != nil {
			initializationErr = fmt.Errorf("failed to create orchestrator: %w", err)
			return nil, initializationErr
		}
		components.Orchestrator = orch
		logger.Debug("Orchestrator initialized.")
	}

	logger.Info("All components initialized successfully.")
	return components, nil
}

// openBackend opens the configured device and seeds the calibration from
// whatever the backend can report without the vision oracle.
func openBackend(ctx context.Context, cfg config.Interface, logger *zap.Logger) (backend, error) {
	dc := cfg.Device()
	cal := cfg.Player().Calibration

	switch strings.ToLower(dc.Backend) {
	case config.BackendADB:
		d := adb.New(dc.ADB, dc.Resolution, logger)
		if dc.ADB.DetectResolution {
			if res, err := d.DisplaySize(ctx); err != nil {
				logger.Warn("Could not read the display size; using the configured resolution.", zap.Error(err))
			} else {
				d.SetResolution(res)
			}
		}
		if dc.ADB.HierarchyCalibration {
			ext, err := d.Calibrate(ctx, dc.ADB.ResourceIDs)
			if err != nil {
				logger.Warn("View hierarchy calibration failed; the vision oracle will calibrate.", zap.Error(err))
			} else {
				cal = cal.Refine(ext)
			}
		}
		return backend{dev: d, calibration: cal}, nil

	case config.BackendCDP:
		d, err := cdp.New(ctx, dc.CDP, dc.Resolution, logger)
		if err != nil {
			return backend{}, fmt.Errorf("failed to initialize browser device: %w", err)
		}
		return backend{dev: d, calibration: cal}, nil

	case config.BackendSimulator:
		sim := simulator.New(dc.Simulator, nil)
		return backend{dev: sim, sim: sim, calibration: simulatorCalibration(dc.Simulator)}, nil

	default:
		return backend{}, fmt.Errorf("unknown device backend %q", dc.Backend)
	}
}

// simulatorCalibration is the geometry the simulated player is built with.
func simulatorCalibration(cfg simulator.Config) player.Calibration {
	return player.Calibration{
		PlayPause:     cfg.Layout.PlayPause,
		ProgressBar:   cfg.Layout.Bar,
		Forward:       cfg.Layout.Forward,
		Backward:      cfg.Layout.Backward,
		TotalDuration: cfg.Duration,
	}
}
