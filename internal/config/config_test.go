// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, BackendADB, cfg.Device().Backend)
	assert.Equal(t, 3, cfg.Device().Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Device().Retry.Timeout)
	assert.Equal(t, schemas.Resolution{Width: 1080, Height: 2400}, cfg.Device().Resolution)
	assert.True(t, cfg.Device().ADB.DetectResolution)
	assert.Equal(t, 3.0, cfg.Device().CDP.ScaleFactor)
	assert.Equal(t, 10*time.Minute, cfg.Device().Simulator.Duration)
	assert.Equal(t, 2.0, cfg.Oracle().RateLimit)
	assert.Equal(t, schemas.Point{X: 501, Y: 157}, cfg.Player().Calibration.PlayPause)
	assert.Equal(t, 100*time.Second, cfg.Player().Control.LargeThreshold)
	assert.Equal(t, 3*time.Second, cfg.Player().Control.MicroChunk)
	assert.Equal(t, 10, cfg.Orchestrator().MaxIterations)
	assert.Equal(t, "gemini-2.5-pro", cfg.Agent().LLM.DefaultPowerfulModel)
	flash := cfg.Agent().LLM.Models["gemini-2.5-flash"]
	assert.Equal(t, 2, flash.MaxRetries)
	assert.Equal(t, 2*time.Second, flash.RetryBackoff)
	assert.Equal(t, 3*time.Second, cfg.Player().Control.AutoHide)
	assert.Equal(t, 50, cfg.Journal().MaxSize)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "A valid config should not produce a validation error")

		invalidOrchestrator := *cfg
		invalidOrchestrator.OrchestratorCfg.MaxIterations = 0
		err := invalidOrchestrator.Validate()
		assert.ErrorContains(t, err, "orchestrator.max_iterations must be a positive integer")

		invalidPlayer := *cfg
		invalidPlayer.PlayerCfg.Control.Step = 0
		err = invalidPlayer.Validate()
		assert.ErrorContains(t, err, "player.control configuration invalid")

		invalidCalibration := *cfg
		invalidCalibration.PlayerCfg.Calibration.PlayPause = schemas.Point{X: 1200, Y: 10}
		err = invalidCalibration.Validate()
		assert.ErrorContains(t, err, "calibration.play_pause")
	})

	t.Run("Device Validation", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(*DeviceConfig)
			wantErr string
		}{
			{"unknown backend", func(d *DeviceConfig) { d.Backend = "ios" }, "unknown backend"},
			{"adb without path", func(d *DeviceConfig) { d.ADB.Path = "" }, "adb.path is required"},
			{"cdp without url", func(d *DeviceConfig) { d.Backend = BackendCDP }, "cdp.url is required"},
			{"cdp without scale", func(d *DeviceConfig) {
				d.Backend = BackendCDP
				d.CDP.URL = "http://localhost:8080/player"
				d.CDP.ScaleFactor = 0
			}, "cdp.scale_factor must be positive"},
			{"sim without duration", func(d *DeviceConfig) {
				d.Backend = BackendSimulator
				d.Simulator.Duration = 0
			}, "simulator.duration"},
			{"bad resolution", func(d *DeviceConfig) { d.Resolution.Width = 0 }, "resolution must be positive"},
			{"no retries", func(d *DeviceConfig) { d.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				d := NewDefaultConfig().DeviceCfg
				tt.mutate(&d)
				assert.ErrorContains(t, d.Validate(), tt.wantErr)
			})
		}

		d := NewDefaultConfig().DeviceCfg
		d.Backend = "SIM"
		assert.NoError(t, d.Validate(), "backend names are case insensitive")
	})

	t.Run("Oracle Validation", func(t *testing.T) {
		o := NewDefaultConfig().OracleCfg
		o.Burst = 0
		assert.ErrorContains(t, o.Validate(), "burst must be positive")

		o = NewDefaultConfig().OracleCfg
		o.RateLimit = 0
		o.Burst = 0
		assert.NoError(t, o.Validate(), "an unlimited oracle needs no burst")

		o.CaptureRetry.MaxAttempts = 0
		assert.Error(t, o.Validate())
	})

	t.Run("LLM Router Validation", func(t *testing.T) {
		r := NewDefaultConfig().AgentCfg.LLM
		assert.ErrorContains(t, r.Validate(), "has no API key")

		for name, m := range r.Models {
			m.APIKey = "key"
			r.Models[name] = m
		}
		assert.NoError(t, r.Validate())

		r.DefaultFastModel = "gpt-4o"
		assert.ErrorContains(t, r.Validate(), `model "gpt-4o" is not configured`)
	})
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
device:
  backend: sim
  simulator:
    duration: 20m
player:
  control:
    large_threshold: 2m
    micro_chunk: 5s
    auto_hide: 6s
  calibration:
    progress_bar:
      start: {x: 100, y: 600}
      end: {x: 900, y: 600}
orchestrator:
  max_iterations: 4
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, BackendSimulator, cfg.Device().Backend)
		assert.Equal(t, 20*time.Minute, cfg.Device().Simulator.Duration)
		assert.Equal(t, 2*time.Minute, cfg.Player().Control.LargeThreshold)
		assert.Equal(t, 5*time.Second, cfg.Player().Control.MicroChunk)
		assert.Equal(t, 6*time.Second, cfg.Player().Control.AutoHide)
		assert.Equal(t, 10*time.Second, cfg.Player().Control.Step, "unset keys keep their defaults")
		assert.Equal(t, 100.0, cfg.Player().Calibration.ProgressBar.Start.X)
		assert.Equal(t, 4, cfg.Orchestrator().MaxIterations)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("orchestrator.max_iterations", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "orchestrator.max_iterations must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
journal:
  database:
    url: "postgres://configfile/db"
`)))

		t.Setenv(EnvPrefix+"_DATABASE_URL", "postgres://envvar/db")
		t.Setenv("GEMINI_API_KEY", "env-key")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "postgres://envvar/db", cfg.Journal().Database.URL)
		for name, m := range cfg.Agent().LLM.Models {
			assert.Equal(t, "env-key", m.APIKey, name)
		}
	})

	t.Run("Paths Are Expanded", func(t *testing.T) {
		homedir.DisableCache = true
		t.Cleanup(func() { homedir.DisableCache = false })
		t.Setenv("HOME", "/home/tester")
		v := viper.New()
		SetDefaults(v)
		v.Set("journal.file", "~/vidpilot/actions.jsonl")
		v.Set("device.screenshot_dir", "~/vidpilot/frames")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "/home/tester/vidpilot/actions.jsonl", cfg.Journal().File)
		assert.Equal(t, "/home/tester/vidpilot/frames", cfg.Device().ScreenshotDir)
	})
}

func TestCLIOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	var iface Interface = cfg

	iface.SetDeviceBackend(BackendCDP)
	iface.SetOrchestratorMaxIterations(7)

	assert.Equal(t, BackendCDP, cfg.Device().Backend)
	assert.Equal(t, 7, cfg.Orchestrator().MaxIterations)
}
