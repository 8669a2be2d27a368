// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/device/simulator"
	"github.com/xkilldash9x/vidpilot/internal/player"
	"github.com/xkilldash9x/vidpilot/internal/retry"
)

// EnvPrefix is the prefix of every environment override, e.g. VIDPILOT_DEVICE_BACKEND.
const EnvPrefix = "VIDPILOT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Device() DeviceConfig
	Oracle() OracleConfig
	Player() PlayerConfig
	Orchestrator() OrchestratorConfig
	Agent() AgentConfig
	Journal() JournalConfig

	// CLI flag overrides.
	SetDeviceBackend(backend string)
	SetOrchestratorMaxIterations(n int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	DeviceCfg       DeviceConfig       `mapstructure:"device" yaml:"device"`
	OracleCfg       OracleConfig       `mapstructure:"oracle" yaml:"oracle"`
	PlayerCfg       PlayerConfig       `mapstructure:"player" yaml:"player"`
	OrchestratorCfg OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	AgentCfg        AgentConfig        `mapstructure:"agent" yaml:"agent"`
	JournalCfg      JournalConfig      `mapstructure:"journal" yaml:"journal"`
}

func (c *Config) Logger() LoggerConfig             { return c.LoggerCfg }
func (c *Config) Device() DeviceConfig             { return c.DeviceCfg }
func (c *Config) Oracle() OracleConfig             { return c.OracleCfg }
func (c *Config) Player() PlayerConfig             { return c.PlayerCfg }
func (c *Config) Orchestrator() OrchestratorConfig { return c.OrchestratorCfg }
func (c *Config) Agent() AgentConfig               { return c.AgentCfg }
func (c *Config) Journal() JournalConfig           { return c.JournalCfg }

func (c *Config) SetDeviceBackend(backend string)    { c.DeviceCfg.Backend = backend }
func (c *Config) SetOrchestratorMaxIterations(n int) { c.OrchestratorCfg.MaxIterations = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Device backends.
const (
	BackendADB       = "adb"
	BackendCDP       = "cdp"
	BackendSimulator = "sim"
)

// DeviceConfig selects and tunes the actuation and screenshot backend.
type DeviceConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Retry bounds every actuation; its timeout applies per attempt.
	Retry         retry.Policy       `mapstructure:"retry" yaml:"retry"`
	Resolution    schemas.Resolution `mapstructure:"resolution" yaml:"resolution"`
	ScreenshotDir string             `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	ADB           ADBConfig          `mapstructure:"adb" yaml:"adb"`
	CDP           CDPConfig          `mapstructure:"cdp" yaml:"cdp"`
	Simulator     simulator.Config   `mapstructure:"simulator" yaml:"simulator"`
}

// ADBConfig configures the Android debug bridge backend.
type ADBConfig struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Serial string `mapstructure:"serial" yaml:"serial"`
	// DetectResolution asks the device for its display size instead of
	// trusting device.resolution.
	DetectResolution bool `mapstructure:"detect_resolution" yaml:"detect_resolution"`
	// HierarchyCalibration seeds the player geometry from a UI hierarchy dump.
	HierarchyCalibration bool              `mapstructure:"hierarchy_calibration" yaml:"hierarchy_calibration"`
	ResourceIDs          ResourceIDsConfig `mapstructure:"resource_ids" yaml:"resource_ids"`
}

// ResourceIDsConfig names the Android views of the player's controls.
type ResourceIDsConfig struct {
	SeekBar   string `mapstructure:"seek_bar" yaml:"seek_bar"`
	PlayPause string `mapstructure:"play_pause" yaml:"play_pause"`
	Forward   string `mapstructure:"forward" yaml:"forward"`
	Backward  string `mapstructure:"backward" yaml:"backward"`
}

// CDPConfig configures the mobile-emulated browser backend.
type CDPConfig struct {
	URL       string `mapstructure:"url" yaml:"url"`
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath  string `mapstructure:"exec_path" yaml:"exec_path"`
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// ScaleFactor is device pixels per CSS pixel; the CSS viewport is
	// device.resolution divided by it.
	ScaleFactor float64 `mapstructure:"scale_factor" yaml:"scale_factor"`
}

// OracleConfig bounds the vision oracle.
type OracleConfig struct {
	// RateLimit is the sustained number of oracle queries per second.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
	// Retry bounds each query; its timeout applies per attempt.
	Retry retry.Policy `mapstructure:"retry" yaml:"retry"`
	// CaptureRetry bounds screenshot capture.
	CaptureRetry retry.Policy `mapstructure:"capture_retry" yaml:"capture_retry"`
}

// PlayerConfig holds the player geometry and the controller tuning.
type PlayerConfig struct {
	Calibration player.Calibration `mapstructure:"calibration" yaml:"calibration"`
	Control     player.Config      `mapstructure:"control" yaml:"control"`
}

// OrchestratorConfig bounds the instruction loop.
type OrchestratorConfig struct {
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
}

// JournalConfig configures where the action log is kept.
type JournalConfig struct {
	File string `mapstructure:"file" yaml:"file"`
	// MaxSize is the size in megabytes at which the journal file rotates.
	MaxSize  int            `mapstructure:"max_size" yaml:"max_size"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// AgentConfig holds settings related to the LLM oracles.
type AgentConfig struct {
	LLM LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"api_key"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
	// MaxRetries and RetryBackoff bound the client's retry of transient API
	// errors: at most MaxRetries further attempts, RetryBackoff apart.
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vidpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Device --
	v.SetDefault("device.backend", BackendADB)
	v.SetDefault("device.retry.max_attempts", 3)
	v.SetDefault("device.retry.backoff", "500ms")
	v.SetDefault("device.retry.timeout", "10s")
	v.SetDefault("device.resolution.width", 1080)
	v.SetDefault("device.resolution.height", 2400)
	v.SetDefault("device.screenshot_dir", "")
	v.SetDefault("device.adb.path", "adb")
	v.SetDefault("device.adb.detect_resolution", true)
	v.SetDefault("device.adb.hierarchy_calibration", false)
	v.SetDefault("device.cdp.headless", true)
	v.SetDefault("device.cdp.scale_factor", 3.0)

	sim := simulator.DefaultConfig()
	v.SetDefault("device.simulator.duration", sim.Duration)
	v.SetDefault("device.simulator.position", sim.Position)
	v.SetDefault("device.simulator.playing", sim.Playing)
	v.SetDefault("device.simulator.overlay_visible", sim.OverlayVisible)
	v.SetDefault("device.simulator.auto_hide", sim.AutoHide)
	v.SetDefault("device.simulator.step", sim.Step)
	v.SetDefault("device.simulator.hit_radius", sim.HitRadius)
	v.SetDefault("device.simulator.oracle_latency", sim.OracleLatency)
	setPointDefault(v, "device.simulator.layout.play_pause", sim.Layout.PlayPause)
	setPointDefault(v, "device.simulator.layout.forward", sim.Layout.Forward)
	setPointDefault(v, "device.simulator.layout.backward", sim.Layout.Backward)
	setPointDefault(v, "device.simulator.layout.bar.start", sim.Layout.Bar.Start)
	setPointDefault(v, "device.simulator.layout.bar.end", sim.Layout.Bar.End)
	v.SetDefault("device.simulator.resolution.width", sim.Resolution.Width)
	v.SetDefault("device.simulator.resolution.height", sim.Resolution.Height)

	// -- Oracle --
	v.SetDefault("oracle.rate_limit", 2.0)
	v.SetDefault("oracle.burst", 2)
	v.SetDefault("oracle.retry.max_attempts", 3)
	v.SetDefault("oracle.retry.backoff", "2s")
	v.SetDefault("oracle.retry.timeout", "60s")
	v.SetDefault("oracle.capture_retry.max_attempts", 3)
	v.SetDefault("oracle.capture_retry.backoff", "500ms")
	v.SetDefault("oracle.capture_retry.timeout", "15s")

	// -- Player --
	ctl := player.DefaultConfig()
	v.SetDefault("player.control.settle_delay", ctl.SettleDelay)
	v.SetDefault("player.control.toggle_hold", ctl.ToggleHold)
	v.SetDefault("player.control.auto_hide", ctl.AutoHide)
	v.SetDefault("player.control.hot_zone_offset_y", ctl.HotZoneOffsetY)
	v.SetDefault("player.control.max_converge_attempts", ctl.MaxConvergeAttempts)
	v.SetDefault("player.control.large_threshold", ctl.LargeThreshold)
	v.SetDefault("player.control.step", ctl.Step)
	v.SetDefault("player.control.micro_chunk", ctl.MicroChunk)
	v.SetDefault("player.control.tolerance", ctl.Tolerance)
	v.SetDefault("player.control.max_seek_iterations", ctl.MaxSeekIterations)
	setPointDefault(v, "player.calibration.play_pause", schemas.Point{X: 501, Y: 157})

	// -- Orchestrator --
	v.SetDefault("orchestrator.max_iterations", 10)

	// -- Agent --
	v.SetDefault("agent.llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.default_powerful_model", "gemini-2.5-pro")
	v.SetDefault("agent.llm.models", map[string]interface{}{
		"gemini-2.5-flash": map[string]interface{}{
			"provider":      string(ProviderGemini),
			"model":         "gemini-2.5-flash",
			"api_timeout":   "60s",
			"temperature":   0.0,
			"max_retries":   2,
			"retry_backoff": "2s",
		},
		"gemini-2.5-pro": map[string]interface{}{
			"provider":      string(ProviderGemini),
			"model":         "gemini-2.5-pro",
			"api_timeout":   "120s",
			"temperature":   0.0,
			"max_retries":   2,
			"retry_backoff": "2s",
		},
	})

	// -- Journal --
	v.SetDefault("journal.file", "")
	v.SetDefault("journal.max_size", 50)
	v.SetDefault("journal.database.url", "")
}

func setPointDefault(v *viper.Viper, key string, p schemas.Point) {
	v.SetDefault(key+".x", p.X)
	v.SetDefault(key+".y", p.Y)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("journal.database.url", EnvPrefix+"_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Model entries come from a map, so their keys are not bound automatically.
	apiKey := os.Getenv("GEMINI_API_KEY")
	for name, m := range cfg.AgentCfg.LLM.Models {
		if m.APIKey == "" && apiKey != "" {
			m.APIKey = apiKey
		}
		if m.Provider == "" {
			m.Provider = ProviderGemini
		}
		cfg.AgentCfg.LLM.Models[name] = m
	}

	var err error
	if cfg.DeviceCfg.ScreenshotDir, err = expandPath(cfg.DeviceCfg.ScreenshotDir); err != nil {
		return nil, err
	}
	if cfg.JournalCfg.File, err = expandPath(cfg.JournalCfg.File); err != nil {
		return nil, err
	}
	if cfg.LoggerCfg.LogFile, err = expandPath(cfg.LoggerCfg.LogFile); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("failed to expand path %q: %w", p, err)
	}
	return expanded, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.DeviceCfg.Validate(); err != nil {
		return fmt.Errorf("device configuration invalid: %w", err)
	}
	if err := c.OracleCfg.Validate(); err != nil {
		return fmt.Errorf("oracle configuration invalid: %w", err)
	}
	if err := c.PlayerCfg.Calibration.Validate(); err != nil {
		return fmt.Errorf("player configuration invalid: %w", err)
	}
	if err := c.PlayerCfg.Control.Validate(); err != nil {
		return fmt.Errorf("player.control configuration invalid: %w", err)
	}
	if c.OrchestratorCfg.MaxIterations <= 0 {
		return fmt.Errorf("orchestrator.max_iterations must be a positive integer")
	}
	return nil
}

// Validate checks the device settings.
func (d *DeviceConfig) Validate() error {
	switch strings.ToLower(d.Backend) {
	case BackendADB:
		if d.ADB.Path == "" {
			return fmt.Errorf("adb.path is required for the adb backend")
		}
	case BackendCDP:
		if d.CDP.URL == "" {
			return fmt.Errorf("cdp.url is required for the cdp backend")
		}
		if d.CDP.ScaleFactor <= 0 {
			return fmt.Errorf("cdp.scale_factor must be positive")
		}
	case BackendSimulator:
		if d.Simulator.Duration <= 0 {
			return fmt.Errorf("simulator.duration must be a positive duration")
		}
	default:
		return fmt.Errorf("unknown backend %q (expected %s, %s or %s)", d.Backend, BackendADB, BackendCDP, BackendSimulator)
	}
	if !d.Resolution.Valid() {
		return fmt.Errorf("resolution must be positive, got %dx%d", d.Resolution.Width, d.Resolution.Height)
	}
	if d.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be a positive integer")
	}
	return nil
}

// Validate checks the oracle settings.
func (o *OracleConfig) Validate() error {
	if o.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if o.RateLimit > 0 && o.Burst <= 0 {
		return fmt.Errorf("burst must be positive when rate_limit is set")
	}
	if o.Retry.MaxAttempts <= 0 || o.CaptureRetry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts and capture_retry.max_attempts must be positive integers")
	}
	return nil
}

// Validate checks that both routed tiers resolve to a usable model.
func (r *LLMRouterConfig) Validate() error {
	for _, name := range []string{r.DefaultFastModel, r.DefaultPowerfulModel} {
		m, ok := r.Models[name]
		if !ok {
			return fmt.Errorf("model %q is not configured under agent.llm.models", name)
		}
		if m.Model == "" {
			return fmt.Errorf("model %q has no model name", name)
		}
		if m.APIKey == "" {
			return fmt.Errorf("model %q has no API key. Set it in the config file or via GEMINI_API_KEY", name)
		}
	}
	return nil
}
