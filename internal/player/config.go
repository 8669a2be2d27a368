package player

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/vidpilot/internal/converge"
)

// Config tunes the controller and the seek planner. The thresholds are
// properties of the target app, so none of them are hardcoded.
type Config struct {
	// SettleDelay is waited after every actuation. Keep it under the
	// player's overlay auto-hide timer.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// ToggleHold is the press duration of the play/pause toggle.
	ToggleHold time.Duration `mapstructure:"toggle_hold" yaml:"toggle_hold"`
	// AutoHide is how long the player keeps its overlay up after a touch.
	AutoHide time.Duration `mapstructure:"auto_hide" yaml:"auto_hide"`
	// HotZoneOffsetY moves the overlay-provoking tap off the toggle itself.
	HotZoneOffsetY float64 `mapstructure:"hot_zone_offset_y" yaml:"hot_zone_offset_y"`
	// MaxConvergeAttempts caps the provoke/toggle cycles of one ensure call.
	MaxConvergeAttempts int `mapstructure:"max_converge_attempts" yaml:"max_converge_attempts"`

	// LargeThreshold is the distance at or above which seek taps the bar.
	LargeThreshold time.Duration `mapstructure:"large_threshold" yaml:"large_threshold"`
	// Step is the player's native skip granularity.
	Step time.Duration `mapstructure:"step" yaml:"step"`
	// MicroChunk is the longest single stretch of resumed playback.
	MicroChunk time.Duration `mapstructure:"micro_chunk" yaml:"micro_chunk"`
	// Tolerance is the accepted distance from the target.
	Tolerance time.Duration `mapstructure:"tolerance" yaml:"tolerance"`
	// MaxSeekIterations caps the observe/act rounds of one seek.
	MaxSeekIterations int `mapstructure:"max_seek_iterations" yaml:"max_seek_iterations"`
}

// DefaultConfig returns the tuning that matches the common mobile players.
func DefaultConfig() Config {
	return Config{
		SettleDelay:         500 * time.Millisecond,
		ToggleHold:          250 * time.Millisecond,
		AutoHide:            3 * time.Second,
		HotZoneOffsetY:      50,
		MaxConvergeAttempts: 5,
		LargeThreshold:      100 * time.Second,
		Step:                10 * time.Second,
		MicroChunk:          3 * time.Second,
		Tolerance:           0,
		MaxSeekIterations:   25,
	}
}

func (c Config) Validate() error {
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if c.ToggleHold <= 0 {
		return fmt.Errorf("toggle_hold must be positive")
	}
	if c.SettleDelay+c.ToggleHold >= c.AutoHide {
		return fmt.Errorf("settle_delay plus toggle_hold (%s) must be shorter than auto_hide (%s)", c.SettleDelay+c.ToggleHold, c.AutoHide)
	}
	if c.MaxConvergeAttempts <= 0 {
		return fmt.Errorf("max_converge_attempts must be positive")
	}
	if c.Step < time.Second {
		return fmt.Errorf("step must be at least one second")
	}
	if c.LargeThreshold < c.Step {
		return fmt.Errorf("large_threshold (%s) must not be smaller than step (%s)", c.LargeThreshold, c.Step)
	}
	if c.MicroChunk < time.Second {
		return fmt.Errorf("micro_chunk must be at least one second")
	}
	if c.MicroChunk-c.ToggleHold >= c.AutoHide {
		return fmt.Errorf("micro_chunk minus toggle_hold (%s) must be shorter than auto_hide (%s)", c.MicroChunk-c.ToggleHold, c.AutoHide)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}
	if c.MaxSeekIterations <= 0 {
		return fmt.Errorf("max_seek_iterations must be positive")
	}
	return nil
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Clock is the time source of a session. Simulated players run on a virtual
// clock so that waits and the overlay timer move together.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type options struct {
	sleep SleepFunc
	now   func() time.Time
}

// Option customizes a Session.
type Option func(*options)

// WithClock takes both the time and the waits from c.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.now = c.Now
			o.sleep = c.Sleep
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{sleep: converge.Sleep, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
