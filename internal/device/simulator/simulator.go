// Package simulator is a deterministic stand-in for a mobile video player. It
// acts as the device, the screenshot source and a ground-truth vision oracle,
// so the controller can be exercised end to end without hardware or a model.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

// Layout places the player's controls in normalized space.
type Layout struct {
	PlayPause schemas.Point `mapstructure:"play_pause" yaml:"play_pause"`
	Forward   schemas.Point `mapstructure:"forward" yaml:"forward"`
	Backward  schemas.Point `mapstructure:"backward" yaml:"backward"`
	Bar       schemas.Span  `mapstructure:"bar" yaml:"bar"`
}

// DefaultLayout is a portrait player with controls centered on the video.
func DefaultLayout() Layout {
	return Layout{
		PlayPause: schemas.Point{X: 500, Y: 450},
		Forward:   schemas.Point{X: 700, Y: 450},
		Backward:  schemas.Point{X: 300, Y: 450},
		Bar: schemas.Span{
			Start: schemas.Point{X: 100, Y: 600},
			End:   schemas.Point{X: 900, Y: 600},
		},
	}
}

// Config is the simulated player's initial state and behaviour.
type Config struct {
	Duration       time.Duration `mapstructure:"duration" yaml:"duration"`
	Position       time.Duration `mapstructure:"position" yaml:"position"`
	Playing        bool          `mapstructure:"playing" yaml:"playing"`
	OverlayVisible bool          `mapstructure:"overlay_visible" yaml:"overlay_visible"`
	AutoHide       time.Duration `mapstructure:"auto_hide" yaml:"auto_hide"`
	HideWhenPaused bool          `mapstructure:"hide_when_paused" yaml:"hide_when_paused"`
	Step           time.Duration `mapstructure:"step" yaml:"step"`
	HitRadius      float64       `mapstructure:"hit_radius" yaml:"hit_radius"`
	// OracleLatency is the virtual time every Classify and Extract call takes.
	OracleLatency time.Duration      `mapstructure:"oracle_latency" yaml:"oracle_latency"`
	Layout        Layout             `mapstructure:"layout" yaml:"layout"`
	Resolution    schemas.Resolution `mapstructure:"resolution" yaml:"resolution"`
}

// DefaultConfig is a ten minute video, paused at the start with its overlay up.
func DefaultConfig() Config {
	return Config{
		Duration:       10 * time.Minute,
		OverlayVisible: true,
		AutoHide:       3 * time.Second,
		Step:           10 * time.Second,
		HitRadius:      30,
		Layout:         DefaultLayout(),
		Resolution:     schemas.Resolution{Width: 1080, Height: 2400},
	}
}

// Stats counts what the player has been asked to do.
type Stats struct {
	Taps            int
	Swipes          int
	Keys            int
	Toggles         int
	Hops            int
	BarTaps         int
	Captures        int
	Classifications int
	Extractions     int
}

// frame is the state captured into a screenshot.
type frame struct {
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
	Playing  bool          `json:"playing"`
	Overlay  bool          `json:"overlay"`
}

// Player is the simulated player. All methods are safe for concurrent use.
type Player struct {
	mu    sync.Mutex
	cfg   Config
	clock *Clock

	position    time.Duration
	since       time.Time
	playing     bool
	overlay     bool
	lastTouched time.Time

	scripted        []map[schemas.Predicate]schemas.Verdict
	captureFailures int
	stats           Stats
}

// New creates a player running on clock. A nil clock starts a fresh one.
func New(cfg Config, clock *Clock) *Player {
	if clock == nil {
		clock = NewClock(time.Unix(0, 0))
	}
	now := clock.Now()
	return &Player{
		cfg:         cfg,
		clock:       clock,
		position:    cfg.Position,
		since:       now,
		playing:     cfg.Playing,
		overlay:     cfg.OverlayVisible,
		lastTouched: now,
	}
}

// Clock returns the player's virtual clock.
func (p *Player) Clock() *Clock { return p.clock }

// Sleep advances the player's clock.
func (p *Player) Sleep(ctx context.Context, d time.Duration) error {
	return p.clock.Sleep(ctx, d)
}

// Position reports the true playhead.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sync()
	return p.position
}

// Playing reports the true playback state.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sync()
	return p.playing
}

// Stats returns a snapshot of the counters.
func (p *Player) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// ScriptVerdicts queues classification answers that override ground truth,
// one per Classify call, in order.
func (p *Player) ScriptVerdicts(rounds ...map[schemas.Predicate]schemas.Verdict) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripted = append(p.scripted, rounds...)
}

// FailCaptures makes the next n captures fail.
func (p *Player) FailCaptures(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captureFailures = n
}

// sync advances the playhead to the clock. Caller holds mu.
func (p *Player) sync() {
	now := p.clock.Now()
	if p.playing {
		p.position += now.Sub(p.since)
		if p.position >= p.cfg.Duration {
			p.position = p.cfg.Duration
			p.playing = false
		}
	}
	p.since = now
	if p.overlay && (p.playing || p.cfg.HideWhenPaused) && now.Sub(p.lastTouched) > p.cfg.AutoHide {
		p.overlay = false
	}
}

func (p *Player) touch() {
	p.overlay = true
	p.lastTouched = p.clock.Now()
}

func (p *Player) near(a, b schemas.Point) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) <= p.cfg.HitRadius
}

func (p *Player) onBar(pt schemas.Point) bool {
	bar := p.cfg.Layout.Bar
	return math.Abs(pt.Y-bar.MidY()) <= p.cfg.HitRadius && pt.X >= bar.Start.X && pt.X <= bar.End.X
}

// press handles an instant touch at pt. Caller holds mu.
func (p *Player) press(pt schemas.Point) {
	p.sync()
	p.release(pt, p.overlay)
}

// release applies a touch at pt that went down while the overlay was
// visible or not. Caller holds mu and has synced.
func (p *Player) release(pt schemas.Point, visible bool) {
	if !visible {
		// A hidden overlay swallows the first touch and reappears.
		p.touch()
		return
	}
	l := p.cfg.Layout
	switch {
	case p.near(pt, l.PlayPause):
		p.toggle()
	case p.near(pt, l.Forward):
		p.hop(p.cfg.Step)
	case p.near(pt, l.Backward):
		p.hop(-p.cfg.Step)
	case p.onBar(pt):
		p.stats.BarTaps++
		frac := (pt.X - l.Bar.Start.X) / l.Bar.Length()
		p.position = time.Duration(math.Round(frac*p.cfg.Duration.Seconds())) * time.Second
	}
	p.touch()
}

func (p *Player) toggle() {
	p.stats.Toggles++
	p.playing = !p.playing
	if p.playing && p.position >= p.cfg.Duration {
		p.playing = false
	}
}

func (p *Player) hop(d time.Duration) {
	p.stats.Hops++
	p.position += d
	if p.position < 0 {
		p.position = 0
	}
	if p.position > p.cfg.Duration {
		p.position = p.cfg.Duration
	}
}

func (p *Player) Tap(ctx context.Context, pt schemas.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Taps++
	p.press(pt)
	return nil
}

// Swipe takes d of virtual time, like a blocking device swipe. A zero-length
// swipe is a held press: whether it hits a control depends on the overlay
// when the finger goes down, and it takes effect on release. Real drags are
// recorded only.
func (p *Player) Swipe(ctx context.Context, from, to schemas.Point, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Swipes++
	p.sync()
	visible := p.overlay
	p.clock.Advance(d)
	p.sync()
	if p.near(from, to) {
		p.release(from, visible)
	}
	return nil
}

func (p *Player) Key(ctx context.Context, key schemas.KeyEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Keys++
	p.sync()
	switch key {
	case schemas.KeyPlayPause, schemas.KeySpace:
		p.toggle()
		p.touch()
	case schemas.KeyBack, schemas.KeyHome:
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
	return nil
}

// Close is a no-op; the simulator holds no resources.
func (p *Player) Close() error { return nil }

// Capture encodes the current state into the screenshot payload.
func (p *Player) Capture(ctx context.Context) (schemas.Screenshot, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Screenshot{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureFailures > 0 {
		p.captureFailures--
		return schemas.Screenshot{}, errors.New("simulated capture failure")
	}
	p.sync()
	p.stats.Captures++
	data, err := json.Marshal(frame{
		Position: p.position,
		Duration: p.cfg.Duration,
		Playing:  p.playing,
		Overlay:  p.overlay,
	})
	if err != nil {
		return schemas.Screenshot{}, fmt.Errorf("failed to encode frame: %w", err)
	}
	return schemas.Screenshot{
		Data:       data,
		MIMEType:   "application/x-vidpilot-frame",
		Resolution: p.cfg.Resolution,
		CapturedAt: p.clock.Now(),
	}, nil
}

func decodeFrame(shot schemas.Screenshot) (frame, error) {
	var f frame
	if err := json.Unmarshal(shot.Data, &f); err != nil {
		return f, fmt.Errorf("screenshot is not a simulator frame: %w", err)
	}
	return f, nil
}

// Classify answers from the captured frame, or from the next scripted round.
// The answer describes the frame, however much time the call takes.
func (p *Player) Classify(ctx context.Context, shot schemas.Screenshot, predicates []schemas.Predicate) (map[schemas.Predicate]schemas.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.clock.Advance(p.cfg.OracleLatency)
	p.stats.Classifications++
	var script map[schemas.Predicate]schemas.Verdict
	if len(p.scripted) > 0 {
		script, p.scripted = p.scripted[0], p.scripted[1:]
	}
	p.mu.Unlock()

	f, err := decodeFrame(shot)
	if err != nil {
		return nil, err
	}
	out := make(map[schemas.Predicate]schemas.Verdict, len(predicates))
	for _, pred := range predicates {
		if v, ok := script[pred]; ok {
			out[pred] = v
			continue
		}
		switch pred {
		case schemas.PredicatePauseIconVisible:
			out[pred] = schemas.VerdictOf(f.Overlay && f.Playing)
		case schemas.PredicatePlayIconVisible:
			out[pred] = schemas.VerdictOf(f.Overlay && !f.Playing)
		case schemas.PredicateProgressBarVisible:
			out[pred] = schemas.VerdictOf(f.Overlay)
		default:
			out[pred] = schemas.VerdictUnknown
		}
	}
	return out, nil
}

// Extract reports what a viewer could read off the frame. Everything except
// the bar's visibility is hidden along with the overlay.
func (p *Player) Extract(ctx context.Context, shot schemas.Screenshot, fields []schemas.ExtractionField) (schemas.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Extraction{}, err
	}
	p.mu.Lock()
	p.clock.Advance(p.cfg.OracleLatency)
	p.stats.Extractions++
	l := p.cfg.Layout
	p.mu.Unlock()

	f, err := decodeFrame(shot)
	if err != nil {
		return schemas.Extraction{}, err
	}
	var e schemas.Extraction
	for _, field := range fields {
		if field == schemas.FieldProgressBarVisible {
			visible := f.Overlay
			e.ProgressBarVisible = &visible
			continue
		}
		if !f.Overlay {
			continue
		}
		switch field {
		case schemas.FieldCurrentTimestamp:
			ts := f.Position.Truncate(time.Second)
			e.CurrentTimestamp = &ts
		case schemas.FieldTotalDuration:
			d := f.Duration
			e.TotalDuration = &d
		case schemas.FieldProgressBarBounds:
			bar := l.Bar
			e.ProgressBar = &bar
		case schemas.FieldPlayPauseButton:
			pt := l.PlayPause
			e.PlayPause = &pt
		case schemas.FieldForwardButton:
			pt := l.Forward
			e.Forward = &pt
		case schemas.FieldBackwardButton:
			pt := l.Backward
			e.Backward = &pt
		}
	}
	return e, nil
}
