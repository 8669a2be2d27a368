package player

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/timecode"
)

// Calibration holds the player's stable geometry and the video length. All
// points are in normalized space.
type Calibration struct {
	PlayPause     schemas.Point `json:"play_pause" mapstructure:"play_pause" yaml:"play_pause"`
	ProgressBar   schemas.Span  `json:"progress_bar" mapstructure:"progress_bar" yaml:"progress_bar"`
	Forward       schemas.Point `json:"forward" mapstructure:"forward" yaml:"forward"`
	Backward      schemas.Point `json:"backward" mapstructure:"backward" yaml:"backward"`
	TotalDuration time.Duration `json:"total_duration" mapstructure:"total_duration" yaml:"total_duration"`
}

// Validate checks the calibrated points lie in normalized space. Unset values
// are allowed; they are filled in by extraction.
func (c Calibration) Validate() error {
	for name, p := range map[string]schemas.Point{
		"play_pause":         c.PlayPause,
		"forward":            c.Forward,
		"backward":           c.Backward,
		"progress_bar.start": c.ProgressBar.Start,
		"progress_bar.end":   c.ProgressBar.End,
	} {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("calibration.%s: %w", name, err)
		}
	}
	if c.TotalDuration < 0 {
		return fmt.Errorf("calibration.total_duration must not be negative")
	}
	return nil
}

// Missing lists the extraction fields needed to complete the calibration.
func (c Calibration) Missing() []schemas.ExtractionField {
	var fields []schemas.ExtractionField
	if c.TotalDuration <= 0 {
		fields = append(fields, schemas.FieldTotalDuration)
	}
	if c.ProgressBar.IsZero() {
		fields = append(fields, schemas.FieldProgressBarBounds)
	}
	if c.PlayPause.IsZero() {
		fields = append(fields, schemas.FieldPlayPauseButton)
	}
	if c.Forward.IsZero() {
		fields = append(fields, schemas.FieldForwardButton)
	}
	if c.Backward.IsZero() {
		fields = append(fields, schemas.FieldBackwardButton)
	}
	return fields
}

// Refine returns a copy with every value the extraction reported.
func (c Calibration) Refine(e schemas.Extraction) Calibration {
	if e.TotalDuration != nil && *e.TotalDuration > 0 {
		c.TotalDuration = *e.TotalDuration
	}
	if e.ProgressBar != nil && !e.ProgressBar.IsZero() && e.ProgressBar.Length() > 0 {
		c.ProgressBar = *e.ProgressBar
	}
	if e.PlayPause != nil && !e.PlayPause.IsZero() {
		c.PlayPause = *e.PlayPause
	}
	if e.Forward != nil && !e.Forward.IsZero() {
		c.Forward = *e.Forward
	}
	if e.Backward != nil && !e.Backward.IsZero() {
		c.Backward = *e.Backward
	}
	return c
}

// Observation is the current belief about the player. It is a value: every
// oracle round produces a new one, it is never mutated in place.
type Observation struct {
	PauseIcon          schemas.Verdict
	PlayIcon           schemas.Verdict
	ProgressBarVisible bool
	Timestamp          time.Duration
	TimestampKnown     bool
	Interactivity      schemas.InteractivityState
	ObservedAt         time.Time
}

// Resolved reports whether exactly one of the two icons is definitely visible.
func (o Observation) Resolved() bool {
	return o.Interactivity != schemas.NonInteractive && o.Interactivity != ""
}

// ObservationUpdate carries one oracle round. Nil fields were not reported and
// keep their previous value.
type ObservationUpdate struct {
	PauseIcon          *schemas.Verdict
	PlayIcon           *schemas.Verdict
	ProgressBarVisible *bool
	Timestamp          *time.Duration
}

// UpdateFromVerdicts builds an update from a classification round. Predicates
// missing from the map are left unreported.
func UpdateFromVerdicts(verdicts map[schemas.Predicate]schemas.Verdict) ObservationUpdate {
	var u ObservationUpdate
	if v, ok := verdicts[schemas.PredicatePauseIconVisible]; ok {
		u.PauseIcon = &v
	}
	if v, ok := verdicts[schemas.PredicatePlayIconVisible]; ok {
		u.PlayIcon = &v
	}
	if v, ok := verdicts[schemas.PredicateProgressBarVisible]; ok && v != schemas.VerdictUnknown {
		b := v.IsTrue()
		u.ProgressBarVisible = &b
	}
	return u
}

// UpdateFromExtraction builds an update from an extraction round.
func UpdateFromExtraction(e schemas.Extraction) ObservationUpdate {
	var u ObservationUpdate
	if e.CurrentTimestamp != nil {
		ts := timecode.Seconds(*e.CurrentTimestamp)
		u.Timestamp = &ts
	}
	u.ProgressBarVisible = e.ProgressBarVisible
	return u
}

// With returns a new observation with the reported fields replaced.
func (o Observation) With(u ObservationUpdate, at time.Time) Observation {
	next := o
	if u.PauseIcon != nil {
		next.PauseIcon = *u.PauseIcon
	}
	if u.PlayIcon != nil {
		next.PlayIcon = *u.PlayIcon
	}
	if u.ProgressBarVisible != nil {
		next.ProgressBarVisible = *u.ProgressBarVisible
	}
	if u.Timestamp != nil {
		next.Timestamp = *u.Timestamp
		next.TimestampKnown = true
	}
	next.Interactivity = schemas.ClassifyInteractivity(next.PauseIcon, next.PlayIcon)
	next.ObservedAt = at
	return next
}

// canonical is the belief recorded once a target state has been reached.
func canonical(prev Observation, target schemas.InteractivityState, at time.Time) Observation {
	next := prev
	switch target {
	case schemas.PausedInteractive:
		next.PauseIcon, next.PlayIcon = schemas.VerdictFalse, schemas.VerdictTrue
		next.ProgressBarVisible = true
	case schemas.PlayingInteractive:
		next.PauseIcon, next.PlayIcon = schemas.VerdictTrue, schemas.VerdictFalse
		// The overlay hides itself shortly after playback resumes.
		next.ProgressBarVisible = false
		next.TimestampKnown = false
	}
	next.Interactivity = target
	next.ObservedAt = at
	return next
}

// Model is the player's calibration plus the current observation. It is safe
// for concurrent use; readers always see a complete value.
type Model struct {
	mu          sync.RWMutex
	calibration Calibration
	observation Observation
	now         func() time.Time
}

// NewModel creates a model from an initial calibration. The observation
// starts fully unknown.
func NewModel(cal Calibration) *Model {
	return &Model{
		calibration: cal,
		observation: Observation{Interactivity: schemas.NonInteractive},
		now:         time.Now,
	}
}

func (m *Model) Calibration() Calibration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calibration
}

func (m *Model) Observation() Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.observation
}

// Apply replaces the observation with one built from u and returns it.
func (m *Model) Apply(u ObservationUpdate) Observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observation = m.observation.With(u, m.now())
	return m.observation
}

// Refine merges an extraction into the calibration and returns the result.
func (m *Model) Refine(e schemas.Extraction) Calibration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calibration = m.calibration.Refine(e)
	return m.calibration
}

// SetBelief records the canonical observation for a reached target state.
func (m *Model) SetBelief(target schemas.InteractivityState) Observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observation = canonical(m.observation, target, m.now())
	return m.observation
}

// String renders the model for the planning oracle.
func (m *Model) String() string {
	m.mu.RLock()
	cal, obs := m.calibration, m.observation
	m.mu.RUnlock()

	var b strings.Builder
	b.WriteString("VideoPlayer(")
	fmt.Fprintf(&b, "state=%s", obs.Interactivity)
	fmt.Fprintf(&b, ", pause_icon_visible=%s", obs.PauseIcon)
	fmt.Fprintf(&b, ", play_icon_visible=%s", obs.PlayIcon)
	fmt.Fprintf(&b, ", progress_bar_visible=%t", obs.ProgressBarVisible)
	if obs.TimestampKnown {
		fmt.Fprintf(&b, ", current_timestamp=%s", timecode.Format(obs.Timestamp))
	} else {
		b.WriteString(", current_timestamp=unknown")
	}
	if cal.TotalDuration > 0 {
		fmt.Fprintf(&b, ", total_duration=%s", timecode.Format(cal.TotalDuration))
	}
	if !cal.PlayPause.IsZero() {
		fmt.Fprintf(&b, ", play_pause=%s", cal.PlayPause)
	}
	if !cal.ProgressBar.IsZero() {
		fmt.Fprintf(&b, ", progress_bar=%s-%s", cal.ProgressBar.Start, cal.ProgressBar.End)
	}
	b.WriteString(")")
	return b.String()
}
