package schemas

import (
	"fmt"
	"time"
)

// -- Observation Schemas --

// Verdict is a tri-state answer from a vision oracle. Unknown is distinct from
// False: an oracle that could not decide must not be read as "not visible".
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictFalse
	VerdictTrue
)

// VerdictOf converts a definite boolean into a Verdict.
func VerdictOf(b bool) Verdict {
	if b {
		return VerdictTrue
	}
	return VerdictFalse
}

// IsTrue reports whether the verdict is a definite yes.
func (v Verdict) IsTrue() bool { return v == VerdictTrue }

func (v Verdict) String() string {
	switch v {
	case VerdictTrue:
		return "true"
	case VerdictFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Predicate names a UI-observable boolean the vision oracle can classify.
type Predicate string

const (
	PredicatePauseIconVisible   Predicate = "PAUSE_ICON_VISIBLE"
	PredicatePlayIconVisible    Predicate = "PLAY_ICON_VISIBLE"
	PredicateProgressBarVisible Predicate = "PROGRESS_BAR_VISIBLE"
)

// InteractivityBatch is the predicate set queried to decide the interactivity state.
var InteractivityBatch = []Predicate{PredicatePauseIconVisible, PredicatePlayIconVisible}

// InteractivityState is the coarse state of the player as seen through its overlay.
type InteractivityState string

const (
	// PausedInteractive: overlay visible, play icon shown.
	PausedInteractive InteractivityState = "PAUSED_INTERACTIVE"
	// PlayingInteractive: overlay visible, pause icon shown.
	PlayingInteractive InteractivityState = "PLAYING_INTERACTIVE"
	// NonInteractive covers a hidden overlay and any contradictory icon reading.
	NonInteractive InteractivityState = "NON_INTERACTIVE"
)

// ClassifyInteractivity derives the interactivity state from the two icon
// verdicts. Anything other than exactly one definite icon is NonInteractive.
func ClassifyInteractivity(pauseIcon, playIcon Verdict) InteractivityState {
	switch {
	case playIcon.IsTrue() && pauseIcon == VerdictFalse:
		return PausedInteractive
	case pauseIcon.IsTrue() && playIcon == VerdictFalse:
		return PlayingInteractive
	default:
		return NonInteractive
	}
}

// ExtractionField names a value the vision oracle can read off a screenshot.
type ExtractionField string

const (
	FieldCurrentTimestamp   ExtractionField = "current_video_timestamp"
	FieldTotalDuration      ExtractionField = "total_video_duration"
	FieldProgressBarBounds  ExtractionField = "video_progress_bar_bbox_coordinates"
	FieldProgressBarVisible ExtractionField = "is_video_progress_bar_visible"
	FieldPlayPauseButton    ExtractionField = "pause_or_play_button_coordinates"
	FieldForwardButton      ExtractionField = "forward_button_coordinates"
	FieldBackwardButton     ExtractionField = "backward_button_coordinates"
)

// Extraction is a partial record read from a screenshot. A nil field means the
// oracle did not report it this round, which is not the same as false or zero.
type Extraction struct {
	CurrentTimestamp   *time.Duration `json:"current_timestamp,omitempty"`
	TotalDuration      *time.Duration `json:"total_duration,omitempty"`
	ProgressBar        *Span          `json:"progress_bar,omitempty"`
	ProgressBarVisible *bool          `json:"progress_bar_visible,omitempty"`
	PlayPause          *Point         `json:"play_pause,omitempty"`
	Forward            *Point         `json:"forward,omitempty"`
	Backward           *Point         `json:"backward,omitempty"`
}

// Screenshot is one captured frame of the device screen.
type Screenshot struct {
	Data       []byte     `json:"-"`
	MIMEType   string     `json:"mime_type"`
	Resolution Resolution `json:"resolution"`
	CapturedAt time.Time  `json:"captured_at"`
	// Path is set when the frame was also persisted to disk.
	Path string `json:"path,omitempty"`
}

// KeyEvent is a hardware or soft key understood by the actuation layer.
type KeyEvent string

const (
	KeyBack      KeyEvent = "BACK"
	KeyHome      KeyEvent = "HOME"
	KeyPlayPause KeyEvent = "MEDIA_PLAY_PAUSE"
	KeySpace     KeyEvent = "SPACE"
)

// -- Directive Schemas --

// DirectiveKind enumerates what the planning oracle can ask for.
type DirectiveKind string

const (
	DirectivePlay       DirectiveKind = "play"
	DirectivePause      DirectiveKind = "pause"
	DirectiveSeek       DirectiveKind = "seek"
	DirectiveFinished   DirectiveKind = "finished"
	DirectiveUnresolved DirectiveKind = "unresolved"
)

// Directive is one parsed planner decision. Target is meaningful only for seek.
type Directive struct {
	Kind   DirectiveKind `json:"kind"`
	Target time.Duration `json:"target,omitempty"`
	// Thought carries the planner's stated reasoning, for the log only.
	Thought string `json:"thought,omitempty"`
}

func (d Directive) String() string {
	if d.Kind == DirectiveSeek {
		return fmt.Sprintf("seek(%s)", d.Target)
	}
	return string(d.Kind)
}

// PlanningContext is everything the planning oracle sees when choosing the next directive.
type PlanningContext struct {
	Instruction string   `json:"instruction"`
	ActionLog   []string `json:"action_log"`
	PlayerState string   `json:"player_state"`
	Iteration   int      `json:"iteration"`
}

// -- Result Schemas --

// ErrorInfo is the serializable form of an operation failure.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// OperationResult is reported for every directive the system executes.
type OperationResult struct {
	Converged bool       `json:"converged"`
	Error     *ErrorInfo `json:"error,omitempty"`
}

// ResultFromError builds an OperationResult. A nil error means converged.
func ResultFromError(err error) OperationResult {
	if err == nil {
		return OperationResult{Converged: true}
	}
	return OperationResult{Error: &ErrorInfo{Kind: KindOf(err), Message: err.Error()}}
}
