package schemas

import (
	"context"
	"time"
)

// -- Device Interfaces --

// ActuationPort issues input primitives to the device. All coordinates are in
// normalized space; implementations convert to device pixels.
type ActuationPort interface {
	// Tap performs a single short touch at p.
	Tap(ctx context.Context, p Point) error
	// Swipe drags from one point to another over d. A swipe whose endpoints are
	// equal is a timed press.
	Swipe(ctx context.Context, from, to Point, d time.Duration) error
	// Key sends a key event.
	Key(ctx context.Context, key KeyEvent) error
}

// ScreenshotSource captures the current screen.
type ScreenshotSource interface {
	Capture(ctx context.Context) (Screenshot, error)
}

// -- Oracle Interfaces --

// VisionOracle answers questions about a screenshot. It may be wrong, and it
// may decline to answer (VerdictUnknown or a nil Extraction field).
type VisionOracle interface {
	Classify(ctx context.Context, shot Screenshot, predicates []Predicate) (map[Predicate]Verdict, error)
	Extract(ctx context.Context, shot Screenshot, fields []ExtractionField) (Extraction, error)
}

// PlanningOracle chooses the next directive for a natural-language instruction.
type PlanningOracle interface {
	NextDirective(ctx context.Context, pctx PlanningContext) (Directive, error)
}

// -- LLM Interfaces --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Yes/no classification questions.
	TierPowerful ModelTier = "powerful" // Extraction and planning.
)

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
	// SingleAttempt disables the client's own retries. Set it when the caller
	// already retries under its own deadline.
	SingleAttempt bool `json:"single_attempt"`
}

// ImagePart is an inline image attached to a generation request.
type ImagePart struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts, any attached images, the desired model tier, and
// generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Images       []ImagePart       `json:"images,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}
