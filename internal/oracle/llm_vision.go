package oracle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/llmutil"
	"github.com/xkilldash9x/vidpilot/internal/timecode"
)

const visionSystemPrompt = `You are looking at a screenshot of a mobile video player.
Answer strictly about what is drawn on the screen. Do not guess about controls that are hidden.
Coordinates are normalized: x and y both run from 0 (left/top) to 1000 (right/bottom).`

var predicateQuestions = map[schemas.Predicate]string{
	schemas.PredicatePauseIconVisible:   "Is the pause button (two vertical bars) visible on the screen?",
	schemas.PredicatePlayIconVisible:    "Is the play button (a right-pointing triangle) visible on the screen?",
	schemas.PredicateProgressBarVisible: "Is the video progress bar visible on the screen?",
}

var fieldDescriptions = map[schemas.ExtractionField]string{
	schemas.FieldCurrentTimestamp:   `the elapsed time shown by the player, as "HH:MM:SS" or "MM:SS"`,
	schemas.FieldTotalDuration:      `the total length of the video shown by the player, as "HH:MM:SS" or "MM:SS"`,
	schemas.FieldProgressBarBounds:  `the progress bar bounding box as [x1, y1, x2, y2]`,
	schemas.FieldProgressBarVisible: `true if the progress bar is drawn, otherwise false`,
	schemas.FieldPlayPauseButton:    `the center of the play or pause button as [x, y]`,
	schemas.FieldForwardButton:      `the center of the skip-forward button as [x, y]`,
	schemas.FieldBackwardButton:     `the center of the skip-backward button as [x, y]`,
}

// LLMVision is a VisionOracle backed by a multimodal language model. Each
// predicate is asked as its own yes/no question on the fast tier; extraction
// uses the powerful tier with a JSON response.
type LLMVision struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

// NewLLMVision creates a vision oracle over llm.
func NewLLMVision(llm schemas.LLMClient, logger *zap.Logger) *LLMVision {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMVision{llm: llm, logger: logger.Named("vision")}
}

// Classify asks one question per predicate. An "unsure" reply becomes
// VerdictUnknown; a reply that cannot be read at all is an error so the
// caller can retry it.
func (v *LLMVision) Classify(ctx context.Context, shot schemas.Screenshot, predicates []schemas.Predicate) (map[schemas.Predicate]schemas.Verdict, error) {
	out := make(map[schemas.Predicate]schemas.Verdict, len(predicates))
	for _, pred := range predicates {
		question, ok := predicateQuestions[pred]
		if !ok {
			return nil, schemas.NewError(schemas.KindParse, "classify", "no question for predicate %q", pred)
		}
		reply, err := v.llm.Generate(ctx, schemas.GenerationRequest{
			SystemPrompt: visionSystemPrompt,
			UserPrompt:   question + " Reply with exactly one word: yes, no, or unsure.",
			Images:       imagesOf(shot),
			Tier:         schemas.TierFast,
			Options:      schemas.GenerationOptions{SingleAttempt: true},
		})
		if err != nil {
			return nil, schemas.WrapError(schemas.KindOracle, "classify", err)
		}

		switch llmutil.ParseYesNo(reply) {
		case llmutil.AnswerYes:
			out[pred] = schemas.VerdictTrue
		case llmutil.AnswerNo:
			out[pred] = schemas.VerdictFalse
		case llmutil.AnswerUnsure:
			out[pred] = schemas.VerdictUnknown
		default:
			v.logger.Debug("Unrecognized classification reply", zap.String("predicate", string(pred)), zap.String("reply", reply))
			return nil, schemas.NewError(schemas.KindOracle, "classify", "unrecognized reply for %s: %q", pred, reply)
		}
	}
	return out, nil
}

// extractionDoc is the JSON shape the model is asked to produce. Every key is
// optional; null and absent both mean "not reported".
type extractionDoc struct {
	CurrentTimestamp   *string   `json:"current_video_timestamp"`
	TotalDuration      *string   `json:"total_video_duration"`
	ProgressBarBounds  []float64 `json:"video_progress_bar_bbox_coordinates"`
	ProgressBarVisible *bool     `json:"is_video_progress_bar_visible"`
	PlayPause          []float64 `json:"pause_or_play_button_coordinates"`
	Forward            []float64 `json:"forward_button_coordinates"`
	Backward           []float64 `json:"backward_button_coordinates"`
}

// Extract asks for all requested fields in a single JSON reply.
func (v *LLMVision) Extract(ctx context.Context, shot schemas.Screenshot, fields []schemas.ExtractionField) (schemas.Extraction, error) {
	if len(fields) == 0 {
		return schemas.Extraction{}, nil
	}
	reply, err := v.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: visionSystemPrompt,
		UserPrompt:   extractionPrompt(fields),
		Images:       imagesOf(shot),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true, SingleAttempt: true},
	})
	if err != nil {
		return schemas.Extraction{}, schemas.WrapError(schemas.KindOracle, "extract", err)
	}

	doc, err := llmutil.ParseJSONResponse[extractionDoc](reply)
	if err != nil {
		return schemas.Extraction{}, schemas.WrapError(schemas.KindOracle, "extract", err)
	}
	return doc.toExtraction(fields)
}

func extractionPrompt(fields []schemas.ExtractionField) string {
	var b strings.Builder
	b.WriteString("Read the following values from the screenshot and reply with a single JSON object using exactly these keys.\n")
	b.WriteString("Use null for any value that is not visible.\n\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- %q: %s\n", string(f), fieldDescriptions[f])
	}
	return b.String()
}

func (d *extractionDoc) toExtraction(fields []schemas.ExtractionField) (schemas.Extraction, error) {
	var ext schemas.Extraction
	for _, f := range fields {
		switch f {
		case schemas.FieldCurrentTimestamp:
			if d.CurrentTimestamp != nil {
				ts, err := timecode.Parse(*d.CurrentTimestamp)
				if err != nil {
					return schemas.Extraction{}, err
				}
				ext.CurrentTimestamp = &ts
			}
		case schemas.FieldTotalDuration:
			if d.TotalDuration != nil {
				ts, err := timecode.Parse(*d.TotalDuration)
				if err != nil {
					return schemas.Extraction{}, err
				}
				ext.TotalDuration = &ts
			}
		case schemas.FieldProgressBarBounds:
			if len(d.ProgressBarBounds) > 0 {
				span, err := spanOf(d.ProgressBarBounds)
				if err != nil {
					return schemas.Extraction{}, err
				}
				ext.ProgressBar = &span
			}
		case schemas.FieldProgressBarVisible:
			ext.ProgressBarVisible = d.ProgressBarVisible
		case schemas.FieldPlayPauseButton:
			p, err := pointOf(f, d.PlayPause)
			if err != nil {
				return schemas.Extraction{}, err
			}
			ext.PlayPause = p
		case schemas.FieldForwardButton:
			p, err := pointOf(f, d.Forward)
			if err != nil {
				return schemas.Extraction{}, err
			}
			ext.Forward = p
		case schemas.FieldBackwardButton:
			p, err := pointOf(f, d.Backward)
			if err != nil {
				return schemas.Extraction{}, err
			}
			ext.Backward = p
		}
	}
	return ext, nil
}

// spanOf reads a [x1, y1, x2, y2] box as the bar's left and right ends on its midline.
func spanOf(box []float64) (schemas.Span, error) {
	if len(box) != 4 {
		return schemas.Span{}, schemas.NewError(schemas.KindParse, "extract", "progress bar box has %d values, want 4", len(box))
	}
	x1, x2 := box[0], box[2]
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	y := (box[1] + box[3]) / 2
	span := schemas.Span{
		Start: schemas.Point{X: x1, Y: y}.Clamp(),
		End:   schemas.Point{X: x2, Y: y}.Clamp(),
	}
	return span, nil
}

func pointOf(f schemas.ExtractionField, xy []float64) (*schemas.Point, error) {
	if len(xy) == 0 {
		return nil, nil
	}
	if len(xy) != 2 {
		return nil, schemas.NewError(schemas.KindParse, "extract", "%s has %d values, want 2", f, len(xy))
	}
	p := schemas.Point{X: xy[0], Y: xy[1]}.Clamp()
	return &p, nil
}

func imagesOf(shot schemas.Screenshot) []schemas.ImagePart {
	if len(shot.Data) == 0 {
		return nil
	}
	return []schemas.ImagePart{{MIMEType: shot.MIMEType, Data: shot.Data}}
}
