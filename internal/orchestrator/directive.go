package orchestrator

import (
	"strings"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/llmutil"
	"github.com/xkilldash9x/vidpilot/internal/timecode"
)

// plannerReply is the JSON object the planner model answers with.
type plannerReply struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Thought   string `json:"thought"`
}

// actionAliases maps accepted spellings onto directive kinds.
var actionAliases = map[string]schemas.DirectiveKind{
	"play":        schemas.DirectivePlay,
	"play_video":  schemas.DirectivePlay,
	"resume":      schemas.DirectivePlay,
	"pause":       schemas.DirectivePause,
	"pause_video": schemas.DirectivePause,
	"seek":        schemas.DirectiveSeek,
	"seek_video":  schemas.DirectiveSeek,
	"finished":    schemas.DirectiveFinished,
	"done":        schemas.DirectiveFinished,
	"unresolved":  schemas.DirectiveUnresolved,
}

// ParseDirective turns a planner reply into a Directive. Anything that is not
// a JSON object naming a known action, or a seek without a readable
// timestamp, is a ParseError.
func ParseDirective(reply string) (schemas.Directive, error) {
	parsed, err := llmutil.ParseJSONResponse[plannerReply](reply)
	if err != nil {
		return schemas.Directive{}, schemas.WrapError(schemas.KindParse, "parse_directive", err)
	}

	action := strings.ToLower(strings.TrimSpace(parsed.Action))
	action = strings.TrimSuffix(action, "()")
	kind, ok := actionAliases[action]
	if !ok {
		return schemas.Directive{}, schemas.NewError(schemas.KindParse, "parse_directive", "unrecognized action %q", parsed.Action)
	}

	d := schemas.Directive{Kind: kind, Thought: strings.TrimSpace(parsed.Thought)}
	if kind == schemas.DirectiveSeek {
		if strings.TrimSpace(parsed.Timestamp) == "" {
			return schemas.Directive{}, schemas.NewError(schemas.KindParse, "parse_directive", "seek without a timestamp")
		}
		target, err := timecode.Parse(parsed.Timestamp)
		if err != nil {
			return schemas.Directive{}, schemas.WrapError(schemas.KindParse, "parse_directive", err)
		}
		d.Target = target
	}
	return d, nil
}
