package orchestrator

import (
	"testing"
	"time"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  schemas.Directive
	}{
		{"play", `{"action": "play", "thought": "user wants playback"}`,
			schemas.Directive{Kind: schemas.DirectivePlay, Thought: "user wants playback"}},
		{"legacy spelling", `{"action": "Pause_Video"}`, schemas.Directive{Kind: schemas.DirectivePause}},
		{"call syntax", `{"action": "finished()"}`, schemas.Directive{Kind: schemas.DirectiveFinished}},
		{"seek hh:mm:ss", `{"action": "seek", "timestamp": "01:10:00"}`,
			schemas.Directive{Kind: schemas.DirectiveSeek, Target: 4200 * time.Second}},
		{"seek mm:ss in a fence", "```json\n{\"action\": \"seek\", \"timestamp\": \"02:05\"}\n```",
			schemas.Directive{Kind: schemas.DirectiveSeek, Target: 125 * time.Second}},
		{"seek seconds", `{"action": "seek", "timestamp": "90"}`,
			schemas.Directive{Kind: schemas.DirectiveSeek, Target: 90 * time.Second}},
		{"timestamp ignored off seek", `{"action": "play", "timestamp": "garbage"}`,
			schemas.Directive{Kind: schemas.DirectivePlay}},
		{"unresolved", `{"action": "unresolved"}`, schemas.Directive{Kind: schemas.DirectiveUnresolved}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDirective(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirective_FailsFast(t *testing.T) {
	for _, reply := range []string{
		"I think you should press play.",
		`{"action": "rewind"}`,
		`{"action": ""}`,
		`{"action": "seek"}`,
		`{"action": "seek", "timestamp": "1:2:3:4"}`,
		`{"action": "seek", "timestamp": "soon"}`,
	} {
		_, err := ParseDirective(reply)
		assert.ErrorIs(t, err, schemas.ErrParse, reply)
	}
}

// FuzzParseDirective checks that arbitrary planner replies never panic and
// are either a known directive or a ParseError.
func FuzzParseDirective(f *testing.F) {
	for _, seed := range []string{`{"action":"seek","timestamp":"02:05"}`, `{"action":"play"}`, "not json"} {
		f.Add([]byte(seed))
	}
	known := map[schemas.DirectiveKind]bool{}
	for _, k := range actionAliases {
		known[k] = true
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		var reply plannerReply
		if err := consumer.GenerateStruct(&reply); err != nil {
			return
		}
		raw, err := json.Marshal(reply)
		if err != nil {
			return
		}
		for _, input := range []string{string(raw), string(data)} {
			d, err := ParseDirective(input)
			if err != nil {
				if !assert.ErrorIs(t, err, schemas.ErrParse) {
					t.Fatalf("non-parse error for %q: %v", input, err)
				}
				continue
			}
			if !known[d.Kind] {
				t.Fatalf("unknown kind %q from %q", d.Kind, input)
			}
			if d.Target < 0 {
				t.Fatalf("negative target from %q", input)
			}
		}
	})
}
