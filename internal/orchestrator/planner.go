package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

const plannerSystemPrompt = `You control a video player on a phone screen for a user.
You are given the user's instruction, the actions already taken and the current state of the player.
Choose the single next action. Available actions:
  - "play": make sure the video is playing.
  - "pause": make sure the video is paused.
  - "seek": move the playhead to "timestamp" (HH:MM:SS, MM:SS or seconds). The player is left paused.
  - "finished": the instruction is complete, or cannot be completed with these actions.
  - "unresolved": you cannot decide yet.
Do not repeat an action that already converged unless the state shows it was undone.
Respond with a single JSON object: {"thought": "<one sentence>", "action": "<action>", "timestamp": "<only for seek>"}.`

// LLMPlanner is a PlanningOracle backed by a language model.
type LLMPlanner struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

// NewLLMPlanner builds a planner over llm.
func NewLLMPlanner(llm schemas.LLMClient, logger *zap.Logger) *LLMPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMPlanner{llm: llm, logger: logger.Named("planner")}
}

// NextDirective asks the model for one directive and parses it. An unusable
// reply is a ParseError and is not retried here.
func (p *LLMPlanner) NextDirective(ctx context.Context, pctx schemas.PlanningContext) (schemas.Directive, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: plannerSystemPrompt,
		UserPrompt:   plannerUserPrompt(pctx),
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0,
			ForceJSONFormat: true,
		},
	}
	reply, err := p.llm.Generate(ctx, req)
	if err != nil {
		return schemas.Directive{}, schemas.WrapError(schemas.KindOracle, "plan", err)
	}

	d, err := ParseDirective(reply)
	if err != nil {
		p.logger.Warn("Planner reply could not be parsed", zap.String("reply", reply), zap.Error(err))
		return schemas.Directive{}, err
	}
	p.logger.Debug("Planner chose directive",
		zap.Int("iteration", pctx.Iteration),
		zap.Stringer("directive", d),
		zap.String("thought", d.Thought))
	return d, nil
}

func plannerUserPrompt(pctx schemas.PlanningContext) string {
	actions := "(none)"
	if len(pctx.ActionLog) > 0 {
		actions = strings.Join(pctx.ActionLog, "\n")
	}
	return fmt.Sprintf(`Instruction: %s

Actions taken so far:
%s

Current player state:
%s

Determine the next action. Respond with a single JSON object.`, pctx.Instruction, actions, pctx.PlayerState)
}
