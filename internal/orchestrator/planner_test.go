package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

func TestLLMPlanner_NextDirective(t *testing.T) {
	llm := new(MockLLMClient)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierPowerful &&
			req.Options.ForceJSONFormat &&
			strings.Contains(req.UserPrompt, "Instruction: pause at 1:35") &&
			strings.Contains(req.UserPrompt, "1. play -> converged") &&
			strings.Contains(req.UserPrompt, "VideoPlayer(state=PLAYING_INTERACTIVE)")
	})).Return(`{"thought": "move to 1:35", "action": "seek", "timestamp": "00:01:35"}`, nil).Once()

	p := NewLLMPlanner(llm, zaptest.NewLogger(t))
	d, err := p.NextDirective(context.Background(), schemas.PlanningContext{
		Instruction: "pause at 1:35",
		ActionLog:   []string{"1. play -> converged"},
		PlayerState: "VideoPlayer(state=PLAYING_INTERACTIVE)",
		Iteration:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, schemas.Directive{Kind: schemas.DirectiveSeek, Target: 95 * time.Second, Thought: "move to 1:35"}, d)
	llm.AssertExpectations(t)
}

func TestLLMPlanner_EmptyLogIsExplicit(t *testing.T) {
	llm := new(MockLLMClient)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return strings.Contains(req.UserPrompt, "(none)")
	})).Return(`{"action": "play"}`, nil).Once()

	_, err := NewLLMPlanner(llm, nil).NextDirective(context.Background(), schemas.PlanningContext{Instruction: "play"})
	require.NoError(t, err)
	llm.AssertExpectations(t)
}

func TestLLMPlanner_UnparseableReplyIsAParseError(t *testing.T) {
	llm := new(MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return("Sure! Let me press play for you.", nil).Once()

	_, err := NewLLMPlanner(llm, zaptest.NewLogger(t)).NextDirective(context.Background(), schemas.PlanningContext{})
	assert.ErrorIs(t, err, schemas.ErrParse)
	llm.AssertNumberOfCalls(t, "Generate", 1)
}

func TestLLMPlanner_GenerateFailureIsAnOracleError(t *testing.T) {
	llm := new(MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("503 unavailable")).Once()

	_, err := NewLLMPlanner(llm, zaptest.NewLogger(t)).NextDirective(context.Background(), schemas.PlanningContext{})
	assert.ErrorIs(t, err, schemas.ErrOracle)
	assert.NotErrorIs(t, err, schemas.ErrParse)
}
