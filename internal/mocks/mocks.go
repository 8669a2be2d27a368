// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
	"github.com/xkilldash9x/vidpilot/internal/service"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Device() config.DeviceConfig {
	args := m.Called()
	return args.Get(0).(config.DeviceConfig)
}

func (m *MockConfig) Oracle() config.OracleConfig {
	args := m.Called()
	return args.Get(0).(config.OracleConfig)
}

func (m *MockConfig) Player() config.PlayerConfig {
	args := m.Called()
	return args.Get(0).(config.PlayerConfig)
}

func (m *MockConfig) Orchestrator() config.OrchestratorConfig {
	args := m.Called()
	return args.Get(0).(config.OrchestratorConfig)
}

func (m *MockConfig) Agent() config.AgentConfig {
	args := m.Called()
	return args.Get(0).(config.AgentConfig)
}

func (m *MockConfig) Journal() config.JournalConfig {
	args := m.Called()
	return args.Get(0).(config.JournalConfig)
}

// --- Setters ---

func (m *MockConfig) SetDeviceBackend(backend string) {
	m.Called(backend)
}

func (m *MockConfig) SetOrchestratorMaxIterations(n int) {
	m.Called(n)
}

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Planning Oracle Mock --

// MockPlanningOracle mocks the schemas.PlanningOracle interface.
type MockPlanningOracle struct {
	mock.Mock
}

func (m *MockPlanningOracle) NextDirective(ctx context.Context, pctx schemas.PlanningContext) (schemas.Directive, error) {
	args := m.Called(ctx, pctx)
	return args.Get(0).(schemas.Directive), args.Error(1)
}

// -- Component Factory Mock --

// MockComponentFactory mocks the service.ComponentFactory interface.
type MockComponentFactory struct {
	mock.Mock
}

func (m *MockComponentFactory) Create(ctx context.Context, cfg config.Interface, opts service.Options, logger *zap.Logger) (*service.Components, error) {
	args := m.Called(ctx, cfg, opts, logger)
	if c := args.Get(0); c != nil {
		return c.(*service.Components), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	_ config.Interface         = (*MockConfig)(nil)
	_ schemas.LLMClient        = (*MockLLMClient)(nil)
	_ schemas.PlanningOracle   = (*MockPlanningOracle)(nil)
	_ service.ComponentFactory = (*MockComponentFactory)(nil)
)
