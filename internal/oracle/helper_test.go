package oracle

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/retry"
)

// MockScreenshotSource is a mock implementation of schemas.ScreenshotSource.
type MockScreenshotSource struct {
	mock.Mock
}

func (m *MockScreenshotSource) Capture(ctx context.Context) (schemas.Screenshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.Screenshot), args.Error(1)
}

// MockVisionOracle is a mock implementation of schemas.VisionOracle.
type MockVisionOracle struct {
	mock.Mock
}

func (m *MockVisionOracle) Classify(ctx context.Context, shot schemas.Screenshot, predicates []schemas.Predicate) (map[schemas.Predicate]schemas.Verdict, error) {
	args := m.Called(ctx, shot, predicates)
	if v := args.Get(0); v != nil {
		return v.(map[schemas.Predicate]schemas.Verdict), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVisionOracle) Extract(ctx context.Context, shot schemas.Screenshot, fields []schemas.ExtractionField) (schemas.Extraction, error) {
	args := m.Called(ctx, shot, fields)
	return args.Get(0).(schemas.Extraction), args.Error(1)
}

// MockLLMClient is a mock implementation of schemas.LLMClient.
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

func testShot() schemas.Screenshot {
	return schemas.Screenshot{Data: []byte("frame"), MIMEType: "image/png", CapturedAt: time.Unix(0, 0)}
}

func testConfig() Config {
	fast := retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond}
	return Config{Retry: fast, CaptureRetry: fast}
}

func preds(p ...schemas.Predicate) []schemas.Predicate { return p }
