// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
)

const (
	defaultMaxRetries   = 2
	defaultRetryBackoff = 2 * time.Second
)

// generateFunc matches genai's Models.GenerateContent so tests can stand in for the API.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GoogleClient implements the schemas.LLMClient interface for Google Gemini models.
type GoogleClient struct {
	client         *genai.Client
	generate       generateFunc
	logger         *zap.Logger
	config         config.LLMModelConfig
	backoffFactory func() backoff.BackOff
}

// NewGoogleClient initializes the SDK client. No request is made until Generate.
func NewGoogleClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GoogleClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Google/Gemini API Key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions.BaseURL = cfg.Endpoint
	}
	if cfg.APITimeout > 0 {
		timeout := cfg.APITimeout
		cc.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := newGoogleClient(cfg, logger, client.Models.GenerateContent)
	c.client = client
	return c, nil
}

func newGoogleClient(cfg config.LLMModelConfig, logger *zap.Logger, generate generateFunc) *GoogleClient {
	return &GoogleClient{
		generate: generate,
		config:   cfg,
		logger:   logger.Named("llm_client.gemini"),
		backoffFactory: func() backoff.BackOff {
			return retryPolicy(cfg)
		},
	}
}

// retryPolicy is a constant backoff with a hard cap on attempts, so one
// Generate never outlives a few retry intervals.
func retryPolicy(cfg config.LLMModelConfig) backoff.BackOff {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	interval := cfg.RetryBackoff
	if interval <= 0 {
		interval = defaultRetryBackoff
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(retries))
}

// Generate sends the prompts and any images to the model and returns the text
// of the first candidate, retrying transient failures unless the request asks
// for a single attempt.
func (c *GoogleClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	contents, genConfig := c.buildRequest(req)

	var responseContent string
	operation := func() error {
		startTime := time.Now()
		resp, err := c.generate(ctx, c.config.Model, contents, genConfig)
		duration := time.Since(startTime)
		if err != nil {
			return c.classifyError(err)
		}

		if resp == nil || len(resp.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		candidate := resp.Candidates[0]
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == genai.FinishReasonSafety || candidate.FinishReason == genai.FinishReasonBlocklist {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
		}

		fields := []zap.Field{zap.String("model", c.config.Model), zap.Duration("duration", duration)}
		if u := resp.UsageMetadata; u != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", u.PromptTokenCount),
				zap.Int32("completion_tokens", u.CandidatesTokenCount),
				zap.Int32("total_tokens", u.TotalTokenCount))
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)

		responseContent = resp.Text()
		return nil
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if !req.Options.SingleAttempt {
		policy = c.backoffFactory()
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

// Close releases client resources. The SDK holds none beyond its HTTP client.
func (c *GoogleClient) Close() error {
	return nil
}

func (c *GoogleClient) buildRequest(req schemas.GenerationRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.UserPrompt))

	temperature := float32(req.Options.Temperature)
	genConfig := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(temperature),
		SafetySettings: c.getSafetySettings(),
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	topP := c.config.TopP
	if req.Options.TopP > 0 {
		topP = float32(req.Options.TopP)
	}
	if topP > 0 {
		genConfig.TopP = genai.Ptr(topP)
	}
	topK := c.config.TopK
	if req.Options.TopK > 0 {
		topK = req.Options.TopK
	}
	if topK > 0 {
		genConfig.TopK = genai.Ptr(float32(topK))
	}
	if c.config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if req.Options.ForceJSONFormat {
		genConfig.ResponseMIMEType = "application/json"
	}

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, genConfig
}

// classifyError decides whether an SDK error is worth retrying.
func (c *GoogleClient) classifyError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
		return err
	}

	c.logger.Error("Gemini API returned error status", zap.Int("status", apiErr.Code), zap.String("response", apiErr.Message))
	switch apiErr.Code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusGatewayTimeout:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err) // Permanent errors.
	}
}

func (c *GoogleClient) getSafetySettings() []*genai.SafetySetting {
	categories := make([]string, 0, len(c.config.SafetyFilters))
	for category := range c.config.SafetyFilters {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  genai.HarmCategory(category),
			Threshold: genai.HarmBlockThreshold(c.config.SafetyFilters[category]),
		})
	}
	return settings
}
