// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pagewright/internal/config"
)

// GenerationRequest is a single prompt exchange.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	ForceJSON    bool
}

// Generator produces a model reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GeminiClient implements Generator on top of the Gemini API.
type GeminiClient struct {
	client         *genai.Client
	model          string
	cfg            config.PlannerConfig
	logger         *zap.Logger
	backoffFactory func() backoff.BackOff
}

// NewGeminiClient initializes the client.
func NewGeminiClient(ctx context.Context, cfg config.PlannerConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions.BaseURL = cfg.Endpoint
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		cfg:    cfg,
		logger: logger.Named("llm_client.gemini"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Generate sends the prompts and returns the reply text, retrying
// transient failures up to MaxRetries times.
func (c *GeminiClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	gc := c.buildConfig(req)
	var reply string

	operation := func() error {
		start := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), gc)
		if err != nil {
			return c.classify(err)
		}
		if len(resp.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		candidate := resp.Candidates[0]
		text := resp.Text()
		if text == "" {
			if candidate.FinishReason == genai.FinishReasonSafety || candidate.FinishReason == genai.FinishReasonBlocklist {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content (reason: %s)", candidate.FinishReason)
		}

		fields := []zap.Field{zap.Duration("duration", time.Since(start))}
		if u := resp.UsageMetadata; u != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", u.PromptTokenCount),
				zap.Int32("completion_tokens", u.CandidatesTokenCount),
				zap.Int32("total_tokens", u.TotalTokenCount))
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)
		reply = text
		return nil
	}

	b := backoff.WithMaxRetries(backoff.WithContext(c.backoffFactory(), ctx), uint64(max(c.cfg.MaxRetries, 0)))
	if err := backoff.Retry(operation, b); err != nil {
		return "", err
	}
	return reply, nil
}

func (c *GeminiClient) buildConfig(req GenerationRequest) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.ForceJSON {
		gc.ResponseMIMEType = "application/json"
	}
	return gc
}

// classify marks API errors that will not improve on retry as permanent.
func (c *GeminiClient) classify(err error) error {
	var apiErr genai.APIError
	code := 0
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	} else if p := (*genai.APIError)(nil); errors.As(err, &p) {
		code = p.Code
	}

	switch code {
	case 0, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		c.logger.Warn("Transient error during LLM request, retrying...", zap.Int("status", code), zap.Error(err))
		return err
	default:
		c.logger.Error("Gemini API returned error status", zap.Int("status", code), zap.Error(err))
		return backoff.Permanent(err)
	}
}
