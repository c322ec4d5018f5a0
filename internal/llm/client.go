// Copyright 2025 PeerNest AI Service Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/JoelMun99/peernest-ai-service/internal/prompt"
	"github.com/JoelMun99/peernest-ai-service/internal/resilience"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the default Groq model for categorization
	DefaultModel = "llama3-70b-8192"
	// DefaultMaxTokens bounds the completion length
	DefaultMaxTokens = 1000
	// DefaultTemperature keeps categorization output stable
	DefaultTemperature = 0.3
)

// Config holds the Groq API client configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
}

// Client calls the Groq chat completion API to categorize struggles.
// Calls go through a circuit breaker and transient errors are retried
// with exponential backoff.
type Client struct {
	api     *openai.Client
	builder *prompt.Builder
	breaker *resilience.Breaker
	config  Config
	logger  *zap.Logger
}

// NewClient creates a categorization client for the Groq API.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature <= 0 {
		config.Temperature = DefaultTemperature
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = resilience.DefaultMaxRetries
	}

	apiConfig := openai.DefaultConfig(config.APIKey)
	apiConfig.BaseURL = config.BaseURL
	if config.Timeout > 0 {
		apiConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	client := &Client{
		api:     openai.NewClientWithConfig(apiConfig),
		builder: prompt.NewBuilder(),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("groq"), logger),
		config:  config,
		logger:  logger,
	}

	logger.Info("Groq client initialized",
		zap.String("base_url", config.BaseURL),
		zap.String("model", config.Model),
		zap.Int("max_tokens", config.MaxTokens),
		zap.Int("max_retries", config.MaxRetries))

	return client, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// BreakerStats exposes the circuit breaker counters for the stats endpoint.
func (c *Client) BreakerStats() resilience.BreakerStats {
	return c.breaker.Stats()
}

// complete runs one chat completion through the retry and circuit breaker
// stack, returning the reply content, token usage, and attempt count.
func (c *Client) complete(ctx context.Context, promptText string) (string, openai.Usage, int, error) {
	var content string
	var usage openai.Usage
	attempts := 0

	backoffConfig := resilience.DefaultBackoffConfig()
	backoffConfig.MaxRetries = c.config.MaxRetries
	backoffConfig.RetryOnFunc = isRetryable

	err := resilience.WithExponentialBackoff(ctx, c.logger, backoffConfig, func(ctx context.Context) error {
		attempts++
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: c.config.Model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: promptText},
				},
				MaxTokens:   c.config.MaxTokens,
				Temperature: c.config.Temperature,
			})
			if err != nil {
				return c.wrapAPIError(err)
			}
			if len(resp.Choices) == 0 {
				return &ClassifierError{Kind: KindTransport, Message: "no choices in completion"}
			}
			content = resp.Choices[0].Message.Content
			usage = resp.Usage
			return nil
		})
	})

	return content, usage, attempts, err
}

// CategorizeStruggle sends the struggle text to the model and parses the
// reply into a validated classification.
func (c *Client) CategorizeStruggle(ctx context.Context, struggleText string, availableCategories []string) (*Classification, *CallMetrics, error) {
	basePrompt := c.builder.BuildCategorizationPrompt(struggleText, availableCategories)
	optimized := c.builder.OptimizeForModel(basePrompt, c.config.Model)

	start := time.Now()
	content, usage, attempts, err := c.complete(ctx, optimized)

	metrics := &CallMetrics{
		Model:            c.config.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		Duration:         time.Since(start),
		Attempts:         attempts,
	}

	if err != nil {
		c.logger.Warn("Categorization API call failed",
			zap.Error(err),
			zap.Int("attempts", attempts),
			zap.Duration("duration", metrics.Duration))
		return nil, metrics, err
	}

	classification, err := ParseClassification(content, availableCategories)
	if err != nil {
		c.logger.Warn("Failed to parse model reply",
			zap.Error(err),
			zap.Int("reply_length", len(content)))
		return nil, metrics, err
	}

	c.logger.Debug("Categorization completed",
		zap.String("primary_category", classification.PrimaryCategory),
		zap.Int("category_count", len(classification.Categories)),
		zap.Bool("crisis_detected", classification.CrisisDetected),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.Duration("duration", metrics.Duration))

	return classification, metrics, nil
}

// DetectCrisis runs a dedicated crisis assessment on the struggle text and
// parses the reply into a structured verdict.
func (c *Client) DetectCrisis(ctx context.Context, struggleText string) (*CrisisAssessment, *CallMetrics, error) {
	basePrompt := c.builder.BuildCrisisDetectionPrompt(struggleText)
	optimized := c.builder.OptimizeForModel(basePrompt, c.config.Model)

	start := time.Now()
	content, usage, attempts, err := c.complete(ctx, optimized)

	metrics := &CallMetrics{
		Model:            c.config.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		Duration:         time.Since(start),
		Attempts:         attempts,
	}

	if err != nil {
		c.logger.Warn("Crisis detection API call failed",
			zap.Error(err),
			zap.Int("attempts", attempts),
			zap.Duration("duration", metrics.Duration))
		return nil, metrics, err
	}

	assessment, err := ParseCrisisAssessment(content)
	if err != nil {
		c.logger.Warn("Failed to parse crisis assessment reply",
			zap.Error(err),
			zap.Int("reply_length", len(content)))
		return nil, metrics, err
	}

	c.logger.Debug("Crisis detection completed",
		zap.Bool("crisis_detected", assessment.CrisisDetected),
		zap.String("crisis_level", assessment.CrisisLevel),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.Duration("duration", metrics.Duration))

	return assessment, metrics, nil
}

// Ping verifies API connectivity by listing available models.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.ListModels(ctx)
	if err != nil {
		return c.wrapAPIError(err)
	}
	return nil
}

// ListModels returns the model IDs available at the configured endpoint.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, c.wrapAPIError(err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.ID)
	}
	return models, nil
}

// wrapAPIError converts go-openai errors into ClassifierErrors, preserving
// the HTTP status so retry logic can tell transient failures apart.
func (c *Client) wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ClassifierError{
			Kind:       KindTransport,
			Message:    apiErr.Message,
			StatusCode: apiErr.HTTPStatusCode,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ClassifierError{
			Kind:       KindTransport,
			Message:    reqErr.Error(),
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}
	return &ClassifierError{
		Kind:    KindTransport,
		Message: err.Error(),
		Err:     err,
	}
}

// isRetryable retries rate limits and upstream server errors. Parse and
// validation failures are deterministic and never retried; neither are
// auth failures or an open circuit breaker.
func isRetryable(err error) bool {
	var clsErr *ClassifierError
	if errors.As(err, &clsErr) {
		if clsErr.Kind != KindTransport {
			return false
		}
		switch clsErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		case 0:
			return resilience.IsTransientError(clsErr.Err)
		default:
			return false
		}
	}
	return resilience.IsTransientError(err)
}
