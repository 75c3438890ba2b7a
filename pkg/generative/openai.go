// Package generative provides GenerativeTextService implementations.
package generative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kaizen-works/kaizen/pkg/improvement"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 4 << 10
)

// ErrEmptyCompletion is returned when the service answers without any text.
var ErrEmptyCompletion = errors.New("empty completion")

// APIError is a non-2xx answer of the chat completions endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat completions API error %d: %s", e.StatusCode, e.Message)
}

// Config configures an OpenAI-compatible chat completions client.
type Config struct {
	BaseURL     string        `validate:"required,url"`
	APIKey      string
	Model       string        `validate:"required"`
	Timeout     time.Duration `validate:"gt=0"`
	Temperature float64       `validate:"gte=0,lte=2"`
}

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	config   Config
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

var _ improvement.GenerativeTextService = (*OpenAIClient)(nil)

// NewOpenAIClient validates config, filling defaults, and creates a client.
func NewOpenAIClient(config Config, logger *slog.Logger) (*OpenAIClient, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}

	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	err := validator.New(validator.WithRequiredStructEnabled()).Struct(config)
	if err != nil {
		return nil, fmt.Errorf("invalid generative client config: %w", err)
	}

	endpoint := strings.TrimSuffix(config.BaseURL, "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint += "/chat/completions"
	}

	return &OpenAIClient{
		config:   config,
		endpoint: endpoint,
		client:   &http.Client{Timeout: config.Timeout},
		logger:   logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	User        string        `json:"user,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends prompt as the user message after the system prompt and
// returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, pc improvement.PromptContext) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: improvement.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.config.Temperature,
		User:        pc.SessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	started := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return "", &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var chatResp chatResponse

	err = json.NewDecoder(resp.Body).Decode(&chatResp)
	if err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	if chatResp.Error != nil {
		return "", &APIError{StatusCode: resp.StatusCode, Message: chatResp.Error.Message}
	}

	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.DebugContext(ctx, "Chat completion received",
		"model", c.config.Model,
		"duration", time.Since(started),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
		"finish_reason", chatResp.Choices[0].FinishReason,
	)

	return chatResp.Choices[0].Message.Content, nil
}
