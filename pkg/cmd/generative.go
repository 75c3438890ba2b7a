package cmd

import (
	"log/slog"
	"time"

	"github.com/kaizen-works/kaizen/pkg/generative"
	"github.com/kaizen-works/kaizen/pkg/improvement"
)

// GenerativeConfig selects the text generation backend.
type GenerativeConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewGenerativeTextService returns an OpenAI-compatible client when an endpoint
// or key is configured, and the offline echo generator otherwise.
func NewGenerativeTextService(config GenerativeConfig, logger *slog.Logger) (improvement.GenerativeTextService, error) {
	if config.BaseURL == "" && config.APIKey == "" {
		logger.Warn("No language model configured, improvements echo the current steps")

		return generative.Echo{}, nil
	}

	return generative.NewOpenAIClient(generative.Config{
		BaseURL: config.BaseURL,
		APIKey:  config.APIKey,
		Model:   config.Model,
		Timeout: config.Timeout,
	}, logger)
}
