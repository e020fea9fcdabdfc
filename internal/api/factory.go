package api

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = "openai"
)

// DefaultTierModels returns the default model for each tier on provider.
// Anthropic and Bedrock share the Claude models; Bedrock ids are translated
// by the client.
func DefaultTierModels(provider string) map[models.Tier]string {
	if provider == ProviderOpenAI {
		return map[models.Tier]string{
			models.TierScout:     ModelGPT4oMini,
			models.TierBuilder:   ModelGPT4o,
			models.TierArchitect: ModelGPT41,
		}
	}
	return map[models.Tier]string{
		models.TierScout:     ModelHaiku,
		models.TierBuilder:   ModelSonnet,
		models.TierArchitect: ModelOpus,
	}
}

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	// Name is one of ProviderAnthropic, ProviderBedrock, ProviderOpenAI.
	Name         string
	Model        string
	AnthropicKey string
	OpenAIKey    string
	BaseURL      string
	AWSRegion    string
	AWSProfile   string
	Retry        RetryConfig
}

// New creates the Completer for the configured provider.
func New(cfg ProviderConfig) (Completer, error) {
	switch cfg.Name {
	case "", ProviderAnthropic, ProviderBedrock:
		client, err := NewClient(ClientConfig{
			Model:         anthropic.Model(cfg.Model),
			APIKey:        cfg.AnthropicKey,
			BaseURL:       cfg.BaseURL,
			UseAWSBedrock: cfg.Name == ProviderBedrock,
			AWSRegion:     cfg.AWSRegion,
			AWSProfile:    cfg.AWSProfile,
			Retry:         cfg.Retry,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderOpenAI:
		model := cfg.Model
		if model == "" {
			model = ModelGPT4o
		}
		client, err := NewOpenAIClient(OpenAIConfig{
			Model:   model,
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.BaseURL,
			Retry:   cfg.Retry,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
