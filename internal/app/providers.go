package app

import (
	"fmt"

	"prospectus/internal/adapter/gemini"
	"prospectus/internal/adapter/local"
	"prospectus/internal/adapter/openai"
	"prospectus/internal/config"
	"prospectus/internal/provider"
)

// NewProvider builds the embedding and chat backend selected by PROVIDER.
func NewProvider(cfg *config.Config) (provider.Provider, error) {
	var p provider.Provider
	switch cfg.Provider {
	case config.ProviderRemoteA:
		p = openai.New(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			EmbedModel: cfg.OpenAIEmbedModel,
			ChatModel:  cfg.OpenAIChatModel,
			BatchSize:  cfg.EmbedBatchSize,
			Timeout:    cfg.ProviderTimeout(),
		})
	case config.ProviderRemoteB:
		p = gemini.New(gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			EmbedModel: cfg.GeminiEmbedModel,
			ChatModel:  cfg.GeminiChatModel,
			BatchSize:  cfg.EmbedBatchSize,
			Timeout:    cfg.ProviderTimeout(),
		})
	case config.ProviderLocalService:
		p = local.New(local.Config{
			BaseURL:    cfg.LocalServiceURL,
			EmbedModel: cfg.LocalEmbedModel,
			ChatModel:  cfg.LocalChatModel,
			BatchSize:  cfg.EmbedBatchSize,
			Timeout:    cfg.ProviderTimeout(),
		})
	default:
		return nil, fmt.Errorf("%w: PROVIDER %q", config.ErrInvalid, cfg.Provider)
	}
	return provider.WithRateLimit(p, cfg.ProviderRateLimitRPS), nil
}
