package llm

import (
	"fmt"
	"log/slog"

	"gptbot/internal/config"
)

// NewGateway builds the configured provider wrapped in a circuit breaker.
func NewGateway(cfg *config.Config, logger *slog.Logger) (Gateway, error) {
	var (
		inner Gateway
		err   error
	)
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		inner = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, map[string]string{
			"HTTP-Referer": cfg.OpenRouterReferrer,
			"X-Title":      cfg.OpenRouterTitle,
		})
	case config.ProviderYandex:
		inner, err = NewYandex(cfg.YandexOAuthToken, cfg.YandexFolderID, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.LLMProvider)
	}

	return NewBreakerGateway(inner, string(cfg.LLMProvider), BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerTimeout,
	}, logger.With("component", "llm")), nil
}
