package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Sequencing string

const (
	SequencingConcurrent Sequencing = "concurrent"
	SequencingSerialized Sequencing = "serialized"
)

type Config struct {
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	BotToken         string  `env:"BOT_TOKEN"`
	AllowedUsers     []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AdminUserID      int64   `env:"ADMIN_USER"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-4.1"`
	BotOpenAIModel   string      `env:"BOT_OPENAI_MODEL" envDefault:"gpt-5-mini-2025-08-07"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	BreakerMaxFailures uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerTimeout     time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH"`

	// Storage
	TokenUsageDBPath string `env:"TOKEN_USAGE_DB_PATH" envDefault:"token_usage.db"`

	// Pricing, USD per million tokens
	PromptCostPer1M     float64 `env:"PROMPT_COST_PER_1M" envDefault:"0.25"`
	CompletionCostPer1M float64 `env:"COMPLETION_COST_PER_1M" envDefault:"2.0"`

	// Concurrency
	WorkerPoolSize int        `env:"WORKER_POOL_SIZE" envDefault:"8"`
	UserSequencing Sequencing `env:"USER_SEQUENCING" envDefault:"concurrent"`

	DailyReportSpec string `env:"DAILY_REPORT_SPEC" envDefault:"0 21 * * *"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogOutput string `env:"LOG_OUTPUT" envDefault:"stderr"`
}

// ConfigurationError reports a missing or invalid setting. It is fatal at
// startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.LLMProvider = LLMProvider(strings.ToLower(string(cfg.LLMProvider)))
	cfg.UserSequencing = Sequencing(strings.ToLower(string(cfg.UserSequencing)))
	return cfg, nil
}

// Validate checks the settings every front end needs: provider credentials
// and the concurrency knobs.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return &ConfigurationError{Key: "OPENAI_API_KEY", Reason: "not set"}
		}
	case ProviderYandex:
		if c.YandexOAuthToken == "" {
			return &ConfigurationError{Key: "YANDEX_OAUTH_TOKEN", Reason: "not set"}
		}
		if c.YandexFolderID == "" {
			return &ConfigurationError{Key: "YANDEX_FOLDER_ID", Reason: "not set"}
		}
	default:
		return &ConfigurationError{Key: "LLM_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.LLMProvider)}
	}
	if c.WorkerPoolSize <= 0 {
		return &ConfigurationError{Key: "WORKER_POOL_SIZE", Reason: "must be positive"}
	}
	switch c.UserSequencing {
	case SequencingConcurrent, SequencingSerialized:
	default:
		return &ConfigurationError{Key: "USER_SEQUENCING", Reason: fmt.Sprintf("unknown policy %q", c.UserSequencing)}
	}
	return nil
}

// ValidateBot additionally requires the Telegram token.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Token() == "" {
		return &ConfigurationError{Key: "TELEGRAM_BOT_TOKEN", Reason: "not set"}
	}
	return nil
}

// Token returns the Telegram token, accepting BOT_TOKEN as an alias.
func (c *Config) Token() string {
	if c.TelegramBotToken != "" {
		return c.TelegramBotToken
	}
	return c.BotToken
}
