package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4.1", cfg.OpenAIModel)
	assert.Equal(t, "gpt-5-mini-2025-08-07", cfg.BotOpenAIModel)
	assert.Equal(t, "token_usage.db", cfg.TokenUsageDBPath)
	assert.Equal(t, 8, cfg.WorkerPoolSize)
	assert.Equal(t, SequencingConcurrent, cfg.UserSequencing)
	assert.InDelta(t, 0.25, cfg.PromptCostPer1M, 1e-9)
	assert.InDelta(t, 2.0, cfg.CompletionCostPer1M, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestValidate_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := New()
	require.NoError(t, err)

	err = cfg.Validate()
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Key)
}

func TestValidate_Yandex(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Yandex")
	t.Setenv("YANDEX_OAUTH_TOKEN", "oauth")
	t.Setenv("YANDEX_FOLDER_ID", "")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, ProviderYandex, cfg.LLMProvider)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "YANDEX_FOLDER_ID", cfgErr.Key)
}

func TestValidateBot_TokenAlias(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("BOT_TOKEN", "")

	cfg, err := New()
	require.NoError(t, err)
	require.Error(t, cfg.ValidateBot())

	t.Setenv("BOT_TOKEN", "123:abc")
	cfg, err = New()
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateBot())
	assert.Equal(t, "123:abc", cfg.Token())
}

func TestValidate_UnknownSequencing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("USER_SEQUENCING", "random")

	cfg, err := New()
	require.NoError(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "USER_SEQUENCING", cfgErr.Key)
}

func TestAllowedUsers_Separator(t *testing.T) {
	t.Setenv("ALLOWED_USERS", "1:22:333")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 22, 333}, cfg.AllowedUsers)
}
