package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Morwran/yagpt"
)

const ProviderYandex = "yandex"

type YandexGateway struct {
	ya       yagpt.YaGPTFace
	iamToken string
	logger   *slog.Logger
}

func NewYandex(oauthToken, folderID string, logger *slog.Logger) (*YandexGateway, error) {
	// Create IAM token from OAuth token
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}

	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	return &YandexGateway{
		ya:       ya,
		iamToken: resp.IamToken,
		logger:   logger.With("component", "llm", "provider", ProviderYandex),
	}, nil
}

// Complete sends the turn list to YandexGPT. The model argument is reported
// in errors only: the folder binds the model on the Yandex side, and the
// generation options are not forwarded.
func (c *YandexGateway) Complete(ctx context.Context, turns []Turn, model string, opts Options) (Completion, error) {
	if len(turns) == 0 {
		return Completion{}, &GatewayError{Provider: ProviderYandex, Model: model, Err: ErrEmptyTurns}
	}
	if opts.Temperature != nil || opts.MaxOutputTokens != nil {
		c.logger.Debug("generation options are not forwarded to yandex")
	}

	messages := make([]yagpt.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, yagpt.Message{Role: string(t.Role), Content: t.Content})
	}

	resp, err := c.ya.CompletionWithCtx(ctx, c.iamToken, messages)
	if err != nil {
		return Completion{}, &GatewayError{Provider: ProviderYandex, Model: model, Err: err}
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return Completion{}, &GatewayError{Provider: ProviderYandex, Model: model, Err: errNoChoices}
	}
	out := Completion{Text: resp.Alternatives[0].Message.Content}
	if u := resp.Usage; u.InputTextTokens != 0 || u.CompletionTokens != 0 || u.TotalTokens != 0 {
		out.Usage = &Usage{
			PromptTokens:     int(u.InputTextTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		}
	}
	return out, nil
}
