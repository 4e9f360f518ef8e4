package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	got  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestOpenAIGateway_OmitsUnsetOptions(t *testing.T) {
	fc := &fakeCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "hi"}}},
	}}
	g := &OpenAIGateway{client: fc}

	turns := []Turn{{Role: RoleSystem, Content: "be brief"}, {Role: RoleUser, Content: "hello"}}
	out, err := g.Complete(context.Background(), turns, "gpt-5-mini", Options{})
	require.NoError(t, err)

	assert.Equal(t, "hi", out.Text)
	assert.Nil(t, out.Usage, "zero usage block means the provider did not report it")
	assert.Equal(t, "gpt-5-mini", fc.got.Model)
	assert.Zero(t, fc.got.Temperature)
	assert.Zero(t, fc.got.MaxTokens)
	require.Len(t, fc.got.Messages, 2)
	assert.Equal(t, "system", fc.got.Messages[0].Role)
	assert.Equal(t, "hello", fc.got.Messages[1].Content)
}

func TestOpenAIGateway_ForwardsOptionsAndUsage(t *testing.T) {
	fc := &fakeCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: ""}}},
		Usage:   openai.Usage{PromptTokens: 12, CompletionTokens: 30, TotalTokens: 42},
	}}
	g := &OpenAIGateway{client: fc}

	out, err := g.Complete(context.Background(), []Turn{{Role: RoleUser, Content: "x"}}, "gpt-4.1",
		Options{Temperature: Float(0.7), MaxOutputTokens: Int(1000)})
	require.NoError(t, err)

	assert.Equal(t, "", out.Text)
	require.NotNil(t, out.Usage)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 30, TotalTokens: 42}, *out.Usage)
	assert.InDelta(t, 0.7, fc.got.Temperature, 1e-6)
	assert.Equal(t, 1000, fc.got.MaxTokens)
}

func TestBuildOpenAIRequest_ExplicitZeroTemperature(t *testing.T) {
	turns := []Turn{{Role: RoleUser, Content: "x"}}

	raw, err := json.Marshal(buildOpenAIRequest(turns, "m", Options{Temperature: Float(0)}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"temperature"`, "an explicit zero must reach the provider")

	raw, err = json.Marshal(buildOpenAIRequest(turns, "m", Options{}))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"temperature"`)
}

func TestOpenAIGateway_WrapsFailures(t *testing.T) {
	cause := errors.New("401 unauthorized")
	g := &OpenAIGateway{client: &fakeCompleter{err: cause}}

	_, err := g.Complete(context.Background(), []Turn{{Role: RoleUser, Content: "x"}}, "m", Options{})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, ProviderOpenAI, gwErr.Provider)
	assert.Equal(t, "m", gwErr.Model)
	assert.ErrorIs(t, err, cause)
}

func TestOpenAIGateway_EmptyTurns(t *testing.T) {
	fc := &fakeCompleter{}
	g := &OpenAIGateway{client: fc}

	_, err := g.Complete(context.Background(), nil, "m", Options{})
	assert.ErrorIs(t, err, ErrEmptyTurns)
	assert.Empty(t, fc.got.Model, "no request should be sent")
}

func TestOpenAIGateway_NoChoices(t *testing.T) {
	g := &OpenAIGateway{client: &fakeCompleter{}}

	_, err := g.Complete(context.Background(), []Turn{{Role: RoleUser, Content: "x"}}, "m", Options{})
	var gwErr *GatewayError
	assert.ErrorAs(t, err, &gwErr)
}
