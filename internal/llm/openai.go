package llm

import (
	"context"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const ProviderOpenAI = "openai"

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type OpenAIGateway struct {
	client chatCompleter
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid mutating the original
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

// NewOpenAI builds a gateway for the OpenAI chat completions API. baseURL is
// optional and lets the gateway talk to compatible services; extra headers
// (e.g. OpenRouter's HTTP-Referer) are attached to every request.
func NewOpenAI(apiKey, baseURL string, headers map[string]string) *OpenAIGateway {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	h := http.Header{}
	for k, v := range headers {
		if v != "" {
			h.Set(k, v)
		}
	}
	if len(h) > 0 {
		config.HTTPClient = &http.Client{Transport: headerTransport{rt: http.DefaultTransport, headers: h}}
	}
	return &OpenAIGateway{client: openai.NewClientWithConfig(config)}
}

func (g *OpenAIGateway) Complete(ctx context.Context, turns []Turn, model string, opts Options) (Completion, error) {
	if len(turns) == 0 {
		return Completion{}, &GatewayError{Provider: ProviderOpenAI, Model: model, Err: ErrEmptyTurns}
	}

	resp, err := g.client.CreateChatCompletion(ctx, buildOpenAIRequest(turns, model, opts))
	if err != nil {
		return Completion{}, &GatewayError{Provider: ProviderOpenAI, Model: model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &GatewayError{Provider: ProviderOpenAI, Model: model, Err: errNoChoices}
	}

	out := Completion{Text: resp.Choices[0].Message.Content}
	if u := resp.Usage; u.PromptTokens != 0 || u.CompletionTokens != 0 || u.TotalTokens != 0 {
		out.Usage = &Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

func buildOpenAIRequest(turns []Turn, model string, opts Options) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Content})
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
		// Temperature is omitempty; zero would be dropped and the provider
		// default used instead.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if opts.MaxOutputTokens != nil {
		req.MaxTokens = *opts.MaxOutputTokens
	}
	return req
}
