package ledger

// Pricing is the USD price per million tokens on each side of a request.
type Pricing struct {
	PromptPerMillion     float64
	CompletionPerMillion float64
}

var DefaultPricing = Pricing{PromptPerMillion: 0.25, CompletionPerMillion: 2.0}

type Cost struct {
	Prompt     float64
	Completion float64
	Total      float64
}

func (p Pricing) Cost(promptTokens, completionTokens int64) Cost {
	c := Cost{
		Prompt:     float64(promptTokens) / 1_000_000 * p.PromptPerMillion,
		Completion: float64(completionTokens) / 1_000_000 * p.CompletionPerMillion,
	}
	c.Total = c.Prompt + c.Completion
	return c
}
