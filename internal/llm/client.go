package llm

import (
	"context"
	"errors"
	"fmt"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message of a dialogue.
type Turn struct {
	Role    Role
	Content string
}

// Options carries optional generation parameters. A nil field is not sent
// at all: reasoning models reject temperature and max_tokens outright.
type Options struct {
	Temperature     *float64
	MaxOutputTokens *int
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the gateway result. Usage is nil when the provider did not
// report token counts.
type Completion struct {
	Text  string
	Usage *Usage
}

// Gateway performs one synchronous request/response exchange with a
// completion provider. Implementations block for the duration of the call.
type Gateway interface {
	Complete(ctx context.Context, turns []Turn, model string, opts Options) (Completion, error)
}

var (
	ErrEmptyTurns      = errors.New("no turns to send")
	ErrUnknownProvider = errors.New("unknown llm provider")

	errNoChoices = errors.New("provider returned no choices")
)

// GatewayError wraps any failure of a single completion call.
type GatewayError struct {
	Provider string
	Model    string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s completion (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }
