package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	calls int
	out   Completion
	err   error
}

func (s *stubGateway) Complete(context.Context, []Turn, string, Options) (Completion, error) {
	s.calls++
	return s.out, s.err
}

var oneTurn = []Turn{{Role: RoleUser, Content: "ping"}}

func TestBreakerGateway_PassesThrough(t *testing.T) {
	inner := &stubGateway{out: Completion{Text: "pong"}}
	g := NewBreakerGateway(inner, "test", BreakerConfig{}, slog.Default())

	out, err := g.Complete(context.Background(), oneTurn, "m", Options{})
	require.NoError(t, err)
	assert.Equal(t, "pong", out.Text)
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestBreakerGateway_OpensAfterFailures(t *testing.T) {
	inner := &stubGateway{err: errors.New("boom")}
	g := NewBreakerGateway(inner, "flaky", BreakerConfig{MaxFailures: 3, Timeout: time.Minute}, slog.Default())

	for i := 0; i < 3; i++ {
		_, err := g.Complete(context.Background(), oneTurn, "m", Options{})
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Complete(context.Background(), oneTurn, "m", Options{})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "open circuit must not reach the provider")
}

func TestBreakerGateway_KeepsInnerGatewayError(t *testing.T) {
	inner := &stubGateway{err: &GatewayError{Provider: "openai", Model: "m", Err: errors.New("timeout")}}
	g := NewBreakerGateway(inner, "openai", BreakerConfig{}, slog.Default())

	_, err := g.Complete(context.Background(), oneTurn, "m", Options{})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "timeout", gwErr.Err.Error())
}
