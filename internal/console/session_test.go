package console

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gptbot/internal/chat"
	"gptbot/internal/llm"
)

// scriptedConversation answers from its own goroutine, like the scheduler.
type scriptedConversation struct {
	mu    sync.Mutex
	texts []string
	stats chat.Stats
}

func (c *scriptedConversation) Submit(_ context.Context, in chat.Inbound, emit chat.Emitter) bool {
	c.mu.Lock()
	c.texts = append(c.texts, in.Text)
	c.mu.Unlock()
	go func() {
		if chat.IsReset(in.Text) {
			emit(chat.Reply{Kind: chat.ReplyReset, Text: chat.ResetText})
			return
		}
		emit(chat.Reply{Kind: chat.ReplyThinking, Text: chat.ThinkingText})
		if in.Text == "fail" {
			emit(chat.Reply{Kind: chat.ReplyFailure, Text: chat.FailureText})
			return
		}
		emit(chat.Reply{
			Kind:  chat.ReplyAnswer,
			Text:  "echo " + in.Text,
			Usage: &llm.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		})
	}()
	return true
}

func (c *scriptedConversation) Stats(context.Context, int64) chat.Stats { return c.stats }

func (c *scriptedConversation) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func TestSession_SendPrintsAnswerAndUsage(t *testing.T) {
	p, out := prompter("")
	conv := &scriptedConversation{}
	s := NewSession(p, conv, 0, 0.7)

	ok, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.True(t, ok)

	text := out.String()
	assert.Contains(t, text, "Отправляю запрос")
	assert.Contains(t, text, "echo hi")
	assert.Contains(t, text, "Температура запроса:     0.7")
	assert.Contains(t, text, "Всего токенов:           7")
}

func TestSession_PrintsTemperatureUnrounded(t *testing.T) {
	p, out := prompter("")
	s := NewSession(p, &scriptedConversation{}, 0, 0.75)

	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Температура запроса:     0.75\n")
}

func TestSession_SendFailure(t *testing.T) {
	p, out := prompter("")
	s := NewSession(p, &scriptedConversation{}, 0, 1)

	ok, err := s.Send(context.Background(), "fail")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), chat.FailureText)
}

func TestSession_Loop(t *testing.T) {
	p, out := prompter("first\n\n/clear\n/stats\nsecond\n/exit\nnever\n")
	conv := &scriptedConversation{stats: chat.Stats{PromptTokens: 10, CompletionTokens: 5}}
	s := NewSession(p, conv, 7, 0.7)

	require.NoError(t, s.Loop(context.Background()))

	assert.Equal(t, []string{"first", "/clear", "second"}, conv.sent())
	text := out.String()
	assert.Contains(t, text, chat.ResetText)
	assert.Contains(t, text, "Всего токенов:    15")
	assert.False(t, strings.Contains(text, "echo never"))
}

func TestSession_LoopStopsAtEOF(t *testing.T) {
	p, _ := prompter("one\n")
	conv := &scriptedConversation{}
	require.NoError(t, NewSession(p, conv, 0, 0.7).Loop(context.Background()))
	assert.Equal(t, []string{"one"}, conv.sent())
}
