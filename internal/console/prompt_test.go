package console

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { color.NoColor = true }

func prompter(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return NewPrompter(strings.NewReader(input), &out), &out
}

func TestMessage_RepromptsOnEmpty(t *testing.T) {
	p, out := prompter("\n   \nhello\n")
	v, err := p.Message()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
	assert.Equal(t, 2, strings.Count(out.String(), "не может быть пустым"))
}

func TestMessage_LongLine(t *testing.T) {
	long := strings.Repeat("слово ", 20000)
	p, _ := prompter(long + "\nnext\n")

	got, err := p.Message()
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(long), got)

	got, err = p.Line()
	require.NoError(t, err)
	assert.Equal(t, "next", got)
}

func TestTemperature(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    float64
		reasked int
	}{
		{"default", "\n", DefaultTemperature, 0},
		{"value", "1.2\n", 1.2, 0},
		{"comma", "0,5\n", 0.5, 0},
		{"bounds", "0\n", 0, 0},
		{"upper bound", "2\n", 2, 0},
		{"out of range then ok", "2.5\n-1\nabc\n1\n", 1, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, out := prompter(tc.input)
			v, err := p.Temperature()
			require.NoError(t, err)
			assert.InDelta(t, tc.want, v, 1e-9)
			assert.Equal(t, tc.reasked, strings.Count(out.String(), "Нужно число"))
		})
	}
}

func TestMaxTokens(t *testing.T) {
	p, _ := prompter("\n")
	v, err := p.MaxTokens()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTokens, v)

	p, out := prompter("0\n-3\n1.5\n256\n")
	v, err = p.MaxTokens()
	require.NoError(t, err)
	assert.Equal(t, 256, v)
	assert.Equal(t, 3, strings.Count(out.String(), "целое положительное"))
}

func TestSystemMessage_Optional(t *testing.T) {
	p, _ := prompter("\n")
	v, err := p.SystemMessage()
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestAsk(t *testing.T) {
	p, _ := prompter("what is go?\n0.2\n300\nbe terse\n")
	r, err := Ask(p, "gpt-4.1")
	require.NoError(t, err)
	assert.Equal(t, Request{Message: "what is go?", Temperature: 0.2, MaxTokens: 300, SystemMessage: "be terse"}, r)

	gen := r.Generation()
	require.NotNil(t, gen.Temperature)
	require.NotNil(t, gen.MaxOutputTokens)
	assert.InDelta(t, 0.2, *gen.Temperature, 1e-9)
	assert.Equal(t, 300, *gen.MaxOutputTokens)
}

func TestAsk_EOF(t *testing.T) {
	p, _ := prompter("only a message\n")
	_, err := Ask(p, "m")
	assert.ErrorIs(t, err, io.EOF)
}
