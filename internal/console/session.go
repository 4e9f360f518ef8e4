package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"gptbot/internal/chat"
	"gptbot/internal/llm"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	answerColor = color.New(color.FgGreen)
	infoColor   = color.New(color.FgYellow)
	warnColor   = color.New(color.FgRed)
	promptColor = color.New(color.FgCyan)
)

const (
	exitCommand  = "/exit"
	statsCommand = "/stats"
	rule         = "  ─────────────────────────────────────────"
)

// conversation is the part of chat.Orchestrator the terminal drives.
type conversation interface {
	Submit(ctx context.Context, in chat.Inbound, emit chat.Emitter) bool
	Stats(ctx context.Context, userID int64) chat.Stats
}

// Request is what the questionnaire collected.
type Request struct {
	Message       string
	Temperature   float64
	MaxTokens     int
	SystemMessage string
}

// Generation returns the sampling options carried by r.
func (r Request) Generation() llm.Options {
	return llm.Options{Temperature: llm.Float(r.Temperature), MaxOutputTokens: llm.Int(r.MaxTokens)}
}

// Ask runs the questionnaire for the first request.
func Ask(p *Prompter, model string) (Request, error) {
	headerColor.Fprintln(p.out, "\n  ╭─────────────────────────────────────────╮")
	headerColor.Fprintf(p.out, "     Запрос к модели %s\n", model)
	headerColor.Fprintln(p.out, "  ╰─────────────────────────────────────────╯")
	fmt.Fprintln(p.out)

	var (
		r   Request
		err error
	)
	if r.Message, err = p.Message(); err != nil {
		return r, err
	}
	if r.Temperature, err = p.Temperature(); err != nil {
		return r, err
	}
	if r.MaxTokens, err = p.MaxTokens(); err != nil {
		return r, err
	}
	if r.SystemMessage, err = p.SystemMessage(); err != nil {
		return r, err
	}
	return r, nil
}

// Session sends messages through the conversation and prints the replies.
type Session struct {
	p           *Prompter
	conv        conversation
	userID      int64
	temperature float64
}

func NewSession(p *Prompter, conv conversation, userID int64, temperature float64) *Session {
	return &Session{p: p, conv: conv, userID: userID, temperature: temperature}
}

// Send submits text and blocks until its final reply. It reports whether
// the reply was an answer.
func (s *Session) Send(ctx context.Context, text string) (bool, error) {
	replies := make(chan chat.Reply, 2)
	if !s.conv.Submit(ctx, chat.Inbound{UserID: s.userID, Text: text}, func(r chat.Reply) {
		replies <- r
	}) {
		return false, fmt.Errorf("conversation stopped")
	}
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case r := <-replies:
			if !r.Final() {
				infoColor.Fprintln(s.p.out, "\n  Отправляю запрос к модели...")
				continue
			}
			s.print(r)
			return r.Kind == chat.ReplyAnswer, nil
		}
	}
}

func (s *Session) print(r chat.Reply) {
	out := s.p.out
	switch r.Kind {
	case chat.ReplyAnswer:
		headerColor.Fprintln(out, "\n  ╭─────────────────────────────────────────╮")
		headerColor.Fprintln(out, "  │              Ответ модели               │")
		headerColor.Fprintln(out, "  ╰─────────────────────────────────────────╯")
		fmt.Fprintln(out)
		answerColor.Fprintln(out, r.Text)
		fmt.Fprintln(out, "\n"+rule)
		fmt.Fprintln(out, "  Сопутствующая информация:")
		fmt.Fprintf(out, "    • Температура запроса:     %g\n", s.temperature)
		if u := r.Usage; u != nil {
			fmt.Fprintf(out, "    • Токенов в запросе:       %d\n", u.PromptTokens)
			fmt.Fprintf(out, "    • Токенов в ответе:        %d\n", u.CompletionTokens)
			fmt.Fprintf(out, "    • Всего токенов:           %d\n", u.TotalTokens)
		}
		fmt.Fprintln(out, rule)
	case chat.ReplyFailure:
		warnColor.Fprintf(out, "  %s\n", r.Text)
	case chat.ReplyReset:
		infoColor.Fprintf(out, "  %s\n", r.Text)
	}
}

func (s *Session) printStats(ctx context.Context) {
	st := s.conv.Stats(ctx, s.userID)
	out := s.p.out
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  Токенов запросов: %d\n", st.PromptTokens)
	fmt.Fprintf(out, "  Токенов ответов:  %d\n", st.CompletionTokens)
	fmt.Fprintf(out, "  Всего токенов:    %d\n", st.TotalTokens())
	fmt.Fprintf(out, "  Стоимость:        $%.6f\n", st.Cost.Total)
	fmt.Fprintln(out, rule)
}

// Loop reads follow-up lines until /exit, end of input or ctx is done.
func (s *Session) Loop(ctx context.Context) error {
	infoColor.Fprintf(s.p.out, "\n  Продолжайте диалог. %s — сброс, %s — статистика, %s — выход.\n",
		chat.ClearCommand, statsCommand, exitCommand)
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := s.p.Line()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch strings.ToLower(line) {
		case "":
			continue
		case exitCommand:
			return nil
		case statsCommand:
			s.printStats(ctx)
			continue
		}
		if _, err := s.Send(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
