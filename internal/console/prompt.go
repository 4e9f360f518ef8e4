// Package console is the interactive terminal front end: a short
// questionnaire for the first request, then a multi-turn loop.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	TemperatureMin     = 0.0
	TemperatureMax     = 2.0
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// Prompter asks questions on out and reads answers line by line from in.
// Every method returns io.EOF once input is exhausted.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// maxLineSize bounds a single answer; pasted prompts easily exceed the
// scanner's 64KiB default.
const maxLineSize = 1 << 20

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Prompter{in: sc, out: out}
}

func (p *Prompter) readLine(hint string) (string, error) {
	fmt.Fprint(p.out, hint)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *Prompter) warn(text string) {
	warnColor.Fprintf(p.out, "  ⚠ %s Попробуйте снова.\n", text)
}

// Message asks for a non-empty request text.
func (p *Prompter) Message() (string, error) {
	for {
		v, err := p.readLine("  Введите сообщение с запросом: ")
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		p.warn("Сообщение не может быть пустым.")
	}
}

// Temperature asks for a value in [TemperatureMin, TemperatureMax]. An empty
// answer selects DefaultTemperature.
func (p *Prompter) Temperature() (float64, error) {
	fmt.Fprintf(p.out, "\n  Допустимый интервал температуры: %.1f — %.1f\n", TemperatureMin, TemperatureMax)
	hint := fmt.Sprintf("  Введите температуру (Enter = %.1f): ", DefaultTemperature)
	for {
		raw, err := p.readLine(hint)
		if err != nil {
			return 0, err
		}
		if raw == "" {
			return DefaultTemperature, nil
		}
		if v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64); err == nil && v >= TemperatureMin && v <= TemperatureMax {
			return v, nil
		}
		p.warn(fmt.Sprintf("Нужно число от %.1f до %.1f.", TemperatureMin, TemperatureMax))
	}
}

// MaxTokens asks for a positive integer. An empty answer selects
// DefaultMaxTokens.
func (p *Prompter) MaxTokens() (int, error) {
	hint := fmt.Sprintf("  Введите максимальное количество токенов в ответе (Enter = %d): ", DefaultMaxTokens)
	for {
		raw, err := p.readLine(hint)
		if err != nil {
			return 0, err
		}
		if raw == "" {
			return DefaultMaxTokens, nil
		}
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v, nil
		}
		p.warn("Введите целое положительное число.")
	}
}

// SystemMessage asks for an optional system message; empty means none.
func (p *Prompter) SystemMessage() (string, error) {
	return p.readLine("  Системное сообщение для роли/стиля (необязательно, Enter — пропустить): ")
}

// Line reads one REPL line.
func (p *Prompter) Line() (string, error) {
	return p.readLine(promptColor.Sprint("\n  › "))
}
