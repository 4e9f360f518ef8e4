package report

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"gptbot/internal/ledger"
)

// Window — период, за который строится ежедневный отчёт.
const Window = 24 * time.Hour

// UserLine содержит расход одного пользователя за период
type UserLine struct {
	UserID           int64
	Requests         int64
	PromptTokens     int64
	CompletionTokens int64
	Cost             ledger.Cost
}

// Daily содержит статистику за период
type Daily struct {
	Since    time.Time
	Until    time.Time
	Users    []UserLine
	Requests int64
	Prompt   int64
	Output   int64
	Cost     ledger.Cost
}

// Build собирает отчёт по ledger за последние 24 часа до now
func Build(ctx context.Context, l ledger.Ledger, pricing ledger.Pricing, now time.Time) (*Daily, error) {
	since := now.Add(-Window)
	rows, res := l.UsageSince(ctx, since)
	if !res.OK() {
		return nil, fmt.Errorf("read usage since %s: %w", since.UTC().Format(time.RFC3339), res.Err)
	}

	d := &Daily{Since: since, Until: now, Users: make([]UserLine, 0, len(rows))}
	for _, r := range rows {
		line := UserLine{
			UserID:           r.UserID,
			Requests:         r.Requests,
			PromptTokens:     r.PromptTokens,
			CompletionTokens: r.CompletionTokens,
			Cost:             pricing.Cost(r.PromptTokens, r.CompletionTokens),
		}
		d.Users = append(d.Users, line)
		d.Requests += r.Requests
		d.Prompt += r.PromptTokens
		d.Output += r.CompletionTokens
	}
	d.Cost = pricing.Cost(d.Prompt, d.Output)
	return d, nil
}

func (d *Daily) Empty() bool { return len(d.Users) == 0 }

// HTML форматирует отчёт для отправки в Telegram с parse_mode=HTML
func (d *Daily) HTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 <b>Расход токенов за %s — %s UTC</b>\n\n",
		html.EscapeString(d.Since.UTC().Format("2006-01-02 15:04")),
		html.EscapeString(d.Until.UTC().Format("2006-01-02 15:04")))

	if d.Empty() {
		b.WriteString("Запросов не было.")
		return b.String()
	}

	fmt.Fprintf(&b, "Запросов: <b>%s</b>\n", humanize.Comma(d.Requests))
	fmt.Fprintf(&b, "Пользователей: <b>%d</b>\n", len(d.Users))
	fmt.Fprintf(&b, "Токенов запросов: <b>%s</b>\n", humanize.Comma(d.Prompt))
	fmt.Fprintf(&b, "Токенов ответов: <b>%s</b>\n", humanize.Comma(d.Output))
	fmt.Fprintf(&b, "Итого: <b>$%.6f</b>\n\n", d.Cost.Total)

	for _, u := range d.Users {
		fmt.Fprintf(&b, "• <code>%d</code>: %s запр., %s токенов, $%.6f\n",
			u.UserID, humanize.Comma(u.Requests),
			humanize.Comma(u.PromptTokens+u.CompletionTokens), u.Cost.Total)
	}
	return strings.TrimRight(b.String(), "\n")
}
