package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gptbot/internal/chat"
	"gptbot/internal/ledger"
)

const (
	startText = "Привет! Я бот с GPT. Пиши сообщения — я буду отвечать с учётом контекста.\n" +
		"/clear или «очистить контекст» — сбросить историю.\n" +
		"/stats — статистика токенов и стоимость."
	deniedText    = "Доступ к боту ограничен."
	adminOnlyText = "Команда доступна только администратору"
)

// handleCommand reports whether msg was consumed as a bot command. Unknown
// commands fall through to the conversation as ordinary text.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, startText)
	case "clear":
		b.submit(ctx, msg.Chat.ID, msg.From.ID, chat.ClearCommand)
	case "stats":
		b.handleStats(ctx, msg.Chat.ID, msg.From.ID)
	case "allow", "revoke", "allowlist":
		b.handleAdminCommand(msg)
	default:
		return false
	}
	return true
}

// handleStats reads the ledger on the outbox goroutine so the update loop
// never waits on the database.
func (b *Bot) handleStats(ctx context.Context, chatID, userID int64) {
	b.outbox.Post(func() {
		m := tgbotapi.NewMessage(chatID, formatStats(b.conv.Stats(ctx, userID), b.pricing))
		m.ParseMode = tgbotapi.ModeHTML
		b.send(m)
	})
}

func formatStats(s chat.Stats, p ledger.Pricing) string {
	var bld strings.Builder
	bld.WriteString("📊 <b>Статистика токенов</b>\n\n")
	fmt.Fprintf(&bld, "Токенов запросов: <b>%s</b>\n", humanize.Comma(s.PromptTokens))
	fmt.Fprintf(&bld, "Токенов ответов: <b>%s</b>\n", humanize.Comma(s.CompletionTokens))
	fmt.Fprintf(&bld, "Всего токенов: <b>%s</b>\n\n", humanize.Comma(s.TotalTokens()))
	bld.WriteString("💰 <b>Стоимость</b>\n")
	fmt.Fprintf(&bld, "Запросы ($%g/1M): <b>$%.6f</b>\n", p.PromptPerMillion, s.Cost.Prompt)
	fmt.Fprintf(&bld, "Ответы ($%g/1M): <b>$%.6f</b>\n", p.CompletionPerMillion, s.Cost.Completion)
	fmt.Fprintf(&bld, "Итого: <b>$%.6f</b>", s.Cost.Total)
	return bld.String()
}

func (b *Bot) handleAdminCommand(msg *tgbotapi.Message) {
	if !b.authSvc.IsAdmin(msg.From.ID) {
		b.sendMessage(msg.Chat.ID, adminOnlyText)
		return
	}
	switch msg.Command() {
	case "allowlist":
		if !b.authSvc.Restricted() {
			b.sendMessage(msg.Chat.ID, "Allowlist пуст: бот доступен всем")
			return
		}
		var bld strings.Builder
		bld.WriteString("Allowlist:\n")
		for _, id := range b.authSvc.List() {
			fmt.Fprintf(&bld, "- id=%d\n", id)
		}
		b.sendMessage(msg.Chat.ID, bld.String())
	case "allow", "revoke":
		args := strings.Fields(msg.CommandArguments())
		if len(args) != 1 {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Usage: /%s <user_id>", msg.Command()))
			return
		}
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.sendMessage(msg.Chat.ID, "Некорректный user_id")
			return
		}
		if msg.Command() == "allow" {
			b.authSvc.Allow(uid)
			b.logger.Info("user allowed", "user_id", uid)
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Пользователь %d добавлен в allowlist", uid))
			return
		}
		if !b.authSvc.Revoke(uid) {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Пользователь %d не удалён", uid))
			return
		}
		b.logger.Info("user revoked", "user_id", uid)
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Пользователь %d удален из allowlist", uid))
	}
}
