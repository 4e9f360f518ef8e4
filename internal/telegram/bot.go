package telegram

import (
	"context"
	"errors"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gptbot/internal/auth"
	"gptbot/internal/bridge"
	"gptbot/internal/chat"
	"gptbot/internal/ledger"
)

var ErrOutboxStopped = errors.New("telegram: outbox stopped")

// conversation is the part of chat.Orchestrator the bot drives.
type conversation interface {
	Submit(ctx context.Context, in chat.Inbound, emit chat.Emitter) bool
	Stats(ctx context.Context, userID int64) chat.Stats
}

type Bot struct {
	api     *tgbotapi.BotAPI
	s       sender
	authSvc *auth.Service
	conv    conversation
	pricing ledger.Pricing
	logger  *slog.Logger

	// outbox delivers messages one at a time in the order they were queued,
	// off the update loop and off the orchestrator's scheduler.
	outbox *bridge.Scheduler
}

func New(botToken string, authSvc *auth.Service, conv conversation, pricing ledger.Pricing, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	b := newBot(botAPISender{api: api}, authSvc, conv, pricing, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, authSvc *auth.Service, conv conversation, pricing ledger.Pricing, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "telegram")
	return &Bot{
		s:       s,
		authSvc: authSvc,
		conv:    conv,
		pricing: pricing,
		logger:  logger,
		outbox:  bridge.NewScheduler(logger),
	}
}

func (b *Bot) Username() string {
	if b.api == nil {
		return ""
	}
	return b.api.Self.UserName
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	go func() { _ = b.outbox.Run(ctx) }()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("polling for updates", "bot", b.Username())

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}
	userID := msg.From.ID
	if !b.authSvc.IsAllowed(userID) {
		b.logger.Warn("unauthorized access attempt", "user_id", userID, "username", msg.From.UserName)
		b.sendMessage(msg.Chat.ID, deniedText)
		return
	}
	if msg.IsCommand() && b.handleCommand(ctx, msg) {
		return
	}
	b.logger.Debug("incoming message", "user_id", userID, "chars", len([]rune(msg.Text)))
	b.submit(ctx, msg.Chat.ID, userID, msg.Text)
}

func (b *Bot) submit(ctx context.Context, chatID, userID int64, text string) {
	ok := b.conv.Submit(ctx, chat.Inbound{UserID: userID, Text: text}, func(r chat.Reply) {
		if r.Kind == chat.ReplyIgnored {
			return
		}
		b.sendMessage(chatID, r.Text)
	})
	if !ok {
		b.logger.Error("conversation stopped, message dropped", "user_id", userID)
	}
}

// Notify queues an HTML message for chatID. It is used for messages that do
// not originate from an update, such as the daily report.
func (b *Bot) Notify(chatID int64, htmlText string) error {
	m := tgbotapi.NewMessage(chatID, htmlText)
	m.ParseMode = tgbotapi.ModeHTML
	if !b.enqueue(m) {
		return ErrOutboxStopped
	}
	return nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.enqueue(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) enqueue(c tgbotapi.Chattable) bool {
	ok := b.outbox.Post(func() { b.send(c) })
	if !ok {
		b.logger.Warn("outbox stopped, message dropped")
	}
	return ok
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.s.Send(c); err != nil {
		b.logger.Error("failed to send message", "error", err)
	}
}
