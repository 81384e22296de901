// Package bot is the Telegram surface of the coach assistant: registration
// on /start, quick client/workout/stats views and a button into the Mini
// App. It reads through the same resolver and sessions as the HTTP API.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bicepspshop/newcoach/internal/metrics"
	"github.com/bicepspshop/newcoach/internal/resolver"
	"github.com/bicepspshop/newcoach/internal/session"
	"github.com/bicepspshop/newcoach/internal/store"
	"github.com/bicepspshop/newcoach/internal/telegram"
)

const confirmTimeout = 60 * time.Second

// Bot wraps the long-polling Telegram bot
type Bot struct {
	api       *tgbotapi.BotAPI
	store     *store.Store
	resolver  *resolver.Resolver
	sessions  *session.Manager
	webAppURL string
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[int64]chan bool // outstanding confirmations by chat id
}

// New creates the bot against the Telegram API
func New(token string, st *store.Store, res *resolver.Resolver, sessions *session.Manager, webAppURL string, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	return &Bot{
		api:       api,
		store:     st,
		resolver:  res,
		sessions:  sessions,
		webAppURL: webAppURL,
		logger:    logger,
		pending:   make(map[int64]chan bool),
	}, nil
}

// Start consumes updates until the context is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("bot started", "username", b.api.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil && upd.Message.IsCommand():
		metrics.BotUpdatesTotal.WithLabelValues("command").Inc()
		b.handleCommand(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		metrics.BotUpdatesTotal.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, upd.CallbackQuery)
	}
}

// coachFor resolves the coach for a Telegram user, creating on first sight
func (b *Bot) coachFor(ctx context.Context, user *tgbotapi.User) (*store.Coach, error) {
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	return b.resolver.ResolveCoach(ctx, fmt.Sprintf("%d", user.ID), name, user.UserName)
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send message", "error", err)
	}
}

// ChatConfirmer asks a yes/no question in a chat and resolves to the
// answer, timing out as a "no"
type ChatConfirmer struct {
	bot    *Bot
	chatID int64
}

var _ telegram.Confirmer = (*ChatConfirmer)(nil)

// Confirm sends an inline yes/no keyboard and waits for the answer
func (c *ChatConfirmer) Confirm(ctx context.Context, message string) (bool, error) {
	answer := make(chan bool, 1)

	c.bot.mu.Lock()
	c.bot.pending[c.chatID] = answer
	c.bot.mu.Unlock()

	defer func() {
		c.bot.mu.Lock()
		delete(c.bot.pending, c.chatID)
		c.bot.mu.Unlock()
	}()

	msg := tgbotapi.NewMessage(c.chatID, message)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes", "confirm:yes"),
			tgbotapi.NewInlineKeyboardButtonData("❌ No", "confirm:no"),
		),
	)
	if _, err := c.bot.api.Send(msg); err != nil {
		return false, fmt.Errorf("failed to send confirmation: %w", err)
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case ok := <-answer:
		return ok, nil
	case <-time.After(confirmTimeout):
		return false, nil
	}
}

// deliverConfirmation routes a confirm callback to its waiting Confirm call.
// Reports whether anyone was waiting.
func (b *Bot) deliverConfirmation(chatID int64, ok bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	answer, waiting := b.pending[chatID]
	if !waiting {
		return false
	}
	select {
	case answer <- ok:
	default:
	}
	return true
}
