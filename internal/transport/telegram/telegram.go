// Package telegram is the chat-bot surface: subscription commands for
// recipients and the direct-message send primitive used by the dispatch
// fan-out.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"likhtar/internal/queue"
	"likhtar/internal/registry"
	logx "likhtar/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	SiteURL     string
}

// Subscriptions is the slice of the notify service the bot needs.
type Subscriptions interface {
	SubscribeChat(ctx context.Context, raw any) (registry.ChatSub, bool)
	UnsubscribeChat(ctx context.Context, id int64) bool
	ChatSubscription(id int64) (queue.Code, bool)
}

// Bot wraps the long-polling chat transport.
type Bot struct {
	cfg  Config
	bot  *tele.Bot
	subs Subscriptions
	log  logx.Logger

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, subs Subscriptions, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{cfg: cfg, bot: tb, subs: subs, log: log}
	b.registerHandlers()
	return b, nil
}

// Bind installs the subscription backend. The bot and the notify service
// reference each other (the service sends through the bot, the bot mutates
// subscriptions), so the bot is constructed first and bound after.
func (b *Bot) Bind(subs Subscriptions) { b.subs = subs }

func (b *Bot) Enabled() bool { return b != nil && b.bot != nil }

// Run starts long polling and blocks until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if !b.Enabled() {
		return nil
	}
	b.runMu.Lock()
	if b.running {
		b.runMu.Unlock()
		return nil
	}
	b.running = true
	b.runMu.Unlock()

	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()

	b.log.Info("polling started")
	b.bot.Start()
	b.log.Info("polling stopped")

	b.runMu.Lock()
	b.running = false
	b.runMu.Unlock()
	return nil
}

// SendText delivers one direct message. The dispatch fan-out treats any
// returned error as "subscriber unreachable".
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if !b.Enabled() {
		return errors.New("telegram: bot disabled")
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	_, err := b.bot.Send(&tele.Chat{ID: chatID}, text)
	return err
}
