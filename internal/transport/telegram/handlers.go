package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"likhtar/internal/queue"
	"likhtar/internal/registry"
	logx "likhtar/pkg/logx"
)

const (
	msgGreeting = "Вітаю! Я повідомлю, коли за графіком наближається відключення світла.\n" +
		"Оберіть свою чергу командою /set_queue."
	msgChooseQueue   = "Оберіть вашу чергу відключень:"
	msgQueueSet      = "Чергу %s збережено. Ви отримуватимете сповіщення про відключення."
	msgCurrentQueue  = "Ваша черга: %s"
	msgNoQueue       = "Ви ще не обрали чергу. Скористайтесь /set_queue."
	msgUnsubscribed  = "Підписку видалено."
	msgNotSubscribed = "Ви не були підписані."
	msgHelp          = "Команди:\n" +
		"/set_queue — обрати чергу відключень\n" +
		"/queue — показати обрану чергу\n" +
		"/delete_queue — вимкнути сповіщення\n" +
		"/help — ця довідка"
)

const handlerTimeout = 10 * time.Second

var btnQueue = tele.Btn{Unique: "qi"}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/help", b.handleHelp)
	b.bot.Handle("/queue", b.handleQueue)
	b.bot.Handle("/set_queue", b.handleSetQueue)
	b.bot.Handle("/delete_queue", b.handleDeleteQueue)
	b.bot.Handle(&btnQueue, b.handleQueuePick)
}

func (b *Bot) handleStart(c tele.Context) error {
	if err := c.Send(msgGreeting); err != nil {
		return err
	}
	return c.Send(msgChooseQueue, queueKeyboard())
}

func (b *Bot) handleHelp(c tele.Context) error {
	help := msgHelp
	if b.cfg.SiteURL != "" {
		help += "\n\nВеб-версія: " + b.cfg.SiteURL
	}
	return c.Send(help)
}

func (b *Bot) handleQueue(c tele.Context) error {
	if b.subs == nil {
		return c.Send(msgNoQueue)
	}
	code, ok := b.subs.ChatSubscription(c.Chat().ID)
	if !ok {
		return c.Send(msgNoQueue)
	}
	return c.Send(fmt.Sprintf(msgCurrentQueue, code.Label()))
}

func (b *Bot) handleSetQueue(c tele.Context) error {
	// /set_queue 3.2 works without the keyboard.
	if arg := strings.TrimSpace(c.Message().Payload); arg != "" {
		return b.subscribe(c, queue.Parse(arg, 0))
	}
	return c.Send(msgChooseQueue, queueKeyboard())
}

func (b *Bot) handleQueuePick(c tele.Context) error {
	idx, err := strconv.Atoi(strings.TrimSpace(c.Data()))
	if err != nil {
		return c.Respond(&tele.CallbackResponse{})
	}
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		b.log.Debug("callback respond failed", logx.Err(err))
	}
	return b.subscribe(c, queue.FromIndex(idx))
}

func (b *Bot) subscribe(c tele.Context, code queue.Code) error {
	if b.subs == nil {
		return c.Send(msgNoQueue)
	}
	if !code.Valid() {
		return c.Send(msgChooseQueue, queueKeyboard())
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	sub, ok := b.subs.SubscribeChat(ctx, registry.ChatSub{ID: c.Chat().ID, Queue: code})
	if !ok {
		return c.Send(msgNoQueue)
	}
	b.log.Info("chat subscriber set",
		logx.Int64("chat_id", sub.ID), logx.String("queue", sub.Queue.Label()))
	return c.Send(fmt.Sprintf(msgQueueSet, sub.Queue.Label()))
}

func (b *Bot) handleDeleteQueue(c tele.Context) error {
	if b.subs == nil {
		return c.Send(msgNotSubscribed)
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if !b.subs.UnsubscribeChat(ctx, c.Chat().ID) {
		return c.Send(msgNotSubscribed)
	}
	b.log.Info("chat subscriber removed", logx.Int64("chat_id", c.Chat().ID))
	return c.Send(msgUnsubscribed)
}

// queueKeyboard builds the inline queue picker, two sub-groups per row.
// Callback payload is the 1-based row index of the queue.
func queueKeyboard() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	var row tele.Row
	for _, code := range queue.All() {
		btn := markup.Data(code.Label(), btnQueue.Unique, strconv.Itoa(code.Index()))
		row = append(row, btn)
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	markup.Inline(rows...)
	return markup
}
