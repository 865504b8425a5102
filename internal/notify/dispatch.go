package notify

import (
	"context"
	"errors"
	"fmt"

	"likhtar/internal/push"
	"likhtar/internal/queue"
	"likhtar/internal/registry"
	"likhtar/internal/storage"
	logx "likhtar/pkg/logx"
)

// PushSender is the web-push delivery primitive.
type PushSender interface {
	Enabled() bool
	Send(ctx context.Context, sub registry.PushSub, payload []byte) (push.Result, error)
}

// ChatSender is the chat-bot delivery primitive.
type ChatSender interface {
	Enabled() bool
	SendText(ctx context.Context, chatID int64, text string) error
}

// Mirror is the best-effort cache replica of the registry.
type Mirror interface {
	SavePushSubs(ctx context.Context, subs []registry.PushSub)
	SaveChatSubs(ctx context.Context, subs []registry.ChatSub)
	SaveChatSub(ctx context.Context, s registry.ChatSub)
	DeleteChatSub(ctx context.Context, id int64)
	LoadPush(ctx context.Context) ([]string, error)
	LoadChat(ctx context.Context) ([]string, error)
}

// Result aggregates one fan-out pass over both channels.
type Result struct {
	PushSent   int
	PushErrors []error
	ChatSent   int
	ChatErrors []error
}

func (r Result) Delivered() int { return r.PushSent + r.ChatSent }

func (r *Result) merge(o Result) {
	r.PushSent += o.PushSent
	r.PushErrors = append(r.PushErrors, o.PushErrors...)
	r.ChatSent += o.ChatSent
	r.ChatErrors = append(r.ChatErrors, o.ChatErrors...)
}

// Dispatcher fans a message out to every subscriber of a queue, on both
// channels, with per-recipient failure isolation.
//
// Cleanup policy follows delivery semantics: the push service tells us
// explicitly when a subscription is gone, so only that status removes a push
// subscriber; the chat transport gives no such signal, so any chat send
// failure removes the recipient.
type Dispatcher struct {
	reg    *registry.Registry
	push   PushSender
	chat   ChatSender
	store  storage.Store
	mirror Mirror
	log    logx.Logger
}

func NewDispatcher(reg *registry.Registry, pushSender PushSender, chat ChatSender, store storage.Store, mirror Mirror, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		reg:    reg,
		push:   pushSender,
		chat:   chat,
		store:  store,
		mirror: mirror,
		log:    log,
	}
}

// Dispatch sends the message to every subscriber of one queue.
func (d *Dispatcher) Dispatch(ctx context.Context, code queue.Code, msg Message) Result {
	var res Result
	res.merge(d.dispatchPush(ctx, d.reg.PushByQueue(code), msg))
	res.merge(d.dispatchChat(ctx, d.reg.ChatByQueue(code), msg))
	return res
}

// DispatchAll sends the message to every subscriber regardless of queue.
func (d *Dispatcher) DispatchAll(ctx context.Context, msg Message) Result {
	var res Result
	res.merge(d.dispatchPush(ctx, d.reg.PushAll(), msg))
	res.merge(d.dispatchChat(ctx, d.reg.ChatAll(), msg))
	return res
}

func (d *Dispatcher) dispatchPush(ctx context.Context, subs []registry.PushSub, msg Message) Result {
	var res Result
	if len(subs) == 0 || d.push == nil || !d.push.Enabled() {
		return res
	}
	payload, err := msg.PushPayload()
	if err != nil {
		res.PushErrors = append(res.PushErrors, fmt.Errorf("encode payload: %w", err))
		return res
	}

	removed := false
	for _, sub := range subs {
		outcome, err := d.push.Send(ctx, sub, payload)
		switch outcome {
		case push.ResultSent:
			res.PushSent++
		case push.ResultGone:
			d.reg.ForgetPush(sub.Endpoint)
			d.removePushStored(ctx, sub.Endpoint)
			removed = true
			d.log.Info("push subscription gone, removed",
				logx.String("queue", sub.Queue.Label()))
		default:
			if err == nil {
				err = errors.New("push send failed")
			}
			res.PushErrors = append(res.PushErrors, err)
			d.log.Warn("push send failed", logx.Err(err))
		}
	}
	if removed && d.mirror != nil {
		d.mirror.SavePushSubs(ctx, d.reg.PushAll())
	}
	return res
}

func (d *Dispatcher) dispatchChat(ctx context.Context, subs []registry.ChatSub, msg Message) Result {
	var res Result
	if len(subs) == 0 || d.chat == nil || !d.chat.Enabled() {
		return res
	}
	text := msg.ChatText()

	for _, sub := range subs {
		if err := d.chat.SendText(ctx, sub.ID, text); err != nil {
			res.ChatErrors = append(res.ChatErrors, err)
			d.reg.ForgetChat(sub.ID)
			d.removeChatStored(ctx, sub.ID)
			d.log.Info("chat send failed, subscriber removed",
				logx.Int64("chat_id", sub.ID), logx.Err(err))
			continue
		}
		res.ChatSent++
	}
	return res
}

func (d *Dispatcher) removePushStored(ctx context.Context, endpoint string) {
	if d.store == nil {
		return
	}
	if _, err := d.store.DeletePushSub(ctx, endpoint); err != nil {
		d.log.Warn("store delete push subscription", logx.Err(err))
	}
}

func (d *Dispatcher) removeChatStored(ctx context.Context, id int64) {
	if d.store != nil {
		if _, err := d.store.DeleteChatSub(ctx, id); err != nil {
			d.log.Warn("store delete chat subscriber", logx.Err(err))
		}
	}
	if d.mirror != nil {
		d.mirror.DeleteChatSub(ctx, id)
	}
}
