package notify

import (
	"context"
	"time"

	"likhtar/internal/queue"
	"likhtar/internal/registry"
	"likhtar/internal/schedule"
	"likhtar/internal/storage"
	logx "likhtar/pkg/logx"
)

// Service runs the scheduled notify cycle and owns the subscribe and
// unsubscribe flows. Every mutation goes through the registry first; the
// durable store and the mirror are synchronized afterwards and their
// failures are logged, never surfaced to the caller.
type Service struct {
	reg      *registry.Registry
	source   schedule.Provider
	detector *Detector
	disp     *Dispatcher
	store    storage.Store
	mirror   Mirror
	forceDB  bool
	clock    func() time.Time
	log      logx.Logger
}

// Config collects the service collaborators. Store, Mirror, Push and Chat
// may be absent; the service degrades to whatever channels remain.
type Config struct {
	Registry *registry.Registry
	Source   schedule.Provider
	Push     PushSender
	Chat     ChatSender
	Store    storage.Store
	Mirror   Mirror
	// ForceDB makes Load prefer the durable store over a warm mirror.
	ForceDB bool
	Clock   func() time.Time
	Log     logx.Logger
}

func NewService(cfg Config) *Service {
	log := cfg.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		reg:      cfg.Registry,
		source:   cfg.Source,
		detector: NewDetector(NewMemory(), log),
		disp:     NewDispatcher(cfg.Registry, cfg.Push, cfg.Chat, cfg.Store, cfg.Mirror, log),
		store:    cfg.Store,
		mirror:   cfg.Mirror,
		forceDB:  cfg.ForceDB,
		clock:    clock,
		log:      log,
	}
}

// RunCycle is the scheduled entry point: prune the dedupe memory, then for
// every queue with subscribers fetch the timeline, detect an upcoming
// transition and fan the notification out. A failing queue is logged and
// skipped; it never aborts the cycle.
func (s *Service) RunCycle(ctx context.Context) {
	now := s.clock()
	s.detector.Prune(now)

	codes := s.reg.QueuesWithSubscribers()
	if len(codes) == 0 {
		s.log.Debug("notify cycle: no subscribers")
		return
	}

	for _, code := range codes {
		if ctx.Err() != nil {
			return
		}
		tl, err := s.source.Timeline(ctx, code)
		if err != nil {
			s.log.Warn("timeline fetch failed, queue skipped",
				logx.String("queue", code.Label()), logx.Err(err))
			continue
		}
		if len(tl) == 0 {
			s.log.Debug("no timeline data", logx.String("queue", code.Label()))
			continue
		}

		ev, ok := s.detector.Detect(now, code, tl)
		if !ok {
			continue
		}
		res := s.disp.Dispatch(ctx, code, ev.Message())
		s.log.Info("outage notification dispatched",
			logx.String("queue", code.Label()),
			logx.Int("hour", ev.Hour),
			logx.Int("minute", ev.Minute),
			logx.Int("push_sent", res.PushSent),
			logx.Int("push_errors", len(res.PushErrors)),
			logx.Int("chat_sent", res.ChatSent),
			logx.Int("chat_errors", len(res.ChatErrors)))
	}
}

// Broadcast sends an operator message, bypassing the detector. With a queue
// it reaches that queue's subscribers, without one it reaches everyone.
func (s *Service) Broadcast(ctx context.Context, title, body string, code *queue.Code) Result {
	msg := Message{Title: title, Body: body}
	if code != nil {
		return s.disp.Dispatch(ctx, *code, msg)
	}
	return s.disp.DispatchAll(ctx, msg)
}

// ---- Subscribe / unsubscribe ----

// SubscribePush normalizes and remembers a push subscription, then syncs
// the store and the mirror. Returns false for an unparseable payload.
func (s *Service) SubscribePush(ctx context.Context, raw any) (registry.PushSub, bool) {
	sub, ok := s.reg.NormalizePush(raw)
	if !ok {
		return registry.PushSub{}, false
	}
	s.reg.RememberPush(sub)
	if s.store != nil {
		if err := s.store.SavePushSub(ctx, sub); err != nil {
			s.log.Warn("store save push subscription", logx.Err(err))
		}
	}
	if s.mirror != nil {
		s.mirror.SavePushSubs(ctx, s.reg.PushAll())
	}
	return sub, true
}

// UnsubscribePush removes the subscription with the given endpoint.
func (s *Service) UnsubscribePush(ctx context.Context, endpoint string) bool {
	removed := s.reg.ForgetPush(endpoint)
	if s.store != nil {
		if _, err := s.store.DeletePushSub(ctx, endpoint); err != nil {
			s.log.Warn("store delete push subscription", logx.Err(err))
		}
	}
	if removed && s.mirror != nil {
		s.mirror.SavePushSubs(ctx, s.reg.PushAll())
	}
	return removed
}

// SubscribeChat normalizes and remembers a chat subscriber.
func (s *Service) SubscribeChat(ctx context.Context, raw any) (registry.ChatSub, bool) {
	sub, ok := s.reg.NormalizeChat(raw)
	if !ok {
		return registry.ChatSub{}, false
	}
	s.reg.RememberChat(sub)
	if s.store != nil {
		if err := s.store.UpsertChatSub(ctx, sub); err != nil {
			s.log.Warn("store upsert chat subscriber", logx.Err(err))
		}
	}
	if s.mirror != nil {
		s.mirror.SaveChatSub(ctx, sub)
	}
	return sub, true
}

// UnsubscribeChat removes the chat subscriber with the given id.
func (s *Service) UnsubscribeChat(ctx context.Context, id int64) bool {
	removed := s.reg.ForgetChat(id)
	if s.store != nil {
		if _, err := s.store.DeleteChatSub(ctx, id); err != nil {
			s.log.Warn("store delete chat subscriber", logx.Err(err))
		}
	}
	if s.mirror != nil {
		s.mirror.DeleteChatSub(ctx, id)
	}
	return removed
}

// ChatSubscription reports the queue a chat recipient is subscribed to.
func (s *Service) ChatSubscription(id int64) (queue.Code, bool) {
	for _, sub := range s.reg.ChatAll() {
		if sub.ID == id {
			return sub.Queue, true
		}
	}
	return 0, false
}

// ---- Startup load ----

// Load warms the registry from the mirror, falling back to the durable
// store per channel when the mirror has nothing. With ForceDB set the
// mirror is skipped and the store rows win.
func (s *Service) Load(ctx context.Context) {
	s.loadPush(ctx)
	s.loadChat(ctx)
	pushN, chatN := s.reg.Counts()
	s.log.Info("subscribers loaded",
		logx.Int("push", pushN), logx.Int("chat", chatN))
}

func (s *Service) loadPush(ctx context.Context) {
	if s.mirror != nil && !s.forceDB {
		raws, err := s.mirror.LoadPush(ctx)
		if err != nil {
			s.log.Warn("mirror load push", logx.Err(err))
		} else if len(raws) > 0 {
			s.reg.ReplaceAllPush(anySlice(raws))
			return
		}
	}
	if s.store == nil {
		return
	}
	subs, err := s.store.ListPushSubs(ctx)
	if err != nil {
		s.log.Warn("store list push subscriptions", logx.Err(err))
		return
	}
	s.reg.ReplaceAllPush(anySliceTyped(subs))
	if s.mirror != nil && len(subs) > 0 {
		s.mirror.SavePushSubs(ctx, s.reg.PushAll())
	}
}

func (s *Service) loadChat(ctx context.Context) {
	if s.mirror != nil && !s.forceDB {
		raws, err := s.mirror.LoadChat(ctx)
		if err != nil {
			s.log.Warn("mirror load chat", logx.Err(err))
		} else if len(raws) > 0 {
			s.reg.ReplaceAllChat(anySlice(raws))
			return
		}
	}
	if s.store == nil {
		return
	}
	subs, err := s.store.ListChatSubs(ctx)
	if err != nil {
		s.log.Warn("store list chat subscribers", logx.Err(err))
		return
	}
	s.reg.ReplaceAllChat(anySliceTyped(subs))
	if s.mirror != nil && len(subs) > 0 {
		s.mirror.SaveChatSubs(ctx, s.reg.ChatAll())
	}
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func anySliceTyped[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
