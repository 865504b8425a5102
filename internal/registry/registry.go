// Package registry is the in-memory source of truth for subscribers on both
// delivery channels. The durable store and the Redis mirror are downstream
// replicas: every mutation happens here first, synchronization follows and
// its outcome never rolls the mutation back.
package registry

import (
	"sort"
	"sync"

	"likhtar/internal/queue"
	logx "likhtar/pkg/logx"
)

// PushSub is one web-push delivery descriptor, keyed by endpoint.
type PushSub struct {
	Endpoint string     `json:"endpoint"`
	P256dh   string     `json:"p256dh"`
	Auth     string     `json:"auth"`
	Queue    queue.Code `json:"queue"`
}

// ChatSub is one chat-bot subscriber. A recipient holds at most one queue.
type ChatSub struct {
	ID    int64      `json:"id"`
	Queue queue.Code `json:"queue"`
}

// Registry is the owned, synchronized subscriber state.
// HTTP handlers, bot handlers and the notify cycle all go through these
// operations; nothing reaches the maps directly.
type Registry struct {
	mu   sync.RWMutex
	push map[queue.Code][]PushSub
	chat map[queue.Code][]ChatSub

	defQueue queue.Code
	log      logx.Logger
}

func New(defQueue queue.Code, log logx.Logger) *Registry {
	if !defQueue.Valid() {
		defQueue = queue.DefaultCode
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		push:     map[queue.Code][]PushSub{},
		chat:     map[queue.Code][]ChatSub{},
		defQueue: defQueue,
		log:      log,
	}
}

// DefaultQueue returns the configured fallback queue.
func (r *Registry) DefaultQueue() queue.Code { return r.defQueue }

// ---- Push channel ----

// RememberPush stores a push subscription. An existing record with the same
// endpoint is replaced, whatever queue it was under (re-subscribe moves it).
func (r *Registry) RememberPush(s PushSub) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgetPushLocked(s.Endpoint)
	if !s.Queue.Valid() {
		s.Queue = r.defQueue
	}
	r.push[s.Queue] = append(r.push[s.Queue], s)
}

// ForgetPush removes the subscription with the given endpoint.
func (r *Registry) ForgetPush(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forgetPushLocked(endpoint)
}

func (r *Registry) forgetPushLocked(endpoint string) bool {
	for q, bucket := range r.push {
		for i, s := range bucket {
			if s.Endpoint == endpoint {
				r.push[q] = append(bucket[:i:i], bucket[i+1:]...)
				return true
			}
		}
	}
	return false
}

// FindPush looks a subscription up by endpoint.
func (r *Registry) FindPush(endpoint string) (PushSub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, bucket := range r.push {
		for _, s := range bucket {
			if s.Endpoint == endpoint {
				return s, true
			}
		}
	}
	return PushSub{}, false
}

// PushByQueue returns the push subscribers of one queue.
func (r *Registry) PushByQueue(code queue.Code) []PushSub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PushSub(nil), r.push[code]...)
}

// PushAll returns every push subscriber across all queues.
func (r *Registry) PushAll() []PushSub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []PushSub
	for _, bucket := range r.push {
		out = append(out, bucket...)
	}
	return out
}

// ---- Chat channel ----

// RememberChat stores a chat subscriber, displacing any prior record for the
// same recipient (one active queue per recipient).
func (r *Registry) RememberChat(s ChatSub) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgetChatLocked(s.ID)
	if !s.Queue.Valid() {
		s.Queue = r.defQueue
	}
	r.chat[s.Queue] = append(r.chat[s.Queue], s)
}

// ForgetChat removes the subscriber with the given recipient id.
func (r *Registry) ForgetChat(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forgetChatLocked(id)
}

func (r *Registry) forgetChatLocked(id int64) bool {
	removed := false
	for q, bucket := range r.chat {
		kept := bucket[:0]
		for _, s := range bucket {
			if s.ID == id {
				removed = true
				continue
			}
			kept = append(kept, s)
		}
		r.chat[q] = kept
	}
	return removed
}

// ChatByQueue returns the chat subscribers of one queue.
func (r *Registry) ChatByQueue(code queue.Code) []ChatSub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ChatSub(nil), r.chat[code]...)
}

// ChatAll returns every chat subscriber across all queues.
func (r *Registry) ChatAll() []ChatSub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ChatSub
	for _, bucket := range r.chat {
		out = append(out, bucket...)
	}
	return out
}

// ---- Bulk load ----

// ReplaceAllPush rebuilds the push channel from raw records (store rows,
// cached JSON strings, request payloads). Unparseable entries are logged
// and dropped, never fatal.
func (r *Registry) ReplaceAllPush(raws []any) {
	r.mu.Lock()
	r.push = map[queue.Code][]PushSub{}
	r.mu.Unlock()
	for _, raw := range raws {
		s, ok := r.NormalizePush(raw)
		if !ok {
			r.log.Debug("discarding unparseable push record")
			continue
		}
		r.RememberPush(s)
	}
}

// ReplaceAllChat rebuilds the chat channel from raw records.
func (r *Registry) ReplaceAllChat(raws []any) {
	r.mu.Lock()
	r.chat = map[queue.Code][]ChatSub{}
	r.mu.Unlock()
	for _, raw := range raws {
		s, ok := r.NormalizeChat(raw)
		if !ok {
			r.log.Debug("discarding unparseable chat record")
			continue
		}
		r.RememberChat(s)
	}
}

// QueuesWithSubscribers returns, in stable order, every queue that holds at
// least one subscriber on either channel. This is the poller's work list.
func (r *Registry) QueuesWithSubscribers() []queue.Code {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[queue.Code]bool{}
	for q, bucket := range r.push {
		if len(bucket) > 0 {
			seen[q] = true
		}
	}
	for q, bucket := range r.chat {
		if len(bucket) > 0 {
			seen[q] = true
		}
	}
	out := make([]queue.Code, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Counts returns subscriber totals per channel (operational logging).
func (r *Registry) Counts() (push, chat int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, bucket := range r.push {
		push += len(bucket)
	}
	for _, bucket := range r.chat {
		chat += len(bucket)
	}
	return push, chat
}
