package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"likhtar/internal/notify"
	"likhtar/internal/queue"
	"likhtar/internal/registry"
	"likhtar/internal/schedule"
	logx "likhtar/pkg/logx"
)

// Notifier is the slice of the notify service the HTTP surface needs.
type Notifier interface {
	SubscribePush(ctx context.Context, raw any) (registry.PushSub, bool)
	UnsubscribePush(ctx context.Context, endpoint string) bool
	Broadcast(ctx context.Context, title, body string, code *queue.Code) notify.Result
}

// Handler carries the web subscription and broadcast endpoints.
type Handler struct {
	svc       Notifier
	reg       *registry.Registry
	cache     *schedule.Cache
	publicKey string
	password  string
	log       logx.Logger
}

func NewHandler(svc Notifier, reg *registry.Registry, cache *schedule.Cache, publicKey, password string, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{
		svc:       svc,
		reg:       reg,
		cache:     cache,
		publicKey: publicKey,
		password:  password,
		log:       log,
	}
}

// VAPIDPublicKey hands browsers the key they need to subscribe.
func (h *Handler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

// Subscribe accepts a browser PushSubscription payload, with an optional
// queue field in any of its historical encodings.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sub, ok := h.svc.SubscribePush(r.Context(), raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subscription payload")
		return
	}
	h.log.Info("push subscriber added", logx.String("queue", sub.Queue.Label()))
	writeJSON(w, http.StatusCreated, map[string]string{"queue": sub.Queue.Label()})
}

// Unsubscribe removes a push subscription by endpoint. The endpoint may be
// top-level or inside a subscription envelope, matching what the site sends.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Endpoint     string `json:"endpoint"`
		Subscription struct {
			Endpoint string `json:"endpoint"`
		} `json:"subscription"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	endpoint := body.Endpoint
	if endpoint == "" {
		endpoint = body.Subscription.Endpoint
	}
	if endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	removed := h.svc.UnsubscribePush(r.Context(), endpoint)
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// Notify is the operator broadcast endpoint, gated by a shared password.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
		Title    string `json:"title"`
		Body     string `json:"body"`
		Queue    any    `json:"queue"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if h.password == "" || body.Password != h.password {
		writeError(w, http.StatusForbidden, "wrong password")
		return
	}
	if body.Title == "" || body.Body == "" {
		writeError(w, http.StatusBadRequest, "title and body are required")
		return
	}

	var target *queue.Code
	if body.Queue != nil {
		code, ok := queue.TryParse(body.Queue)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown queue")
			return
		}
		target = &code
	}

	res := h.svc.Broadcast(r.Context(), body.Title, body.Body, target)
	writeJSON(w, http.StatusOK, map[string]int{
		"push_sent":   res.PushSent,
		"push_errors": len(res.PushErrors),
		"chat_sent":   res.ChatSent,
		"chat_errors": len(res.ChatErrors),
	})
}

// Status reports subscriber totals and schedule cache freshness. With a
// queue parameter it also returns that queue's cached timeline.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	pushN, chatN := h.reg.Counts()
	queues := h.reg.QueuesWithSubscribers()
	labels := make([]string, len(queues))
	for i, q := range queues {
		labels[i] = q.Label()
	}

	out := map[string]any{
		"push_subscribers": pushN,
		"chat_subscribers": chatN,
		"queues":           labels,
	}
	if h.cache != nil {
		if at := h.cache.FetchedAt(); !at.IsZero() {
			out["schedule_fetched_at"] = at.Format(time.RFC3339)
		}
	}
	if q := r.URL.Query().Get("queue"); q != "" {
		code, ok := queue.TryParse(q)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown queue")
			return
		}
		out["queue"] = code.Label()
		if h.cache != nil {
			if tl, ok := h.cache.Get(code); ok {
				out["timeline"] = tl
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
