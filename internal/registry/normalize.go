package registry

import (
	"encoding/json"
	"strconv"
	"strings"

	"likhtar/internal/queue"
)

// Subscriber records reach the registry in several historical shapes: typed
// records from the store, generic maps decoded from request bodies, and JSON
// strings from the Redis mirror. Normalization accepts all of them and
// produces exactly one canonical record, or reports failure for the caller
// to drop and log.

// NormalizePush coerces a raw value into a canonical PushSub.
func (r *Registry) NormalizePush(raw any) (PushSub, bool) {
	switch v := raw.(type) {
	case nil:
		return PushSub{}, false
	case PushSub:
		return r.sanitizePush(v)
	case *PushSub:
		if v == nil {
			return PushSub{}, false
		}
		return r.sanitizePush(*v)
	case string:
		if strings.TrimSpace(v) == "" {
			return PushSub{}, false
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return PushSub{}, false
		}
		return r.pushFromMap(m)
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(v, &m); err != nil {
			return PushSub{}, false
		}
		return r.pushFromMap(m)
	case map[string]any:
		return r.pushFromMap(v)
	default:
		return PushSub{}, false
	}
}

func (r *Registry) sanitizePush(s PushSub) (PushSub, bool) {
	if s.Endpoint == "" || s.P256dh == "" || s.Auth == "" {
		return PushSub{}, false
	}
	if !s.Queue.Valid() {
		s.Queue = r.defQueue
	}
	return s, true
}

// pushFromMap accepts the browser PushSubscription JSON shape
// ({endpoint, keys:{p256dh, auth}}), the site's wrapped request shape
// ({queue, subscription:{endpoint, keys:{...}}}) and the flat store/mirror
// shape ({endpoint, p256dh, auth}); queue may appear as "queue" or "queue_id".
func (r *Registry) pushFromMap(m map[string]any) (PushSub, bool) {
	// The site wraps the subscription and carries the queue outside it.
	queueSrc := m
	if wrapped, ok := m["subscription"].(map[string]any); ok {
		m = wrapped
	}
	s := PushSub{
		Endpoint: stringField(m, "endpoint"),
		P256dh:   stringField(m, "p256dh"),
		Auth:     stringField(m, "auth"),
	}
	if keys, ok := m["keys"].(map[string]any); ok {
		if s.P256dh == "" {
			s.P256dh = stringField(keys, "p256dh")
		}
		if s.Auth == "" {
			s.Auth = stringField(keys, "auth")
		}
	}
	s.Queue = r.parseQueueField(queueSrc)
	return r.sanitizePush(s)
}

// NormalizeChat coerces a raw value into a canonical ChatSub.
// The recipient id may appear as "id" or the legacy "tg_id".
func (r *Registry) NormalizeChat(raw any) (ChatSub, bool) {
	switch v := raw.(type) {
	case nil:
		return ChatSub{}, false
	case ChatSub:
		return r.sanitizeChat(v)
	case *ChatSub:
		if v == nil {
			return ChatSub{}, false
		}
		return r.sanitizeChat(*v)
	case string:
		if strings.TrimSpace(v) == "" {
			return ChatSub{}, false
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return ChatSub{}, false
		}
		return r.chatFromMap(m)
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(v, &m); err != nil {
			return ChatSub{}, false
		}
		return r.chatFromMap(m)
	case map[string]any:
		return r.chatFromMap(v)
	default:
		return ChatSub{}, false
	}
}

func (r *Registry) sanitizeChat(s ChatSub) (ChatSub, bool) {
	if s.ID == 0 {
		return ChatSub{}, false
	}
	if !s.Queue.Valid() {
		s.Queue = r.defQueue
	}
	return s, true
}

func (r *Registry) chatFromMap(m map[string]any) (ChatSub, bool) {
	id, ok := int64Field(m, "id")
	if !ok {
		id, ok = int64Field(m, "tg_id")
	}
	if !ok {
		return ChatSub{}, false
	}
	return r.sanitizeChat(ChatSub{ID: id, Queue: r.parseQueueField(m)})
}

// parseQueueField reads the queue from "queue" or the legacy "queue_id".
func (r *Registry) parseQueueField(m map[string]any) queue.Code {
	raw, ok := m["queue"]
	if !ok || raw == nil {
		raw = m["queue_id"]
	}
	return queue.Parse(raw, r.defQueue)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func int64Field(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
