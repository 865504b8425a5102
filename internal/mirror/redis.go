// Package mirror keeps a Redis copy of the subscriber registry so restarts
// can warm up without touching the relational store. It is strictly a
// best-effort replica: every call is synchronize-after-mutation and a
// failure disables the mirror instead of surfacing to the caller's flow.
package mirror

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"

	"likhtar/internal/registry"
	logx "likhtar/pkg/logx"
)

// Key layout matches the historical deployment so existing data stays valid:
// a list of push subscription JSON blobs and a hash chat_id -> JSON blob.
const (
	pushKey = "subscriptions"
	chatKey = "tg_subscriptions"
)

type Mirror struct {
	mu     sync.Mutex
	client *redis.Client
	log    logx.Logger
}

// Open connects to Redis. A missing URL or failed ping yields a disabled
// mirror (never an error): the registry works the same without it.
func Open(ctx context.Context, url string, log logx.Logger) *Mirror {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Mirror{log: log}

	if strings.TrimSpace(url) == "" {
		return m
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("invalid redis url; mirror disabled", logx.Err(err))
		return m
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable; mirror disabled", logx.Err(err))
		_ = client.Close()
		return m
	}
	m.client = client
	log.Info("redis mirror enabled")
	return m
}

func (m *Mirror) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

// disable drops the client after a failure; later calls become no-ops.
func (m *Mirror) disable(err error) {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.mu.Unlock()
	if c != nil {
		_ = c.Close()
		m.log.Warn("redis sync failed; mirror disabled", logx.Err(err))
	}
}

func (m *Mirror) get() *redis.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

func (m *Mirror) Close() error {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.mu.Unlock()
	if c != nil {
		return c.Close()
	}
	return nil
}

// SavePushSubs replaces the mirrored push subscription list.
func (m *Mirror) SavePushSubs(ctx context.Context, subs []registry.PushSub) {
	c := m.get()
	if c == nil {
		return
	}
	pipe := c.TxPipeline()
	pipe.Del(ctx, pushKey)
	if len(subs) > 0 {
		items := make([]interface{}, 0, len(subs))
		for _, s := range subs {
			b, err := json.Marshal(s)
			if err != nil {
				continue
			}
			items = append(items, b)
		}
		if len(items) > 0 {
			pipe.RPush(ctx, pushKey, items...)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		m.disable(err)
	}
}

// SaveChatSubs replaces the mirrored chat subscriber hash.
func (m *Mirror) SaveChatSubs(ctx context.Context, subs []registry.ChatSub) {
	c := m.get()
	if c == nil {
		return
	}
	pipe := c.TxPipeline()
	pipe.Del(ctx, chatKey)
	if len(subs) > 0 {
		fields := make(map[string]interface{}, len(subs))
		for _, s := range subs {
			b, err := json.Marshal(s)
			if err != nil {
				continue
			}
			fields[strconv.FormatInt(s.ID, 10)] = b
		}
		if len(fields) > 0 {
			pipe.HSet(ctx, chatKey, fields)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		m.disable(err)
	}
}

// SaveChatSub upserts a single chat subscriber in the hash.
func (m *Mirror) SaveChatSub(ctx context.Context, s registry.ChatSub) {
	c := m.get()
	if c == nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.HSet(ctx, chatKey, strconv.FormatInt(s.ID, 10), b).Err(); err != nil {
		m.disable(err)
	}
}

// DeleteChatSub removes a single chat subscriber from the hash.
func (m *Mirror) DeleteChatSub(ctx context.Context, id int64) {
	c := m.get()
	if c == nil {
		return
	}
	if err := c.HDel(ctx, chatKey, strconv.FormatInt(id, 10)).Err(); err != nil {
		m.disable(err)
	}
}

// LoadPush returns the raw mirrored push records (JSON strings).
func (m *Mirror) LoadPush(ctx context.Context) ([]string, error) {
	c := m.get()
	if c == nil {
		return nil, nil
	}
	return c.LRange(ctx, pushKey, 0, -1).Result()
}

// LoadChat returns the raw mirrored chat records (JSON strings).
func (m *Mirror) LoadChat(ctx context.Context) ([]string, error) {
	c := m.get()
	if c == nil {
		return nil, nil
	}
	return c.HVals(ctx, chatKey).Result()
}
