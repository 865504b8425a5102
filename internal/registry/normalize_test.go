package registry

import (
	"testing"

	"likhtar/internal/queue"
	logx "likhtar/pkg/logx"
)

func TestNormalizePushShapes(t *testing.T) {
	t.Parallel()

	r := New(queue.DefaultCode, logx.Nop())

	cases := []struct {
		name string
		in   any
		want PushSub
		ok   bool
	}{
		{
			name: "browser shape with nested keys",
			in: map[string]any{
				"endpoint": "ep",
				"keys":     map[string]any{"p256dh": "p", "auth": "a"},
				"queue":    "3.2",
			},
			want: PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: 32},
			ok:   true,
		},
		{
			name: "flat mirror shape",
			in:   `{"endpoint":"ep","p256dh":"p","auth":"a","queue":32}`,
			want: PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: 32},
			ok:   true,
		},
		{
			name: "legacy queue_id field",
			in:   map[string]any{"endpoint": "ep", "p256dh": "p", "auth": "a", "queue_id": 61},
			want: PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: 61},
			ok:   true,
		},
		{
			name: "site shape with subscription envelope",
			in: map[string]any{
				"queue": "3.2",
				"subscription": map[string]any{
					"endpoint": "ep",
					"keys":     map[string]any{"p256dh": "p", "auth": "a"},
				},
			},
			want: PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: 32},
			ok:   true,
		},
		{
			name: "subscription envelope without queue",
			in: map[string]any{
				"subscription": map[string]any{
					"endpoint": "ep",
					"keys":     map[string]any{"p256dh": "p", "auth": "a"},
				},
			},
			want: PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: queue.DefaultCode},
			ok:   true,
		},
		{
			name: "missing queue falls back to default",
			in:   map[string]any{"endpoint": "ep", "p256dh": "p", "auth": "a"},
			want: PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: queue.DefaultCode},
			ok:   true,
		},
		{
			name: "bytes carrier",
			in:   []byte(`{"endpoint":"ep","p256dh":"p","auth":"a","queue":"1.2"}`),
			want: PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: 12},
			ok:   true,
		},
		{
			name: "typed pointer",
			in:   &PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: 32},
			want: PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: 32},
			ok:   true,
		},
		{name: "missing secrets", in: map[string]any{"endpoint": "ep"}, ok: false},
		{name: "empty string", in: "   ", ok: false},
		{name: "broken json", in: `{"endpoint"`, ok: false},
		{name: "nil", in: nil, ok: false},
		{name: "nil pointer", in: (*PushSub)(nil), ok: false},
		{name: "wrong type", in: 42, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := r.NormalizePush(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNormalizeChatShapes(t *testing.T) {
	t.Parallel()

	r := New(queue.DefaultCode, logx.Nop())

	cases := []struct {
		name string
		in   any
		want ChatSub
		ok   bool
	}{
		{name: "typed", in: ChatSub{ID: 5, Queue: 32}, want: ChatSub{ID: 5, Queue: 32}, ok: true},
		{name: "json id and label queue", in: `{"id": 5, "queue": "3.2"}`, want: ChatSub{ID: 5, Queue: 32}, ok: true},
		{name: "legacy tg_id and queue_id", in: `{"tg_id": 6, "queue_id": 61}`, want: ChatSub{ID: 6, Queue: 61}, ok: true},
		{name: "string id", in: map[string]any{"id": "7", "queue": 11}, want: ChatSub{ID: 7, Queue: 11}, ok: true},
		{name: "map shape", in: map[string]any{"id": 9, "queue": "6.1"}, want: ChatSub{ID: 9, Queue: 61}, ok: true},
		{name: "map with legacy tg_id", in: map[string]any{"tg_id": float64(10)}, want: ChatSub{ID: 10, Queue: queue.DefaultCode}, ok: true},
		{name: "invalid queue falls back", in: ChatSub{ID: 8, Queue: 99}, want: ChatSub{ID: 8, Queue: queue.DefaultCode}, ok: true},
		{name: "zero id", in: ChatSub{Queue: 32}, ok: false},
		{name: "no id field", in: map[string]any{"queue": "3.2"}, ok: false},
		{name: "broken json", in: "{", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := r.NormalizeChat(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}
