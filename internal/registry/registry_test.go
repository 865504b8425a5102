package registry

import (
	"testing"

	"likhtar/internal/queue"
	logx "likhtar/pkg/logx"
)

func testPush(endpoint string, code queue.Code) PushSub {
	return PushSub{Endpoint: endpoint, P256dh: "p", Auth: "a", Queue: code}
}

func TestRememberPushReplacesByEndpoint(t *testing.T) {
	t.Parallel()

	r := New(queue.DefaultCode, logx.Nop())
	r.RememberPush(testPush("ep", 11))
	r.RememberPush(testPush("ep", 32))

	if n := len(r.PushByQueue(11)); n != 0 {
		t.Fatalf("old queue still holds %d records", n)
	}
	got, ok := r.FindPush("ep")
	if !ok || got.Queue != 32 {
		t.Fatalf("FindPush = %+v ok=%v, want queue 3.2", got, ok)
	}
	if pushN, _ := r.Counts(); pushN != 1 {
		t.Fatalf("push count %d, want 1", pushN)
	}
}

func TestRememberPushInvalidQueueFallsBack(t *testing.T) {
	t.Parallel()

	r := New(41, logx.Nop())
	r.RememberPush(PushSub{Endpoint: "ep", P256dh: "p", Auth: "a", Queue: 99})
	got, _ := r.FindPush("ep")
	if got.Queue != 41 {
		t.Fatalf("queue = %v, want default 4.1", got.Queue)
	}
}

func TestForgetPush(t *testing.T) {
	t.Parallel()

	r := New(queue.DefaultCode, logx.Nop())
	r.RememberPush(testPush("ep", 11))

	if !r.ForgetPush("ep") {
		t.Fatal("ForgetPush returned false for existing record")
	}
	if r.ForgetPush("ep") {
		t.Fatal("ForgetPush returned true for missing record")
	}
	if r.ForgetPush("") {
		t.Fatal("ForgetPush on empty endpoint")
	}
}

func TestRememberChatOneQueuePerRecipient(t *testing.T) {
	t.Parallel()

	r := New(queue.DefaultCode, logx.Nop())
	r.RememberChat(ChatSub{ID: 7, Queue: 11})
	r.RememberChat(ChatSub{ID: 7, Queue: 32})

	if n := len(r.ChatByQueue(11)); n != 0 {
		t.Fatalf("recipient still in old queue: %d", n)
	}
	subs := r.ChatByQueue(32)
	if len(subs) != 1 || subs[0].ID != 7 {
		t.Fatalf("ChatByQueue(32) = %+v", subs)
	}
}

func TestQueuesWithSubscribersUnionSorted(t *testing.T) {
	t.Parallel()

	r := New(queue.DefaultCode, logx.Nop())
	r.RememberPush(testPush("ep", 61))
	r.RememberChat(ChatSub{ID: 1, Queue: 12})
	r.RememberChat(ChatSub{ID: 2, Queue: 61})

	got := r.QueuesWithSubscribers()
	want := []queue.Code{12, 61}
	if len(got) != len(want) {
		t.Fatalf("queues = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queues = %v, want %v", got, want)
		}
	}

	// Emptied buckets disappear from the work list.
	r.ForgetChat(1)
	got = r.QueuesWithSubscribers()
	if len(got) != 1 || got[0] != 61 {
		t.Fatalf("queues after forget = %v, want [61]", got)
	}
}

func TestReplaceAllPushDropsUnparseable(t *testing.T) {
	t.Parallel()

	r := New(queue.DefaultCode, logx.Nop())
	r.RememberPush(testPush("stale", 11))

	r.ReplaceAllPush([]any{
		testPush("ep-1", 32),
		`{"endpoint":"ep-2","p256dh":"p","auth":"a","queue":"6.1"}`,
		`{"broken`,
		map[string]any{"queue": "3.2"}, // no endpoint
		nil,
	})

	if _, ok := r.FindPush("stale"); ok {
		t.Fatal("replace kept a stale record")
	}
	if _, ok := r.FindPush("ep-1"); !ok {
		t.Fatal("typed record lost")
	}
	got, ok := r.FindPush("ep-2")
	if !ok || got.Queue != 61 {
		t.Fatalf("JSON record = %+v ok=%v, want queue 6.1", got, ok)
	}
	if pushN, _ := r.Counts(); pushN != 2 {
		t.Fatalf("push count %d, want 2", pushN)
	}
}

func TestReplaceAllChat(t *testing.T) {
	t.Parallel()

	r := New(queue.DefaultCode, logx.Nop())
	r.ReplaceAllChat([]any{
		ChatSub{ID: 1, Queue: 11},
		`{"tg_id": 2, "queue_id": 32}`,
		`{"id": "3", "queue": "6.2"}`,
		`{"queue": "1.1"}`, // no id
	})

	if n := len(r.ChatAll()); n != 3 {
		t.Fatalf("chat count %d, want 3", n)
	}
	subs := r.ChatByQueue(62)
	if len(subs) != 1 || subs[0].ID != 3 {
		t.Fatalf("string id record = %+v", subs)
	}
	if len(r.ChatByQueue(32)) != 1 {
		t.Fatal("legacy tg_id/queue_id record lost")
	}
}
