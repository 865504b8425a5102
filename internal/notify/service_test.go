package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"likhtar/internal/queue"
	"likhtar/internal/registry"
	"likhtar/internal/schedule"
	logx "likhtar/pkg/logx"
)

type fakeProvider struct {
	timelines map[queue.Code]schedule.Timeline
	errs      map[queue.Code]error
	calls     []queue.Code
}

func (f *fakeProvider) Timeline(_ context.Context, code queue.Code) (schedule.Timeline, error) {
	f.calls = append(f.calls, code)
	if err := f.errs[code]; err != nil {
		return nil, err
	}
	return f.timelines[code], nil
}

func fixedClock(t *testing.T, value string) func() time.Time {
	now := at(t, value)
	return func() time.Time { return now }
}

func newTestService(t *testing.T, prov *fakeProvider, pushF *fakePush, chatF *fakeChat, store *fakeStore, mir *fakeMirror, clock string) (*Service, *registry.Registry) {
	t.Helper()
	reg := registry.New(queue.DefaultCode, logx.Nop())
	svc := NewService(Config{
		Registry: reg,
		Source:   prov,
		Push:     pushF,
		Chat:     chatF,
		Store:    store,
		Mirror:   mir,
		Clock:    fixedClock(t, clock),
		Log:      logx.Nop(),
	})
	return svc, reg
}

func TestRunCycleFiresAndStaysIdempotent(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{timelines: map[queue.Code]schedule.Timeline{
		32: outageFrom(10),
	}}
	pushF := &fakePush{}
	svc, reg := newTestService(t, prov, pushF, &fakeChat{}, nil, nil, "2026-08-28 04:15")
	reg.RememberPush(pushSub("ep-1", 32))

	svc.RunCycle(context.Background())
	if len(pushF.sent) != 1 {
		t.Fatalf("first cycle sent %d, want 1", len(pushF.sent))
	}

	// Same transition, same date: second cycle is silent.
	svc.RunCycle(context.Background())
	if len(pushF.sent) != 1 {
		t.Fatalf("second cycle re-sent: %d", len(pushF.sent))
	}
}

func TestRunCycleOnlyPollsSubscribedQueues(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{timelines: map[queue.Code]schedule.Timeline{}}
	svc, reg := newTestService(t, prov, &fakePush{}, &fakeChat{}, nil, nil, "2026-08-28 04:15")
	reg.RememberPush(pushSub("ep-1", 32))
	reg.RememberChat(registry.ChatSub{ID: 5, Queue: 61})

	svc.RunCycle(context.Background())
	if len(prov.calls) != 2 {
		t.Fatalf("polled %d queues, want 2", len(prov.calls))
	}
	for _, c := range prov.calls {
		if c != 32 && c != 61 {
			t.Fatalf("polled unsubscribed queue %v", c)
		}
	}
}

func TestRunCycleIsolatesFetchFailures(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{
		timelines: map[queue.Code]schedule.Timeline{32: outageFrom(10)},
		errs:      map[queue.Code]error{11: errors.New("upstream down")},
	}
	pushF := &fakePush{}
	svc, reg := newTestService(t, prov, pushF, &fakeChat{}, nil, nil, "2026-08-28 04:15")
	reg.RememberPush(pushSub("ep-broken", 11))
	reg.RememberPush(pushSub("ep-ok", 32))

	svc.RunCycle(context.Background())
	if len(pushF.sent) != 1 || pushF.sent[0] != "ep-ok" {
		t.Fatalf("healthy queue not served: %v", pushF.sent)
	}
}

func TestSubscribePushSyncsReplicas(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	mir := &fakeMirror{}
	svc, reg := newTestService(t, &fakeProvider{}, &fakePush{}, &fakeChat{}, store, mir, "2026-08-28 04:15")

	payload := map[string]any{
		"endpoint": "ep-1",
		"keys":     map[string]any{"p256dh": "p", "auth": "a"},
		"queue":    "3.2",
	}
	sub, ok := svc.SubscribePush(context.Background(), payload)
	if !ok {
		t.Fatal("subscribe rejected valid payload")
	}
	if sub.Queue != 32 {
		t.Fatalf("queue = %v, want 3.2", sub.Queue)
	}
	if _, ok := reg.FindPush("ep-1"); !ok {
		t.Fatal("registry missing new subscription")
	}
	if len(store.pushSaved) != 1 {
		t.Fatalf("store saves: %d, want 1", len(store.pushSaved))
	}
	if len(mir.pushSaves) != 1 {
		t.Fatalf("mirror saves: %d, want 1", len(mir.pushSaves))
	}
}

func TestSubscribePushStoreFailureDoesNotRollBack(t *testing.T) {
	t.Parallel()

	store := &fakeStore{failSave: errors.New("db down")}
	svc, reg := newTestService(t, &fakeProvider{}, &fakePush{}, &fakeChat{}, store, &fakeMirror{}, "2026-08-28 04:15")

	_, ok := svc.SubscribePush(context.Background(), pushSub("ep-1", 32))
	if !ok {
		t.Fatal("subscribe failed")
	}
	// Registry keeps the record even though the replica write failed.
	if _, ok := reg.FindPush("ep-1"); !ok {
		t.Fatal("store failure rolled back the registry")
	}
}

func TestSubscribePushRejectsGarbage(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeProvider{}, &fakePush{}, &fakeChat{}, nil, nil, "2026-08-28 04:15")
	if _, ok := svc.SubscribePush(context.Background(), map[string]any{"queue": "3.2"}); ok {
		t.Fatal("accepted payload without endpoint")
	}
	if _, ok := svc.SubscribePush(context.Background(), "{broken"); ok {
		t.Fatal("accepted broken JSON")
	}
}

func TestUnsubscribeChatSyncsReplicas(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	mir := &fakeMirror{}
	svc, reg := newTestService(t, &fakeProvider{}, &fakePush{}, &fakeChat{}, store, mir, "2026-08-28 04:15")
	reg.RememberChat(registry.ChatSub{ID: 7, Queue: 32})

	if !svc.UnsubscribeChat(context.Background(), 7) {
		t.Fatal("unsubscribe reported nothing removed")
	}
	if len(store.chatDeleted) != 1 || store.chatDeleted[0] != 7 {
		t.Fatalf("store deletions: %v", store.chatDeleted)
	}
	if len(mir.chatDeletes) != 1 || mir.chatDeletes[0] != 7 {
		t.Fatalf("mirror deletions: %v", mir.chatDeletes)
	}
	if svc.UnsubscribeChat(context.Background(), 7) {
		t.Fatal("second unsubscribe should report nothing removed")
	}
}

func TestLoadPrefersMirror(t *testing.T) {
	t.Parallel()

	b, _ := json.Marshal(pushSub("ep-cached", 32))
	mir := &fakeMirror{pushRaw: []string{string(b)}}
	store := &fakeStore{pushRows: []registry.PushSub{pushSub("ep-db", 11)}}

	svc, reg := newTestService(t, &fakeProvider{}, &fakePush{}, &fakeChat{}, store, mir, "2026-08-28 04:15")
	svc.Load(context.Background())

	if _, ok := reg.FindPush("ep-cached"); !ok {
		t.Fatal("mirror record not loaded")
	}
	if _, ok := reg.FindPush("ep-db"); ok {
		t.Fatal("store consulted despite warm mirror")
	}
}

func TestLoadFallsBackToStore(t *testing.T) {
	t.Parallel()

	mir := &fakeMirror{}
	store := &fakeStore{
		pushRows: []registry.PushSub{pushSub("ep-db", 11)},
		chatRows: []registry.ChatSub{{ID: 9, Queue: 61}},
	}

	svc, reg := newTestService(t, &fakeProvider{}, &fakePush{}, &fakeChat{}, store, mir, "2026-08-28 04:15")
	svc.Load(context.Background())

	if _, ok := reg.FindPush("ep-db"); !ok {
		t.Fatal("store push record not loaded")
	}
	if len(reg.ChatByQueue(61)) != 1 {
		t.Fatal("store chat record not loaded")
	}
	// Cold mirror gets rewarmed from the store rows.
	if len(mir.pushSaves) != 1 || len(mir.chatSaves) != 1 {
		t.Fatalf("mirror rewarm: push=%d chat=%d, want 1/1", len(mir.pushSaves), len(mir.chatSaves))
	}
}

func TestLoadForceDBSkipsMirror(t *testing.T) {
	t.Parallel()

	b, _ := json.Marshal(pushSub("ep-cached", 32))
	mir := &fakeMirror{pushRaw: []string{string(b)}}
	store := &fakeStore{pushRows: []registry.PushSub{pushSub("ep-db", 11)}}

	reg := registry.New(queue.DefaultCode, logx.Nop())
	svc := NewService(Config{
		Registry: reg,
		Source:   &fakeProvider{},
		Push:     &fakePush{},
		Chat:     &fakeChat{},
		Store:    store,
		Mirror:   mir,
		ForceDB:  true,
		Clock:    fixedClock(t, "2026-08-28 04:15"),
		Log:      logx.Nop(),
	})
	svc.Load(context.Background())

	if _, ok := reg.FindPush("ep-db"); !ok {
		t.Fatal("store record not loaded")
	}
	if _, ok := reg.FindPush("ep-cached"); ok {
		t.Fatal("mirror record loaded despite store override")
	}
	if len(mir.pushSaves) != 1 {
		t.Fatalf("mirror rewarm saves = %d, want 1", len(mir.pushSaves))
	}
}

func TestBroadcastTargetsQueueOrEveryone(t *testing.T) {
	t.Parallel()

	pushF := &fakePush{}
	svc, reg := newTestService(t, &fakeProvider{}, pushF, &fakeChat{}, nil, nil, "2026-08-28 04:15")
	reg.RememberPush(pushSub("ep-1", 11))
	reg.RememberPush(pushSub("ep-2", 32))

	code := queue.Code(32)
	res := svc.Broadcast(context.Background(), "t", "b", &code)
	if res.PushSent != 1 {
		t.Fatalf("queue broadcast sent %d, want 1", res.PushSent)
	}

	res = svc.Broadcast(context.Background(), "t", "b", nil)
	if res.PushSent != 2 {
		t.Fatalf("global broadcast sent %d, want 2", res.PushSent)
	}
}
