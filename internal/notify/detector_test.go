package notify

import (
	"testing"
	"time"

	"likhtar/internal/schedule"
	logx "likhtar/pkg/logx"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return ts
}

func outageFrom(slot int) schedule.Timeline {
	tl := make(schedule.Timeline, 48)
	for i := slot; i < 48; i++ {
		tl[i] = 1
	}
	return tl
}

func TestDetectHalfHourlyUpcomingOutage(t *testing.T) {
	t.Parallel()

	// Power on for slots 0..9, off from slot 10 (05:00).
	d := NewDetector(NewMemory(), logx.Nop())
	tl := outageFrom(10)

	// 04:15 is slot 8; slot 10 is inside the look-ahead window.
	ev, ok := d.Detect(at(t, "2026-08-28 04:15"), 32, tl)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Hour != 5 || ev.Minute != 0 {
		t.Fatalf("event at %02d:%02d, want 05:00", ev.Hour, ev.Minute)
	}
	if ev.Queue != 32 {
		t.Fatalf("event queue %v, want 3.2", ev.Queue)
	}
}

func TestDetectJustBeforeEdge(t *testing.T) {
	t.Parallel()

	// On until 10:00, off for the rest of the day.
	tl := make(schedule.Timeline, 48)
	for i := 20; i < 48; i++ {
		tl[i] = 1
	}

	d := NewDetector(NewMemory(), logx.Nop())
	now := at(t, "2026-08-28 09:15") // slot 18; window covers 19, 20

	ev, ok := d.Detect(now, 32, tl)
	if !ok {
		t.Fatal("expected event for hour 10")
	}
	if ev.Hour != 10 || ev.Minute != 0 {
		t.Fatalf("event at %02d:%02d, want 10:00", ev.Hour, ev.Minute)
	}

	// A later poll in the same half hour must not fire again.
	if _, ok := d.Detect(at(t, "2026-08-28 09:20"), 32, tl); ok {
		t.Fatal("duplicate event fired")
	}
}

func TestDetectNoTransitionInsideWindow(t *testing.T) {
	t.Parallel()

	d := NewDetector(NewMemory(), logx.Nop())
	tl := outageFrom(30)

	// 10:00 is slot 20; window covers slots 21, 22, all on.
	if _, ok := d.Detect(at(t, "2026-08-28 10:00"), 11, tl); ok {
		t.Fatal("event fired outside look-ahead window")
	}
}

func TestDetectAlreadyOff(t *testing.T) {
	t.Parallel()

	d := NewDetector(NewMemory(), logx.Nop())
	tl := outageFrom(0)

	if _, ok := d.Detect(at(t, "2026-08-28 12:00"), 11, tl); ok {
		t.Fatal("event fired while already off")
	}
}

func TestDetectDistinctQueuesShareNothing(t *testing.T) {
	t.Parallel()

	d := NewDetector(NewMemory(), logx.Nop())
	tl := outageFrom(10)
	now := at(t, "2026-08-28 04:15")

	if _, ok := d.Detect(now, 11, tl); !ok {
		t.Fatal("queue 1.1 should fire")
	}
	if _, ok := d.Detect(now, 12, tl); !ok {
		t.Fatal("queue 1.2 should fire independently")
	}
	if _, ok := d.Detect(now, 11, tl); ok {
		t.Fatal("queue 1.1 fired twice")
	}
}

func TestDetectHourly(t *testing.T) {
	t.Parallel()

	tl := make(schedule.Timeline, 24)
	tl[11] = 1

	d := NewDetector(NewMemory(), logx.Nop())
	ev, ok := d.Detect(at(t, "2026-08-28 10:40"), 41, tl)
	if !ok {
		t.Fatal("expected hourly event")
	}
	if ev.Hour != 11 || ev.Minute != 0 {
		t.Fatalf("event at %02d:%02d, want 11:00", ev.Hour, ev.Minute)
	}

	if _, ok := d.Detect(at(t, "2026-08-28 10:55"), 41, tl); ok {
		t.Fatal("hourly duplicate fired")
	}

	// Hour 23 has no next hour to inspect.
	tlLate := make(schedule.Timeline, 24)
	if _, ok := d.Detect(at(t, "2026-08-28 23:10"), 41, tlLate); ok {
		t.Fatal("fired past end of day")
	}
}

func TestMemoryPruneAcrossDates(t *testing.T) {
	t.Parallel()

	d := NewDetector(NewMemory(), logx.Nop())
	tl := outageFrom(10)

	day1 := at(t, "2026-08-28 04:15")
	if _, ok := d.Detect(day1, 32, tl); !ok {
		t.Fatal("day one should fire")
	}

	// Next day, same schedule: pruning clears yesterday's key so the same
	// transition fires again.
	day2 := at(t, "2026-08-29 04:15")
	d.Prune(day2)
	if _, ok := d.Detect(day2, 32, tl); !ok {
		t.Fatal("same transition should fire on a new date")
	}
}

func TestMemoryPruneBoundsGrowth(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Mark("2026-08-27-q1.1-10:00")
	m.Mark("2026-08-27-q3.2-11:30")
	m.Mark("2026-08-28-q1.1-10:00")

	m.Prune(at(t, "2026-08-28 00:05"))
	if m.Len() != 1 {
		t.Fatalf("after prune %d keys, want 1", m.Len())
	}
	if !m.Seen("2026-08-28-q1.1-10:00") {
		t.Fatal("current-date key must survive pruning")
	}
	if m.Seen("2026-08-27-q1.1-10:00") {
		t.Fatal("stale key survived pruning")
	}
}

func TestDetectEmptyTimeline(t *testing.T) {
	t.Parallel()

	d := NewDetector(NewMemory(), logx.Nop())
	if _, ok := d.Detect(at(t, "2026-08-28 10:00"), 11, nil); ok {
		t.Fatal("empty timeline fired")
	}
}
