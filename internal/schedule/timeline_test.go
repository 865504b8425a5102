package schedule

import "testing"

func halfHourlyTimeline(offSlots ...int) Timeline {
	t := make(Timeline, 48)
	for _, i := range offSlots {
		t[i] = 1
	}
	return t
}

func TestStateAtHalfHourly(t *testing.T) {
	t.Parallel()

	tl := halfHourlyTimeline(20, 21, 31)

	cases := []struct {
		hour int
		want State
	}{
		{0, StateOn},
		{9, StateOn},
		{10, StateOff},  // both halves off
		{15, StateOff},  // second half off counts as off
		{16, StateOn},
		{23, StateOn},
		{24, StateUnknown},
		{-1, StateUnknown},
	}
	for _, tc := range cases {
		if got := tl.StateAt(tc.hour); got != tc.want {
			t.Fatalf("StateAt(%d) = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestStateAtHalfHourlyEitherSlotCountsAsOff(t *testing.T) {
	t.Parallel()

	// OFF at hour H iff slot 2H or 2H+1 is 1.
	for off := 0; off < 48; off++ {
		tl := halfHourlyTimeline(off)
		for h := 0; h < 24; h++ {
			want := StateOn
			if off == 2*h || off == 2*h+1 {
				want = StateOff
			}
			if got := tl.StateAt(h); got != want {
				t.Fatalf("off slot %d: StateAt(%d) = %v, want %v", off, h, got, want)
			}
		}
	}
}

func TestStateAtHourly(t *testing.T) {
	t.Parallel()

	tl := make(Timeline, 24)
	tl[10] = 1
	tl[23] = 1

	if got := tl.StateAt(9); got != StateOn {
		t.Fatalf("StateAt(9) = %v, want on", got)
	}
	if got := tl.StateAt(10); got != StateOff {
		t.Fatalf("StateAt(10) = %v, want off", got)
	}
	// Hours past the end clamp to the last slot.
	if got := tl.StateAt(30); got != StateOff {
		t.Fatalf("StateAt(30) = %v, want off (clamped)", got)
	}
}

func TestStateAtShortTimeline(t *testing.T) {
	t.Parallel()

	// Shorter than a day: proportional two-per-hour indexing, clamped.
	tl := Timeline{0, 0, 1, 1}
	if got := tl.StateAt(0); got != StateOn {
		t.Fatalf("StateAt(0) = %v, want on", got)
	}
	if got := tl.StateAt(1); got != StateOff {
		t.Fatalf("StateAt(1) = %v, want off", got)
	}
	if got := tl.StateAt(12); got != StateOff {
		t.Fatalf("StateAt(12) = %v, want off (clamped)", got)
	}
}

func TestStateAtEmpty(t *testing.T) {
	t.Parallel()

	var tl Timeline
	if got := tl.StateAt(5); got != StateUnknown {
		t.Fatalf("StateAt on empty = %v, want unknown", got)
	}
}

func TestSlotAt(t *testing.T) {
	t.Parallel()

	tl := Timeline{0, 1, 0}
	if got := tl.SlotAt(1); got != 1 {
		t.Fatalf("SlotAt(1) = %d, want 1", got)
	}
	if got := tl.SlotAt(10); got != 0 {
		t.Fatalf("SlotAt(10) = %d, want 0 (clamped)", got)
	}
	if got := tl.SlotAt(-1); got != -1 {
		t.Fatalf("SlotAt(-1) = %d, want -1", got)
	}
	if got := Timeline(nil).SlotAt(0); got != -1 {
		t.Fatalf("SlotAt on empty = %d, want -1", got)
	}
}

func TestHalfHourlyFlag(t *testing.T) {
	t.Parallel()

	if !make(Timeline, 48).HalfHourly() {
		t.Fatal("48 slots should be half-hourly")
	}
	if make(Timeline, 47).HalfHourly() {
		t.Fatal("47 slots should not be half-hourly")
	}
}
