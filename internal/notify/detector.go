package notify

import (
	"time"

	"likhtar/internal/queue"
	"likhtar/internal/schedule"
	logx "likhtar/pkg/logx"
)

// Event is one upcoming outage that must be announced.
type Event struct {
	Queue  queue.Code
	Hour   int
	Minute int
}

// Message renders the event for dispatch.
func (e Event) Message() Message {
	return UpcomingOutage(e.Queue, e.Hour, e.Minute)
}

// Detector decides whether a timeline shows an outage starting within the
// next hour and guards against re-announcing the same transition.
//
// Half-hourly timelines are scanned slot by slot inside a two-slot
// look-ahead window; hourly timelines compare the current hour against the
// next. The two paths are deliberately distinct: the granularities describe
// genuinely different schedules and do not reduce to each other.
type Detector struct {
	mem *Memory
	log logx.Logger
}

func NewDetector(mem *Memory, log logx.Logger) *Detector {
	if mem == nil {
		mem = NewMemory()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Detector{mem: mem, log: log}
}

// Prune discards dedupe keys from prior dates. Called at the start of each
// notify cycle.
func (d *Detector) Prune(now time.Time) {
	d.mem.Prune(now)
}

// Detect returns the nearest upcoming ON to OFF transition that has not been
// announced yet, if the timeline shows one within the look-ahead window.
func (d *Detector) Detect(now time.Time, code queue.Code, tl schedule.Timeline) (Event, bool) {
	if len(tl) == 0 {
		return Event{}, false
	}
	if tl.HalfHourly() {
		return d.detectHalfHourly(now, code, tl)
	}
	return d.detectHourly(now, code, tl)
}

func (d *Detector) detectHalfHourly(now time.Time, code queue.Code, tl schedule.Timeline) (Event, bool) {
	cur := now.Hour() * 2
	if now.Minute() >= 30 {
		cur++
	}
	if cur < 0 || cur >= len(tl) {
		return Event{}, false
	}

	end := cur + 2
	if end > len(tl)-1 {
		end = len(tl) - 1
	}

	prev := tl.SlotAt(cur)
	for i := cur + 1; i <= end; i++ {
		slot := tl.SlotAt(i)
		if prev == 0 && slot == 1 {
			hour := i / 2
			minute := (i % 2) * 30
			key := transitionKey(now.Format(dayFormat), code, hour, minute, true)
			if d.mem.Seen(key) {
				return Event{}, false
			}
			d.mem.Mark(key)
			d.log.Debug("transition detected",
				logx.String("queue", code.Label()),
				logx.Int("hour", hour),
				logx.Int("minute", minute))
			return Event{Queue: code, Hour: hour, Minute: minute}, true
		}
		prev = slot
	}
	return Event{}, false
}

func (d *Detector) detectHourly(now time.Time, code queue.Code, tl schedule.Timeline) (Event, bool) {
	hour := now.Hour()
	if tl.StateAt(hour) != schedule.StateOn || tl.StateAt(hour+1) != schedule.StateOff {
		return Event{}, false
	}
	key := transitionKey(now.Format(dayFormat), code, hour+1, 0, false)
	if d.mem.Seen(key) {
		return Event{}, false
	}
	d.mem.Mark(key)
	d.log.Debug("transition detected",
		logx.String("queue", code.Label()),
		logx.Int("hour", hour+1))
	return Event{Queue: code, Hour: hour + 1, Minute: 0}, true
}
