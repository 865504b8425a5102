// Package schedule models the daily outage timeline of a queue and the
// upstream page it is scraped from.
package schedule

// Timeline is one day of outage slots for one queue.
// A slot value of 1 means power OFF, 0 means power ON.
//
// Granularity is carried by length: 48+ entries are half-hourly (two per
// hour), 24..47 hourly, and shorter timelines degrade via proportional
// indexing. Callers never index a Timeline directly; StateAt hides the math.
type Timeline []int

// State is the power state of a queue during one wall-clock hour.
type State int

const (
	StateUnknown State = iota
	StateOn
	StateOff
)

func (s State) String() string {
	switch s {
	case StateOn:
		return "on"
	case StateOff:
		return "off"
	default:
		return "unknown"
	}
}

const halfHourly = 48

// StateAt resolves the power state for a wall-clock hour.
//
// Half-hourly timelines answer OFF if either half of the hour is an outage
// slot (any overlap counts). Hourly timelines index directly, clamped to the
// last slot. An hour outside the day, a negative hour or an empty timeline
// is unknown, never a guess.
func (t Timeline) StateAt(hour int) State {
	if len(t) == 0 || hour < 0 {
		return StateUnknown
	}

	if len(t) >= halfHourly {
		if hour >= 24 || hour*2 >= len(t) {
			return StateUnknown
		}
		start := hour * 2
		end := start + 2
		if end > len(t) {
			end = len(t)
		}
		for _, v := range t[start:end] {
			if v != 0 {
				return StateOff
			}
		}
		return StateOn
	}

	if len(t) >= 24 {
		idx := hour
		if idx > len(t)-1 {
			idx = len(t) - 1
		}
		if t[idx] != 0 {
			return StateOff
		}
		return StateOn
	}

	// Ambiguous short timeline: assume two slots per hour, clamped.
	idx := hour * 2
	if idx > len(t)-1 {
		idx = len(t) - 1
	}
	if t[idx] != 0 {
		return StateOff
	}
	return StateOn
}

// HalfHourly reports whether the timeline carries two slots per hour.
func (t Timeline) HalfHourly() bool { return len(t) >= halfHourly }

// SlotAt returns the raw slot value (0/1) clamped into range, or -1 when the
// timeline is empty.
func (t Timeline) SlotAt(i int) int {
	if len(t) == 0 || i < 0 {
		return -1
	}
	if i > len(t)-1 {
		i = len(t) - 1
	}
	if t[i] != 0 {
		return 1
	}
	return 0
}
