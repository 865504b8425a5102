package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"likhtar/internal/queue"
)

const dayFormat = "2006-01-02"

// transitionKey identifies one notified transition: calendar date, queue
// label and target time. Hourly detections omit the minute.
func transitionKey(day string, code queue.Code, hour, minute int, withMinute bool) string {
	if withMinute {
		return fmt.Sprintf("%s-q%s-%02d:%02d", day, code.Label(), hour, minute)
	}
	return fmt.Sprintf("%s-q%s-%02d", day, code.Label(), hour)
}

// Memory is the set of transition keys already dispatched.
// It only ever holds keys for a single calendar date; Prune drops the rest,
// which keeps the set bounded without any TTL machinery.
type Memory struct {
	mu   sync.Mutex
	sent map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{sent: map[string]struct{}{}}
}

// Seen reports whether the key was already dispatched.
func (m *Memory) Seen(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sent[key]
	return ok
}

// Mark records the key as dispatched.
func (m *Memory) Mark(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[key] = struct{}{}
}

// Prune drops every key that does not belong to the given date.
func (m *Memory) Prune(now time.Time) {
	day := now.Format(dayFormat)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.sent {
		if !strings.HasPrefix(k, day+"-") {
			delete(m.sent, k)
		}
	}
}

// Len returns the number of remembered keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
