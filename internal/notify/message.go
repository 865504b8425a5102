// Package notify holds the notification core: the transition detector with
// its dedupe memory, the dispatch fan-out over both delivery channels, and
// the scheduled cycle that ties them to the schedule source.
package notify

import (
	"encoding/json"
	"fmt"

	"likhtar/internal/queue"
)

// TitleUpcoming is the alert title shown for an upcoming outage.
const TitleUpcoming = "Скоро відключать світло"

// Message is one rendered notification, channel-agnostic.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// UpcomingOutage renders the standard "outage in ~1 hour" message.
func UpcomingOutage(code queue.Code, hour, minute int) Message {
	return Message{
		Title: TitleUpcoming,
		Body:  fmt.Sprintf("По графіку (черга %s) світло відключать в %02d:%02d.", code.Label(), hour, minute),
	}
}

// PushPayload encodes the message for the web-push channel.
func (m Message) PushPayload() ([]byte, error) {
	return json.Marshal(m)
}

// ChatText renders the message for the chat channel.
func (m Message) ChatText() string {
	return m.Title + "\n" + m.Body
}
