package hub

import (
	"encoding/json"
	"time"

	"clinic-server/internal/model"
)

// Action tags the operation an event reports.
type Action string

const (
	ActionCreated   Action = "CREATED"
	ActionUpdated   Action = "UPDATED"
	ActionDeleted   Action = "DELETED"
	ActionConnected Action = "CONNECTED"
)

// Envelope is the canonical wire form every session receives, plaintext over
// websocket and encrypted per recipient over TCP.
type Envelope struct {
	Action    string    `json:"Action"`
	Timestamp time.Time `json:"Timestamp"`
	Data      any       `json:"Data"`
}

// Event is one immutable notification. Construct with Created, Updated,
// Deleted or Connected; the payload type is fixed by the action.
type Event struct {
	Action Action
	At     time.Time
	data   any
}

func Created(a model.Appointment) Event {
	return Event{Action: ActionCreated, At: time.Now(), data: a}
}

func Updated(a model.Appointment) Event {
	return Event{Action: ActionUpdated, At: time.Now(), data: a}
}

func Deleted(id int64) Event {
	return Event{Action: ActionDeleted, At: time.Now(), data: model.DeletedAppointment{ID: id}}
}

func Connected(message string) Event {
	return Event{Action: ActionConnected, At: time.Now(), data: struct {
		Message string `json:"message"`
	}{message}}
}

// Marshal renders the canonical envelope. Publish calls this once per event;
// every recipient gets the same bytes.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(Envelope{
		Action:    string(e.Action),
		Timestamp: e.At,
		Data:      e.data,
	})
}
