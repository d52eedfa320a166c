package models

// What happened upstream.
type EventKind string

const (
	EventMessageCreate EventKind = "message_create"
	EventMessageDelete EventKind = "message_delete"
)

// Unit of work on the event queue. Exactly one of Message or Deletion is
// set, matching Kind.
type Event struct {
	Kind     EventKind `json:"kind"`
	Message  *Message  `json:"message,omitempty"`
	Deletion *Deletion `json:"deletion,omitempty"`
}

// Wraps a created message into an event.
func MessageCreated(m *Message) Event {
	return Event{Kind: EventMessageCreate, Message: m}
}

// Wraps a deletion into an event.
func MessageDeleted(d *Deletion) Event {
	return Event{Kind: EventMessageDelete, Deletion: d}
}

// Id of the message the event is about, used for redelivery checks.
func (e Event) Key() string {
	switch e.Kind {
	case EventMessageCreate:
		if e.Message != nil {
			return string(e.Kind) + ":" + e.Message.ID
		}
	case EventMessageDelete:
		if e.Deletion != nil {
			return string(e.Kind) + ":" + e.Deletion.ID
		}
	}
	return ""
}
