package chat

import "time"

type MessageType string

const (
	Public  MessageType = "message"
	Private MessageType = "private_message"
	Status  MessageType = "status"
)

const (
	// Broadcast is the recipient of every public and status message.
	Broadcast = "Todos"

	EnteredTheRoom = "entered the room"
	LeftTheRoom    = "left the room"

	// TimeLayout renders the time of day a message was submitted (HH:MM:SS, 24h).
	TimeLayout = "15:04:05"
)

// Message is an immutable entry of the chat log.
type Message struct {
	ID   string
	From string
	To   string
	Text string
	Type MessageType
	Time string
}

// IsVisibleTo tells whether a viewer may read the message:
// public messages are visible to everyone, the rest only to their sender and recipient.
func (m Message) IsVisibleTo(viewer string) bool {
	return m.Type == Public || m.From == viewer || m.To == viewer
}

func NewArrival(name string, at time.Time) Message {
	return statusMessage(name, EnteredTheRoom, at)
}

func NewDeparture(name string, at time.Time) Message {
	return statusMessage(name, LeftTheRoom, at)
}

func statusMessage(name, text string, at time.Time) Message {
	return Message{
		From: name,
		To:   Broadcast,
		Text: text,
		Type: Status,
		Time: at.Format(TimeLayout),
	}
}
