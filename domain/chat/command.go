package chat

// RegisterCommand asks the presence registry to admit a new participant.
type RegisterCommand struct {
	Name string `json:"name" validate:"required"`
}

// PostMessageCommand carries a user message. From is the caller identity,
// it never comes from the request body.
type PostMessageCommand struct {
	From string      `json:"-"`
	To   string      `json:"to" validate:"required"`
	Text string      `json:"text" validate:"required"`
	Type MessageType `json:"type" validate:"required,oneof=message private_message"`
}

// QueryMessagesCommand reads the log as seen by Viewer.
// A nil Limit returns every visible message.
type QueryMessagesCommand struct {
	Viewer string `json:"-"`
	Limit  *int   `json:"limit" validate:"omitempty,gt=0"`
}

// SearchMessagesCommand runs a full-text search restricted to what Viewer may read.
type SearchMessagesCommand struct {
	Viewer string `json:"-"`
	Terms  string `json:"q" validate:"required"`
	Limit  *int   `json:"limit" validate:"omitempty,gt=0"`
}
