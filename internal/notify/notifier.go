package notify

import "context"

// Message is one outbound chat notification. Action, when set, is an opaque
// token the transport renders as a button (e.g. "review:<task-id>").
type Message struct {
	Target string `json:"target"`
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
}

// Notifier delivers a message to a user chat or a broadcast channel.
// Delivery is fire-and-forget: callers log failures and never roll back the
// state transition that produced the message.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
