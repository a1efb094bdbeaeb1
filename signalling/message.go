package signalling

import uuid "github.com/satori/go.uuid"

// Message is a call-scoped signalling message queued on a Call's inbound
// queue.
type Message struct {
	ID     string
	Name   string
	Params map[string]string
}

// NewMessage builds a named message with a fresh identifier.
func NewMessage(name string, params map[string]string) *Message {
	if params == nil {
		params = map[string]string{}
	}
	return &Message{ID: uuid.NewV4().String(), Name: name, Params: params}
}
