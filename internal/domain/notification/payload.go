package notification

import "github.com/google/uuid"

// Payload is the message handed to the push transport for one notification.
// Payloads are built fresh per event or scheduler condition and never stored.
type Payload struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      Type           `json:"type"`
	Priority  Priority       `json:"priority"`
	ActionURL string         `json:"actionUrl,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewPayload builds a payload with a fresh ID.
func NewPayload(t Type, priority Priority, title, message string) *Payload {
	return &Payload{
		ID:       uuid.NewString(),
		Title:    title,
		Message:  message,
		Type:     t,
		Priority: priority,
	}
}
