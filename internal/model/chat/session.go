package chat

import "time"

// Session captures a transient anonymous conversation.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"persona_id"`
	CreatedAt time.Time `json:"created_at"`
}
