package models

import "time"

// Chat message types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// ChatMessage belongs to exactly one visit. Immutable once created except
// for IsRead, which only ever moves false -> true.
type ChatMessage struct {
	ID          string    `json:"id"`
	VisitID     string    `json:"visit_id"`
	SenderID    string    `json:"sender_id"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"` // text | image
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatEvent is one frame from the live channel.
type ChatEvent struct {
	Type    string       `json:"type"` // "message" | "read"
	VisitID string       `json:"visit_id"`
	Message *ChatMessage `json:"message,omitempty"`
}

// Live channel event types.
const (
	EventMessage = "message"
	EventRead    = "read"
)
