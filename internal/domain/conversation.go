// Package domain contains core domain types for the chat application.
package domain

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message submitted by the person chatting.
	RoleUser Role = "user"
	// RoleAssistant marks a model-generated message.
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the persistable roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation is a persisted chat thread. UpdatedAt is bumped on every
// message append and is monotonic non-decreasing.
type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single persisted message within a conversation. Content is
// immutable once stored.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
