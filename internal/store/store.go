// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/kimi-chat/internal/domain"
)

// ErrNotFound is returned when a conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// Repository defines the interface for persisting conversations and messages.
type Repository interface {
	// CreateConversation creates a new conversation with the given title.
	CreateConversation(ctx context.Context, title string) (*domain.Conversation, error)

	// GetConversation retrieves a conversation by id.
	// Returns ErrNotFound when the id is unknown.
	GetConversation(ctx context.Context, id int64) (*domain.Conversation, error)

	// ListConversations returns all conversations, most recently updated first.
	ListConversations(ctx context.Context) ([]*domain.Conversation, error)

	// RenameConversation updates the title of a conversation and bumps its
	// updated_at timestamp. Returns ErrNotFound when the id is unknown.
	RenameConversation(ctx context.Context, id int64, title string) error

	// DeleteConversation removes a conversation and all of its messages.
	// Returns ErrNotFound when the id is unknown.
	DeleteConversation(ctx context.Context, id int64) error

	// AppendMessage inserts a message and bumps the owning conversation's
	// updated_at timestamp atomically with the insert. Appends for the same
	// conversation never interleave.
	AppendMessage(ctx context.Context, conversationID int64, role domain.Role, content string) (*domain.Message, error)

	// ListMessages returns every message in a conversation, oldest first.
	ListMessages(ctx context.Context, conversationID int64) ([]*domain.Message, error)

	// ListRecentMessages returns the last limit messages of a conversation,
	// oldest first.
	ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error)

	// Reset erases all conversations and messages and resets identity counters.
	Reset(ctx context.Context) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
