package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ashureev/kimi-chat/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return repo
}

func TestCreateAndGetConversation(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	created, err := repo.CreateConversation(ctx, "First Conversation")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if created.ID == 0 {
		t.Error("Expected a non-zero conversation id")
	}

	got, err := repo.GetConversation(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.Title != "First Conversation" {
		t.Errorf("Expected title %q, got %q", "First Conversation", got.Title)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	repo := newTestStore(t)

	if _, err := repo.GetConversation(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAppendMessage(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "Chat")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	msg, err := repo.AppendMessage(ctx, conv.ID, domain.RoleUser, "hello there")
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if msg.ID == 0 || msg.ConversationID != conv.ID || msg.Role != domain.RoleUser {
		t.Errorf("Unexpected message record: %+v", msg)
	}

	// The append bumps the conversation timestamp; it must never go backwards.
	bumped, err := repo.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if bumped.UpdatedAt.Before(conv.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v -> %v", conv.UpdatedAt, bumped.UpdatedAt)
	}
}

func TestAppendMessage_UnknownConversation(t *testing.T) {
	repo := newTestStore(t)

	if _, err := repo.AppendMessage(context.Background(), 12345, domain.RoleUser, "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAppendMessage_InvalidRole(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "Chat")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if _, err := repo.AppendMessage(ctx, conv.ID, domain.Role("system"), "nope"); err == nil {
		t.Error("Expected error for non-persistable role")
	}
}

func TestListMessages_ChronologicalOrder(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "Ordered")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if _, err := repo.AppendMessage(ctx, conv.ID, role, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("AppendMessage %d failed: %v", i, err)
		}
	}

	messages, err := repo.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("Expected 5 messages, got %d", len(messages))
	}
	for i, msg := range messages {
		if msg.Content != fmt.Sprintf("message %d", i) {
			t.Errorf("Position %d: expected %q, got %q", i, fmt.Sprintf("message %d", i), msg.Content)
		}
	}
}

func TestListRecentMessages_Window(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "Windowed")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	for i := 1; i <= 15; i++ {
		if _, err := repo.AppendMessage(ctx, conv.ID, domain.RoleUser, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("AppendMessage %d failed: %v", i, err)
		}
	}

	recent, err := repo.ListRecentMessages(ctx, conv.ID, 10)
	if err != nil {
		t.Fatalf("ListRecentMessages failed: %v", err)
	}
	if len(recent) != 10 {
		t.Fatalf("Expected 10 messages, got %d", len(recent))
	}
	// Oldest of the window first, newest last.
	if recent[0].Content != "message 6" || recent[9].Content != "message 15" {
		t.Errorf("Unexpected window bounds: first=%q last=%q", recent[0].Content, recent[9].Content)
	}
}

func TestRenameConversation(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "Before")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if err := repo.RenameConversation(ctx, conv.ID, "After"); err != nil {
		t.Fatalf("RenameConversation failed: %v", err)
	}

	got, err := repo.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.Title != "After" {
		t.Errorf("Expected title %q, got %q", "After", got.Title)
	}

	if err := repo.RenameConversation(ctx, 999, "Nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestDeleteConversation_Cascades(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "Doomed")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := repo.AppendMessage(ctx, conv.ID, domain.RoleUser, "msg"); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	if err := repo.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	if _, err := repo.GetConversation(ctx, conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	messages, err := repo.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("Expected cascade to remove messages, found %d", len(messages))
	}
}

func TestListConversations_MostRecentFirst(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if _, err := repo.CreateConversation(ctx, fmt.Sprintf("conv %d", i)); err != nil {
			t.Fatalf("CreateConversation failed: %v", err)
		}
	}

	conversations, err := repo.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(conversations) != 3 {
		t.Fatalf("Expected 3 conversations, got %d", len(conversations))
	}
	// Same-second creations fall back to id order, newest id first.
	if conversations[0].Title != "conv 3" {
		t.Errorf("Expected newest conversation first, got %q", conversations[0].Title)
	}
}

func TestReset(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, "Throwaway")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if _, err := repo.AppendMessage(ctx, conv.ID, domain.RoleUser, "bye"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	conversations, err := repo.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(conversations) != 0 {
		t.Errorf("Expected no conversations after reset, got %d", len(conversations))
	}

	// Identity counters restart from 1.
	fresh, err := repo.CreateConversation(ctx, "Fresh Start")
	if err != nil {
		t.Fatalf("CreateConversation after reset failed: %v", err)
	}
	if fresh.ID != 1 {
		t.Errorf("Expected id 1 after counter reset, got %d", fresh.ID)
	}
}
