package chat

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"

	"github.com/ashureev/kimi-chat/internal/domain"
	"github.com/ashureev/kimi-chat/internal/provider"
	"github.com/ashureev/kimi-chat/internal/store"
)

const (
	// historyWindow is the number of prior messages sent as context.
	// Older history is silently dropped.
	historyWindow = 10

	// fallbackTitle is used when title generation fails.
	fallbackTitle = "New Conversation"

	// genericStreamError is the only error text forwarded to callers.
	// Provider and storage detail stays in the logs.
	genericStreamError = "Error generating response. Please try again."
)

// ErrEmptyMessage is returned when the submitted text is blank after trimming.
var ErrEmptyMessage = errors.New("message must not be empty")

// Service orchestrates chat turns against the store and the completion
// provider.
type Service struct {
	repo      store.Repository
	completer provider.Completer
	logger    *slog.Logger
}

// NewService creates a chat service with explicit dependencies.
func NewService(repo store.Repository, completer provider.Completer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		completer: completer,
		logger:    logger,
	}
}

// StreamTurn accepts one user message and returns the finite event sequence
// for the turn. conversationID zero means a new conversation is created; its
// id is minted when the start event is emitted.
//
// Validation happens eagerly with zero side effects; all other work is lazy
// and runs as the sequence is consumed. The sequence is single-use. Stopping
// consumption early, or cancelling ctx, stops the provider stream and skips
// all further persistence.
func (s *Service) StreamTurn(ctx context.Context, userText string, conversationID int64) (iter.Seq[*Event], error) {
	if strings.TrimSpace(userText) == "" {
		return nil, ErrEmptyMessage
	}

	return func(yield func(*Event) bool) {
		s.runTurn(ctx, userText, conversationID, yield)
	}, nil
}

func (s *Service) runTurn(ctx context.Context, userText string, conversationID int64, yield func(*Event) bool) {
	convID, err := s.resolveConversation(ctx, userText, conversationID)
	if err != nil {
		s.logger.Error("failed to resolve conversation", "error", err)
		yield(&Event{Type: EventError, Error: genericStreamError})
		return
	}

	// Window of prior turns, captured before this turn's user message is
	// recorded so it never includes the message being answered.
	history, err := s.repo.ListRecentMessages(ctx, convID, historyWindow)
	if err != nil {
		s.logger.Error("failed to load conversation history", "conversation_id", convID, "error", err)
		yield(&Event{Type: EventError, Error: genericStreamError})
		return
	}

	// The user's input is persisted before the provider stream opens so it
	// survives a provider failure.
	userMsg, err := s.repo.AppendMessage(ctx, convID, domain.RoleUser, userText)
	if err != nil {
		s.logger.Error("failed to persist user message", "conversation_id", convID, "error", err)
		yield(&Event{Type: EventError, Error: genericStreamError})
		return
	}

	if !yield(&Event{Type: EventStart, ConversationID: convID, UserMessage: userMsg}) {
		return
	}

	session := newStreamSession(convID)

	for chunk, err := range s.completer.StreamComplete(ctx, buildPrompt(history, userText)) {
		if err != nil {
			s.logger.Error("provider stream failed",
				"conversation_id", convID,
				"tokens_received", session.tokens,
				"error", err,
			)
			yield(&Event{Type: EventError, Error: genericStreamError})
			return
		}
		if chunk == "" {
			continue
		}

		stats := session.append(chunk)
		if !yield(&Event{Type: EventToken, Content: chunk, Stats: &stats}) {
			return
		}
	}

	// Caller disconnected between the last increment and exhaustion; the
	// partial text is discarded, never persisted.
	if ctx.Err() != nil {
		s.logger.Info("stream cancelled before completion", "conversation_id", convID, "tokens", session.tokens)
		return
	}

	assistantMsg, err := s.repo.AppendMessage(ctx, convID, domain.RoleAssistant, session.text())
	if err != nil {
		s.logger.Error("failed to persist assistant message",
			"conversation_id", convID,
			"content_length", session.response.Len(),
			"error", err,
		)
		yield(&Event{Type: EventError, Error: genericStreamError})
		return
	}

	final := session.finalStats()
	yield(&Event{Type: EventComplete, AssistantMessage: assistantMsg, Stats: &final})
}

// TurnResult is the outcome of a blocking (non-streaming) turn.
type TurnResult struct {
	ConversationID   int64           `json:"conversationId"`
	UserMessage      *domain.Message `json:"userMessage"`
	AssistantMessage *domain.Message `json:"assistantMessage"`
	Response         string          `json:"response"`
}

// CompleteTurn runs one whole-response turn: same persistence and windowing
// rules as StreamTurn, but the provider call blocks until the full text is
// available.
func (s *Service) CompleteTurn(ctx context.Context, userText string, conversationID int64) (*TurnResult, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, ErrEmptyMessage
	}

	convID, err := s.resolveConversation(ctx, userText, conversationID)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentMessages(ctx, convID, historyWindow)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.repo.AppendMessage(ctx, convID, domain.RoleUser, userText)
	if err != nil {
		return nil, err
	}

	response, err := s.completer.Complete(ctx, buildPrompt(history, userText))
	if err != nil {
		return nil, err
	}

	assistantMsg, err := s.repo.AppendMessage(ctx, convID, domain.RoleAssistant, response)
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		ConversationID:   convID,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Response:         response,
	}, nil
}

// resolveConversation returns the existing conversation id or creates a new
// conversation titled from the user's text. Title generation is best-effort;
// its failure never blocks the turn.
func (s *Service) resolveConversation(ctx context.Context, userText string, conversationID int64) (int64, error) {
	if conversationID != 0 {
		return conversationID, nil
	}

	title, err := s.completer.GenerateTitle(ctx, userText)
	if err != nil {
		s.logger.Warn("title generation failed, using fallback", "error", err)
		title = fallbackTitle
	}

	conv, err := s.repo.CreateConversation(ctx, title)
	if err != nil {
		return 0, err
	}
	return conv.ID, nil
}

// buildPrompt assembles the provider context: fixed system instruction, the
// bounded window of prior turns oldest-first, then the new user message.
func buildPrompt(history []*domain.Message, userText string) []provider.Message {
	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{
		Role:    provider.RoleSystem,
		Content: provider.SystemPrompt(),
	})
	for _, msg := range history {
		messages = append(messages, provider.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	messages = append(messages, provider.Message{
		Role:    provider.RoleUser,
		Content: userText,
	})
	return messages
}
