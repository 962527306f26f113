// Package chat implements the streaming turn pipeline: one user message in,
// an ordered sequence of events out, with the final response persisted
// exactly once.
package chat

import (
	"github.com/ashureev/kimi-chat/internal/domain"
)

// Event types emitted during a streaming turn, in this order: one start,
// zero or more token, then exactly one of complete or error.
const (
	EventStart    = "start"
	EventToken    = "token"
	EventComplete = "complete"
	EventError    = "error"
)

// Stats is a throughput snapshot taken when an increment arrives.
type Stats struct {
	Tokens          int     `json:"tokens"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	TokensPerSecond float64 `json:"tokens_per_second"`
}

// Event is a single record in the streaming turn sequence. Fields are
// populated according to Type: start carries ConversationID and UserMessage,
// token carries Content and Stats, complete carries AssistantMessage and
// final Stats, error carries Error.
type Event struct {
	Type             string          `json:"type"`
	ConversationID   int64           `json:"conversationId,omitempty"`
	UserMessage      *domain.Message `json:"userMessage,omitempty"`
	Content          string          `json:"content,omitempty"`
	Stats            *Stats          `json:"stats,omitempty"`
	AssistantMessage *domain.Message `json:"assistantMessage,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// TurnRequest is the wire payload for submitting a turn.
type TurnRequest struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversationId,omitempty"`
}
