// Package provider wraps the remote text-generation service.
package provider

import (
	"context"
	"errors"
	"iter"
)

// Message roles accepted by the completion endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrEmptyCompletion is returned when the remote service responds without
// any generated text.
var ErrEmptyCompletion = errors.New("empty completion response")

// Completer defines the interface for model-generated completions.
type Completer interface {
	// Complete requests a whole response for the given messages, blocking
	// until the remote call finishes.
	Complete(ctx context.Context, messages []Message) (string, error)

	// StreamComplete requests an incremental response. The sequence is
	// finite, driven by the remote end-of-stream signal, and not
	// restartable. Empty increments are never yielded.
	StreamComplete(ctx context.Context, messages []Message) iter.Seq2[string, error]

	// GenerateTitle produces a short conversation title from the first user
	// message. Failures are expected to be recovered by the caller.
	GenerateTitle(ctx context.Context, firstMessage string) (string, error)
}
