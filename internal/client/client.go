// Package client consumes the streaming turn endpoint: it submits a
// message, reassembles the in-progress assistant message from token events,
// and reconciles it against the final persisted record.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ashureev/kimi-chat/internal/chat"
	"github.com/ashureev/kimi-chat/internal/domain"
)

const (
	dataPrefix = "data: "
	endMarker  = "[DONE]"
)

// ErrTruncatedStream is returned when the stream ends without a terminal
// event and end marker.
var ErrTruncatedStream = errors.New("stream ended without terminal event")

// TurnError is returned when the server reports a mid-stream failure. The
// partially assembled text is discarded, matching the server's no-partial-
// persistence rule.
type TurnError struct {
	Message string
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed: %s", e.Message)
}

// TurnResult is a fully reconciled streaming turn.
type TurnResult struct {
	ConversationID   int64
	UserMessage      *domain.Message
	AssistantMessage *domain.Message
}

// Client talks to a chat server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// StreamTurn submits one message and consumes the event stream until the end
// marker. conversationID zero starts a new conversation. onToken, when
// non-nil, is invoked with the text assembled so far and the latest stats
// after each token event.
func (c *Client) StreamTurn(ctx context.Context, message string, conversationID int64, onToken func(partial string, stats *chat.Stats)) (*TurnResult, error) {
	body, err := json.Marshal(chat.TurnRequest{
		Message:        message,
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal turn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit turn: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	result := &TurnResult{}
	var assembled strings.Builder
	done := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, dataPrefix)

		if payload == endMarker {
			done = true
			break
		}

		var event chat.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, fmt.Errorf("decode stream event: %w", err)
		}

		switch event.Type {
		case chat.EventStart:
			result.ConversationID = event.ConversationID
			result.UserMessage = event.UserMessage
		case chat.EventToken:
			assembled.WriteString(event.Content)
			if onToken != nil {
				onToken(assembled.String(), event.Stats)
			}
		case chat.EventComplete:
			// The persisted record wins over the locally assembled text.
			result.AssistantMessage = event.AssistantMessage
		case chat.EventError:
			return nil, &TurnError{Message: event.Error}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	if !done || result.AssistantMessage == nil {
		return nil, ErrTruncatedStream
	}

	return result, nil
}

// Conversation retrieves one conversation with its full message history.
func (c *Client) Conversation(ctx context.Context, id int64) (*domain.Conversation, []*domain.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/chat?conversationId=%d", c.baseURL, id), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build history request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch conversation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, c.decodeError(resp)
	}

	var payload struct {
		Conversation *domain.Conversation `json:"conversation"`
		Messages     []*domain.Message    `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("decode conversation response: %w", err)
	}

	return payload.Conversation, payload.Messages, nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, payload.Error)
}
