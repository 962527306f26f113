package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/kimi-chat/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxRequestBodySize is the maximum allowed turn request body (1MB).
const maxRequestBodySize = 1 << 20

// streamEndMarker terminates the event stream, distinct from any event
// payload.
const streamEndMarker = "[DONE]"

// Handler exposes the chat turn endpoints.
type Handler struct {
	svc  *Service
	repo store.Repository
}

// NewHandler creates a chat handler.
func NewHandler(svc *Service, repo store.Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

// RegisterRoutes registers the turn submission routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleTurn)
	r.Post("/api/chat/stream", h.HandleStreamTurn)
}

// HandleStreamTurn handles POST /api/chat/stream. The response is a stream
// of newline-delimited "data: {json}" records terminated by "data: [DONE]".
func (h *Handler) HandleStreamTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTurnRequest(w, r)
	if !ok {
		return
	}

	events, err := h.svc.StreamTurn(r.Context(), req.Message, req.ConversationID)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			http.Error(w, `{"error": "message is required"}`, http.StatusBadRequest)
			return
		}
		slog.Error("failed to start streaming turn", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			// The end marker must only ever follow a terminal event, so a
			// marshal failure is reported as one before the stream ends.
			slog.Error("failed to marshal stream event", "type", event.Type, "error", err)
			fallback, _ := json.Marshal(&Event{Type: EventError, Error: genericStreamError})
			if writeErr := writeData(w, string(fallback)); writeErr != nil {
				return
			}
			break
		}
		if err := writeData(w, string(data)); err != nil {
			slog.Warn("failed to write stream event, client likely gone", "error", err)
			return
		}
		flusher.Flush()
	}

	if err := writeData(w, streamEndMarker); err != nil {
		slog.Warn("failed to write stream end marker", "error", err)
		return
	}
	flusher.Flush()
}

// HandleTurn handles POST /api/chat: a blocking, whole-response turn.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTurnRequest(w, r)
	if !ok {
		return
	}

	result, err := h.svc.CompleteTurn(r.Context(), req.Message, req.ConversationID)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage):
			http.Error(w, `{"error": "message is required"}`, http.StatusBadRequest)
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, `{"error": "conversation not found"}`, http.StatusNotFound)
		default:
			slog.Error("blocking turn failed", "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Warn("failed to encode turn result", "error", err)
	}
}

// decodeTurnRequest parses and validates the shared turn payload. When the
// request names an existing conversation it must resolve, so callers get a
// 404 before any streaming starts.
func (h *Handler) decodeTurnRequest(w http.ResponseWriter, r *http.Request) (TurnRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, `{"error": "request body too large"}`, http.StatusRequestEntityTooLarge)
			return TurnRequest{}, false
		}
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return TurnRequest{}, false
	}

	if req.ConversationID != 0 {
		if _, err := h.repo.GetConversation(r.Context(), req.ConversationID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error": "conversation not found"}`, http.StatusNotFound)
				return TurnRequest{}, false
			}
			slog.Error("failed to look up conversation", "conversation_id", req.ConversationID, "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			return TurnRequest{}, false
		}
	}

	return req, true
}

func writeData(w io.Writer, data string) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
