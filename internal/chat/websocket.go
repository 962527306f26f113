package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// WebSocketHandler streams chat turns over a WebSocket connection for
// clients that cannot consume the POST event stream. Each text frame from
// the client is one TurnRequest; the server answers with one JSON frame per
// event followed by an end-marker frame.
type WebSocketHandler struct {
	svc *Service
}

// NewWebSocketHandler creates a WebSocket chat handler.
func NewWebSocketHandler(svc *Service) *WebSocketHandler {
	return &WebSocketHandler{svc: svc}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr)
		}
	}()

	ctx := r.Context()
	slog.Info("WebSocket chat connected", "ip", r.RemoteAddr)

	for {
		var req TurnRequest
		if err := readJSON(ctx, ws, &req); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return
			}
			slog.Debug("WebSocket read failed", "error", err)
			return
		}

		if err := h.streamTurn(ctx, ws, req); err != nil {
			slog.Debug("WebSocket turn write failed", "error", err)
			return
		}
	}
}

func (h *WebSocketHandler) streamTurn(ctx context.Context, ws *websocket.Conn, req TurnRequest) error {
	events, err := h.svc.StreamTurn(ctx, req.Message, req.ConversationID)
	if err != nil {
		// Failed turns still end with the marker frame so the client's
		// per-turn read loop always terminates.
		msg := "internal server error"
		if errors.Is(err, ErrEmptyMessage) {
			msg = "message is required"
		} else {
			slog.Error("failed to start WebSocket turn", "error", err)
		}
		if writeErr := writeJSON(ctx, ws, &Event{Type: EventError, Error: msg}); writeErr != nil {
			return writeErr
		}
		return writeEndMarker(ctx, ws)
	}

	for event := range events {
		if err := writeJSON(ctx, ws, event); err != nil {
			return err
		}
	}

	return writeEndMarker(ctx, ws)
}

func writeEndMarker(ctx context.Context, ws *websocket.Conn) error {
	return ws.Write(ctx, websocket.MessageText, []byte(streamEndMarker))
}

func readJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	_, data, err := ws.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
