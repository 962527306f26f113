// Package api provides HTTP handlers for conversation management.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/kimi-chat/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler serves conversation CRUD and administrative endpoints.
type Handler struct {
	repo store.Repository
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository) *Handler {
	return &Handler{repo: repo}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes registers conversation management routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/chat", h.HandleGetConversation)
	r.Route("/api/conversations", func(r chi.Router) {
		r.Get("/", h.HandleListConversations)
		r.Put("/", h.HandleRenameConversation)
		r.Delete("/", h.HandleDeleteConversation)
	})
	r.Post("/api/database/reset", h.HandleReset)
}

// HandleGetConversation handles GET /api/chat?conversationId=N: conversation
// metadata plus its full message history.
func (h *Handler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("conversationId"))
	if err != nil {
		Error(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	conv, err := h.repo.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "conversation not found")
			return
		}
		slog.Error("failed to get conversation", "conversation_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	messages, err := h.repo.ListMessages(r.Context(), id)
	if err != nil {
		slog.Error("failed to list messages", "conversation_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     messages,
	})
}

// HandleListConversations handles GET /api/conversations: all conversations,
// most recently updated first.
func (h *Handler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.repo.ListConversations(r.Context())
	if err != nil {
		slog.Error("failed to list conversations", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

type renameRequest struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// HandleRenameConversation handles PUT /api/conversations.
func (h *Handler) HandleRenameConversation(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == 0 || strings.TrimSpace(req.Title) == "" {
		Error(w, http.StatusBadRequest, "id and title are required")
		return
	}

	if err := h.repo.RenameConversation(r.Context(), req.ID, req.Title); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "conversation not found")
			return
		}
		slog.Error("failed to rename conversation", "conversation_id", req.ID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleDeleteConversation handles DELETE /api/conversations?id=N. Deleting
// a conversation cascades to all of its messages.
func (h *Handler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	if err := h.repo.DeleteConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "conversation not found")
			return
		}
		slog.Error("failed to delete conversation", "conversation_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// HandleReset handles POST /api/database/reset. Irreversible; the body must
// carry an explicit confirmation flag.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Confirm {
		Error(w, http.StatusBadRequest, "confirmation is required")
		return
	}

	if err := h.repo.Reset(r.Context()); err != nil {
		slog.Error("failed to reset database", "error", err)
		Error(w, http.StatusInternalServerError, "failed to reset database")
		return
	}

	slog.Info("database reset")
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
