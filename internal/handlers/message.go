package handlers

import (
	"encoding/json"
	"net/http"

	"heartlink-backend/internal/middleware"
	"heartlink-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MessageHandler handles the REST path of the chat: history and the
// persist-and-return fallback used when the live channel is down.
type MessageHandler struct {
	chatService *services.ChatService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(chatService *services.ChatService) *MessageHandler {
	return &MessageHandler{chatService: chatService}
}

// History handles GET /api/v1/messages/{matchID}
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	matchID := chi.URLParam(r, "matchID")

	messages, err := h.chatService.History(ctx, matchID, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// SendRequest represents the request body for sending a message
type SendRequest struct {
	Text string `json:"text"`
}

// Send handles POST /api/v1/messages/{matchID}. The response carries the
// persisted message so the client can merge it by id against the push it
// may also receive.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	matchID := chi.URLParam(r, "matchID")

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.chatService.Send(ctx, matchID, userID, req.Text)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// MarkReadRequest represents the request body for a read-state update
type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// MarkRead handles PUT /api/v1/messages/{matchID}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	matchID := chi.URLParam(r, "matchID")

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.chatService.MarkRead(ctx, matchID, userID, req.MessageIDs)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message_ids": updated})
}
