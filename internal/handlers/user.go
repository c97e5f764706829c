package handlers

import (
	"encoding/json"
	"net/http"

	"heartlink-backend/internal/middleware"
	"heartlink-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest represents the request body for registering a user
type RegisterRequest struct {
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profile_image"`
}

// Register handles POST /api/v1/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.userService.Register(r.Context(), req.Nickname, req.ProfileImage)
	if err != nil {
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", user.ID).Str("nickname", user.Nickname).Msg("User registered")

	respondJSON(w, http.StatusCreated, map[string]any{
		"user":  user,
		"token": token,
	})
}

// UpdatePushTokenRequest represents the request body for a push token update
type UpdatePushTokenRequest struct {
	PushToken *string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/users/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdatePushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdatePushToken(r.Context(), userID, req.PushToken); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
