package handlers

import (
	"net/http"

	"heartlink-backend/internal/middleware"
	"heartlink-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MatchHandler handles match-related HTTP requests
type MatchHandler struct {
	matchService *services.MatchService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchService *services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// List handles GET /api/v1/matches
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	matches, err := h.matchService.ListForUser(ctx, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// Cancel handles DELETE /api/v1/matches/{matchID}
func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	matchID := chi.URLParam(r, "matchID")

	if err := h.matchService.Cancel(ctx, matchID, userID); err != nil {
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Str("match_id", matchID).Msg("Match cancelled")
	w.WriteHeader(http.StatusNoContent)
}
