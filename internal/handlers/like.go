package handlers

import (
	"net/http"

	"heartlink-backend/internal/middleware"
	"heartlink-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// LikeHandler handles like-graph HTTP requests
type LikeHandler struct {
	likeService *services.LikeService
}

// NewLikeHandler creates a new like handler
func NewLikeHandler(likeService *services.LikeService) *LikeHandler {
	return &LikeHandler{likeService: likeService}
}

// Like handles POST /api/v1/likes/{userID}
func (h *LikeHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	targetID := chi.URLParam(r, "userID")

	result, err := h.likeService.Like(ctx, userID, targetID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	if result.IsMatched {
		log.Info().Str("user_id", userID).Str("target_id", targetID).Str("match_id", result.MatchID).Msg("Mutual like")
	}
	respondJSON(w, http.StatusOK, result)
}

// Unlike handles DELETE /api/v1/likes/{userID}
func (h *LikeHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	targetID := chi.URLParam(r, "userID")

	if err := h.likeService.Unlike(ctx, userID, targetID); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Received handles GET /api/v1/likes/received
func (h *LikeHandler) Received(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	likes, err := h.likeService.Received(ctx, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"users": likes,
		"count": len(likes),
	})
}

// Count handles GET /api/v1/likes/count
func (h *LikeHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	count, err := h.likeService.CountReceived(ctx, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": count})
}
