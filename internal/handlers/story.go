package handlers

import (
	"encoding/json"
	"net/http"

	"heartlink-backend/internal/middleware"
	"heartlink-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxUploadSize = 10 << 20 // 10 MiB

// StoryHandler handles story-related HTTP requests
type StoryHandler struct {
	storyService *services.StoryService
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(storyService *services.StoryService) *StoryHandler {
	return &StoryHandler{storyService: storyService}
}

// Create handles POST /api/v1/stories (multipart image + optional caption)
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, "image is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	story, err := h.storyService.Create(ctx, userID, file, header.Filename, contentType, r.FormValue("caption"))
	if err != nil {
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Str("story_id", story.ID).Msg("Story created")
	respondJSON(w, http.StatusCreated, story)
}

// Feed handles GET /api/v1/stories
func (h *StoryHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	groups, err := h.storyService.Feed(ctx, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stories": groups})
}

// StoriesOf handles GET /api/v1/stories/{id}
func (h *StoryHandler) StoriesOf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	targetID := chi.URLParam(r, "id")

	stories, err := h.storyService.StoriesOf(ctx, targetID, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stories": stories})
}

// RecordView handles PUT /api/v1/stories/{id}/view
func (h *StoryHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	storyID := chi.URLParam(r, "id")

	count, err := h.storyService.RecordView(ctx, storyID, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"view_count": count})
}

// Viewers handles GET /api/v1/stories/{id}/viewers
func (h *StoryHandler) Viewers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	storyID := chi.URLParam(r, "id")

	viewers, err := h.storyService.Viewers(ctx, storyID, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"viewers": viewers,
		"count":   len(viewers),
	})
}

// Like handles POST /api/v1/stories/{id}/like
func (h *StoryHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	storyID := chi.URLParam(r, "id")

	count, err := h.storyService.Like(ctx, storyID, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"like_count": count})
}

// Unlike handles DELETE /api/v1/stories/{id}/like
func (h *StoryHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	storyID := chi.URLParam(r, "id")

	count, err := h.storyService.Unlike(ctx, storyID, userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"like_count": count})
}

// AddCommentRequest represents the request body for adding a comment
type AddCommentRequest struct {
	Text string `json:"text"`
}

// AddComment handles POST /api/v1/stories/{id}/comments
func (h *StoryHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	storyID := chi.URLParam(r, "id")

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	comment, err := h.storyService.AddComment(ctx, storyID, userID, req.Text)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// DeleteComment handles DELETE /api/v1/stories/{id}/comments/{commentID}
func (h *StoryHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	storyID := chi.URLParam(r, "id")
	commentID := chi.URLParam(r, "commentID")

	if err := h.storyService.DeleteComment(ctx, storyID, commentID, userID); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/stories/{id}
func (h *StoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	storyID := chi.URLParam(r, "id")

	if err := h.storyService.Delete(ctx, storyID, userID); err != nil {
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Str("story_id", storyID).Msg("Story deleted")
	w.WriteHeader(http.StatusNoContent)
}
