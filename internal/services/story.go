package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"heartlink-backend/internal/apperr"
	"heartlink-backend/internal/models"
	"heartlink-backend/internal/repository"
	"heartlink-backend/internal/ws"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxCaptionLen = 200
	maxCommentLen = 500
)

// StoryService owns ephemeral posts: creation with a hard expiry,
// match-scoped visibility, view/like/comment aggregation and the
// reclamation sweep. Expiry is enforced twice: the repository filters
// every read on expires_at, and the sweeper reclaims rows behind it.
type StoryService struct {
	stories StoryStore
	matches MatchStore
	users   UserStore
	images  ImageStore
	pub     Publisher
	ttl     time.Duration
}

// NewStoryService creates a new story service
func NewStoryService(stories StoryStore, matches MatchStore, users UserStore, images ImageStore, pub Publisher, ttl time.Duration) *StoryService {
	return &StoryService{stories: stories, matches: matches, users: users, images: images, pub: pub, ttl: ttl}
}

// Create uploads the image and persists a story expiring after the
// configured TTL.
func (s *StoryService) Create(ctx context.Context, authorID string, image io.Reader, filename, contentType, caption string) (*models.Story, error) {
	caption = strings.TrimSpace(caption)
	if utf8.RuneCountInString(caption) > maxCaptionLen {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "caption must be at most %d characters", maxCaptionLen)
	}

	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		return nil, apperr.Internal("failed to load author", err)
	}

	storyID := uuid.New().String()
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("stories/%s/%s%s", authorID, storyID, ext)

	imageURL, err := s.images.Upload(ctx, key, image, contentType)
	if err != nil {
		return nil, apperr.Internal("failed to upload image", err)
	}

	now := time.Now().UTC()
	story := &models.Story{
		ID:        storyID,
		UserID:    authorID,
		ImageURL:  imageURL,
		Caption:   caption,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.stories.Create(ctx, story); err != nil {
		return nil, apperr.Internal("failed to save story", err)
	}

	pub := author.Public()
	story.User = &pub
	log.Info().Str("story_id", storyID).Str("user_id", authorID).Time("expires_at", story.ExpiresAt).Msg("story created")
	return story, nil
}

// Feed returns the viewer's story feed: their own stories plus those of
// everyone they are currently matched with, grouped per author newest
// first, each group flagged when it still holds unviewed stories.
func (s *StoryService) Feed(ctx context.Context, viewerID string) ([]models.StoryGroup, error) {
	authorIDs, err := s.matches.MatchedUserIDs(ctx, viewerID)
	if err != nil {
		return nil, apperr.Internal("failed to load matches", err)
	}
	authorIDs = append(authorIDs, viewerID)

	items, err := s.stories.ListByAuthors(ctx, authorIDs, viewerID, true)
	if err != nil {
		return nil, apperr.Internal("failed to load stories", err)
	}

	var groups []models.StoryGroup
	index := make(map[string]int)
	for _, item := range items {
		i, ok := index[item.UserID]
		if !ok {
			i = len(groups)
			index[item.UserID] = i
			groups = append(groups, models.StoryGroup{User: *item.User})
		}
		if !item.Viewed {
			groups[i].HasUnviewed = true
		}
		groups[i].Stories = append(groups[i].Stories, item)
	}
	return groups, nil
}

// StoriesOf returns target's stories, oldest first, with comments. Only
// the target themselves or a currently-matched user may look.
func (s *StoryService) StoriesOf(ctx context.Context, targetID, requesterID string) ([]models.StoryItem, error) {
	if targetID != requesterID {
		matched, err := s.matches.AreMatched(ctx, targetID, requesterID)
		if err != nil {
			return nil, apperr.Internal("failed to check match", err)
		}
		if !matched {
			return nil, apperr.New(apperr.KindForbidden, "not matched with this user")
		}
	}

	items, err := s.stories.ListByAuthors(ctx, []string{targetID}, requesterID, false)
	if err != nil {
		return nil, apperr.Internal("failed to load stories", err)
	}
	for i := range items {
		comments, err := s.stories.ListComments(ctx, items[i].ID)
		if err != nil {
			return nil, apperr.Internal("failed to load comments", err)
		}
		items[i].Comments = comments
	}
	return items, nil
}

func (s *StoryService) get(ctx context.Context, storyID string) (*models.Story, error) {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "story not found")
		}
		return nil, apperr.Internal("failed to load story", err)
	}
	return story, nil
}

// AuthorizeViewer checks that userID may see the story: its author, or
// someone currently matched with the author. Derived from live match
// state on every call.
func (s *StoryService) AuthorizeViewer(ctx context.Context, storyID, userID string) error {
	story, err := s.get(ctx, storyID)
	if err != nil {
		return err
	}
	if story.UserID == userID {
		return nil
	}
	matched, err := s.matches.AreMatched(ctx, story.UserID, userID)
	if err != nil {
		return apperr.Internal("failed to check match", err)
	}
	if !matched {
		return apperr.New(apperr.KindForbidden, "no access to this story")
	}
	return nil
}

// RecordView stores that viewer saw the story. Repeat views are no-ops.
func (s *StoryService) RecordView(ctx context.Context, storyID, viewerID string) (int, error) {
	if _, err := s.get(ctx, storyID); err != nil {
		return 0, err
	}
	if err := s.stories.InsertView(ctx, storyID, viewerID); err != nil {
		return 0, apperr.Internal("failed to record view", err)
	}
	count, err := s.stories.CountViews(ctx, storyID)
	if err != nil {
		return 0, apperr.Internal("failed to count views", err)
	}
	return count, nil
}

// Viewers lists who saw the story. Restricted to the story's author.
func (s *StoryService) Viewers(ctx context.Context, storyID, requesterID string) ([]models.StoryViewer, error) {
	story, err := s.get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != requesterID {
		return nil, apperr.New(apperr.KindForbidden, "only the author may list viewers")
	}
	viewers, err := s.stories.Viewers(ctx, storyID)
	if err != nil {
		return nil, apperr.Internal("failed to load viewers", err)
	}
	return viewers, nil
}

// Like adds the viewer's like and broadcasts the new count to the
// story's room. Liking twice is a conflict.
func (s *StoryService) Like(ctx context.Context, storyID, userID string) (int, error) {
	if _, err := s.get(ctx, storyID); err != nil {
		return 0, err
	}
	inserted, err := s.stories.InsertLike(ctx, storyID, userID)
	if err != nil {
		return 0, apperr.Internal("failed to save like", err)
	}
	if !inserted {
		return 0, apperr.New(apperr.KindConflict, "story already liked")
	}
	return s.publishLikeToggle(ctx, storyID, userID, true)
}

// Unlike removes the viewer's like and broadcasts the new count.
func (s *StoryService) Unlike(ctx context.Context, storyID, userID string) (int, error) {
	if _, err := s.get(ctx, storyID); err != nil {
		return 0, err
	}
	if err := s.stories.DeleteLike(ctx, storyID, userID); err != nil {
		return 0, apperr.Internal("failed to remove like", err)
	}
	return s.publishLikeToggle(ctx, storyID, userID, false)
}

func (s *StoryService) publishLikeToggle(ctx context.Context, storyID, userID string, liked bool) (int, error) {
	count, err := s.stories.CountLikes(ctx, storyID)
	if err != nil {
		return 0, apperr.Internal("failed to count likes", err)
	}
	s.pub.Publish(ws.StoryRoom(storyID), "story-like-toggled", map[string]any{
		"story_id":   storyID,
		"user_id":    userID,
		"liked":      liked,
		"like_count": count,
	})
	return count, nil
}

// AddComment appends a bounded comment and broadcasts it with the
// author's public identity.
func (s *StoryService) AddComment(ctx context.Context, storyID, authorID, text string) (*models.StoryComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "comment text is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "comment must be at most %d characters", maxCommentLen)
	}

	if _, err := s.get(ctx, storyID); err != nil {
		return nil, err
	}
	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		return nil, apperr.Internal("failed to load author", err)
	}

	comment := &models.StoryComment{
		ID:        uuid.New().String(),
		StoryID:   storyID,
		UserID:    authorID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.stories.InsertComment(ctx, comment); err != nil {
		return nil, apperr.Internal("failed to save comment", err)
	}

	pub := author.Public()
	comment.User = &pub
	s.pub.Publish(ws.StoryRoom(storyID), "story-comment-added", comment)
	return comment, nil
}

// DeleteComment removes a comment. Allowed for the comment's author and,
// as moderation, for the story's author.
func (s *StoryService) DeleteComment(ctx context.Context, storyID, commentID, requesterID string) error {
	story, err := s.get(ctx, storyID)
	if err != nil {
		return err
	}
	comment, err := s.stories.GetComment(ctx, storyID, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "comment not found")
		}
		return apperr.Internal("failed to load comment", err)
	}
	if comment.UserID != requesterID && story.UserID != requesterID {
		return apperr.New(apperr.KindForbidden, "no permission to delete this comment")
	}
	if err := s.stories.DeleteComment(ctx, storyID, commentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "comment not found")
		}
		return apperr.Internal("failed to delete comment", err)
	}
	s.pub.Publish(ws.StoryRoom(storyID), "story-comment-deleted", map[string]string{
		"story_id":   storyID,
		"comment_id": commentID,
	})
	return nil
}

// Delete removes the requester's own story and all its sub-records.
func (s *StoryService) Delete(ctx context.Context, storyID, requesterID string) error {
	story, err := s.get(ctx, storyID)
	if err != nil {
		return err
	}
	if story.UserID != requesterID {
		return apperr.New(apperr.KindForbidden, "only the author may delete this story")
	}
	if err := s.stories.Delete(ctx, storyID, requesterID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// lost a race with the sweeper, same outcome
			return nil
		}
		return apperr.Internal("failed to delete story", err)
	}
	return nil
}

// RunSweeper reclaims expired stories until ctx is cancelled. The read
// paths do not depend on it; they filter on expires_at themselves.
func (s *StoryService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.stories.DeleteExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("story sweep failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("expired stories reclaimed")
			}
		}
	}
}
