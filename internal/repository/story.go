package repository

import (
	"context"
	"errors"
	"fmt"

	"heartlink-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoryRepository handles database operations for stories and their
// views, likes and comments. Every read filters expires_at > now():
// the background sweep is only a janitor, the filter is authoritative.
type StoryRepository struct {
	db *pgxpool.Pool
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db *pgxpool.Pool) *StoryRepository {
	return &StoryRepository{db: db}
}

// Create persists a new story
func (r *StoryRepository) Create(ctx context.Context, story *models.Story) error {
	query := `
		INSERT INTO stories (id, user_id, image_url, caption, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		story.ID, story.UserID, story.ImageURL, story.Caption, story.CreatedAt, story.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// GetByID retrieves a non-expired story. Expired stories report ErrNotFound
// even when the sweep has not reclaimed them yet.
func (r *StoryRepository) GetByID(ctx context.Context, id string) (*models.Story, error) {
	query := `
		SELECT s.id, s.user_id, s.image_url, s.caption, s.created_at, s.expires_at,
		       u.nickname, u.profile_image
		FROM stories s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.expires_at > now()
	`
	var story models.Story
	var user models.PublicUser
	err := r.db.QueryRow(ctx, query, id).Scan(
		&story.ID, &story.UserID, &story.ImageURL, &story.Caption,
		&story.CreatedAt, &story.ExpiresAt,
		&user.Nickname, &user.ProfileImage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	user.ID = story.UserID
	story.User = &user
	return &story, nil
}

// ListByAuthors returns the non-expired stories of the given authors with
// viewer-scoped aggregates. newestFirst selects feed ordering; the
// per-author view uses oldest-first.
func (r *StoryRepository) ListByAuthors(ctx context.Context, authorIDs []string, viewerID string, newestFirst bool) ([]models.StoryItem, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT s.id, s.user_id, s.image_url, s.caption, s.created_at, s.expires_at,
		       u.nickname, u.profile_image,
		       (SELECT count(*) FROM story_likes l WHERE l.story_id = s.id) AS like_count,
		       (SELECT count(*) FROM story_comments c WHERE c.story_id = s.id) AS comment_count,
		       EXISTS(SELECT 1 FROM story_likes l WHERE l.story_id = s.id AND l.user_id = $2) AS liked,
		       EXISTS(SELECT 1 FROM story_views v WHERE v.story_id = s.id AND v.viewer_id = $2) AS viewed
		FROM stories s
		JOIN users u ON u.id = s.user_id
		WHERE s.user_id = ANY($1) AND s.expires_at > now()
		ORDER BY s.created_at %s
	`, order)

	rows, err := r.db.Query(ctx, query, authorIDs, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var items []models.StoryItem
	for rows.Next() {
		var item models.StoryItem
		var user models.PublicUser
		err := rows.Scan(
			&item.ID, &item.UserID, &item.ImageURL, &item.Caption,
			&item.CreatedAt, &item.ExpiresAt,
			&user.Nickname, &user.ProfileImage,
			&item.LikeCount, &item.CommentCount, &item.Liked, &item.Viewed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		user.ID = item.UserID
		item.User = &user
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stories: %w", err)
	}
	return items, nil
}

// Delete removes a story owned by userID. Sub-records go with it via
// ON DELETE CASCADE.
func (r *StoryRepository) Delete(ctx context.Context, storyID, userID string) error {
	query := `DELETE FROM stories WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, storyID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired reclaims stories past their expiry and returns how many
// were removed.
func (r *StoryRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM stories WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired stories: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertView records that viewer saw the story. Re-views are absorbed by
// the primary key, keeping the insert idempotent.
func (r *StoryRepository) InsertView(ctx context.Context, storyID, viewerID string) error {
	query := `
		INSERT INTO story_views (story_id, viewer_id, viewed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (story_id, viewer_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, storyID, viewerID); err != nil {
		return fmt.Errorf("failed to insert story view: %w", err)
	}
	return nil
}

// CountViews returns the number of distinct viewers of a story
func (r *StoryRepository) CountViews(ctx context.Context, storyID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM story_views WHERE story_id = $1`, storyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count story views: %w", err)
	}
	return count, nil
}

// Viewers returns the view records of a story, oldest first
func (r *StoryRepository) Viewers(ctx context.Context, storyID string) ([]models.StoryViewer, error) {
	query := `
		SELECT u.id, u.nickname, u.profile_image, v.viewed_at
		FROM story_views v
		JOIN users u ON u.id = v.viewer_id
		WHERE v.story_id = $1
		ORDER BY v.viewed_at ASC
	`
	rows, err := r.db.Query(ctx, query, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list story viewers: %w", err)
	}
	defer rows.Close()

	var viewers []models.StoryViewer
	for rows.Next() {
		var v models.StoryViewer
		if err := rows.Scan(&v.User.ID, &v.User.Nickname, &v.User.ProfileImage, &v.ViewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan story viewer: %w", err)
		}
		viewers = append(viewers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story viewers: %w", err)
	}
	return viewers, nil
}

// InsertLike adds a like to a story. Returns false when the user already
// likes it; the primary key closes the duplicate window.
func (r *StoryRepository) InsertLike(ctx context.Context, storyID, userID string) (bool, error) {
	query := `
		INSERT INTO story_likes (story_id, user_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (story_id, user_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, storyID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to insert story like: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteLike removes a user's like from a story. Idempotent.
func (r *StoryRepository) DeleteLike(ctx context.Context, storyID, userID string) error {
	query := `DELETE FROM story_likes WHERE story_id = $1 AND user_id = $2`
	if _, err := r.db.Exec(ctx, query, storyID, userID); err != nil {
		return fmt.Errorf("failed to delete story like: %w", err)
	}
	return nil
}

// CountLikes returns the number of likes on a story
func (r *StoryRepository) CountLikes(ctx context.Context, storyID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM story_likes WHERE story_id = $1`, storyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count story likes: %w", err)
	}
	return count, nil
}

// InsertComment appends a comment to a story
func (r *StoryRepository) InsertComment(ctx context.Context, comment *models.StoryComment) error {
	query := `
		INSERT INTO story_comments (id, story_id, user_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		comment.ID, comment.StoryID, comment.UserID, comment.Text, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert story comment: %w", err)
	}
	return nil
}

// GetComment retrieves one comment of a story
func (r *StoryRepository) GetComment(ctx context.Context, storyID, commentID string) (*models.StoryComment, error) {
	query := `
		SELECT c.id, c.story_id, c.user_id, c.text, c.created_at,
		       u.nickname, u.profile_image
		FROM story_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1 AND c.story_id = $2
	`
	var comment models.StoryComment
	var user models.PublicUser
	err := r.db.QueryRow(ctx, query, commentID, storyID).Scan(
		&comment.ID, &comment.StoryID, &comment.UserID, &comment.Text, &comment.CreatedAt,
		&user.Nickname, &user.ProfileImage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story comment: %w", err)
	}
	user.ID = comment.UserID
	comment.User = &user
	return &comment, nil
}

// ListComments returns a story's comments in creation order
func (r *StoryRepository) ListComments(ctx context.Context, storyID string) ([]models.StoryComment, error) {
	query := `
		SELECT c.id, c.story_id, c.user_id, c.text, c.created_at,
		       u.nickname, u.profile_image
		FROM story_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.story_id = $1
		ORDER BY c.created_at ASC
	`
	rows, err := r.db.Query(ctx, query, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list story comments: %w", err)
	}
	defer rows.Close()

	var comments []models.StoryComment
	for rows.Next() {
		var comment models.StoryComment
		var user models.PublicUser
		err := rows.Scan(
			&comment.ID, &comment.StoryID, &comment.UserID, &comment.Text, &comment.CreatedAt,
			&user.Nickname, &user.ProfileImage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story comment: %w", err)
		}
		user.ID = comment.UserID
		comment.User = &user
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment from a story
func (r *StoryRepository) DeleteComment(ctx context.Context, storyID, commentID string) error {
	query := `DELETE FROM story_comments WHERE id = $1 AND story_id = $2`
	tag, err := r.db.Exec(ctx, query, commentID, storyID)
	if err != nil {
		return fmt.Errorf("failed to delete story comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
