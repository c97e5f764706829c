package repository

import (
	"context"
	"fmt"

	"heartlink-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LikeRepository handles database operations for directed like edges
type LikeRepository struct {
	db *pgxpool.Pool
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *pgxpool.Pool) *LikeRepository {
	return &LikeRepository{db: db}
}

// Insert adds a like edge liker -> liked. Returns false without error when
// the edge already exists; the primary key makes the insert race-free.
func (r *LikeRepository) Insert(ctx context.Context, likerID, likedID string) (bool, error) {
	query := `
		INSERT INTO likes (liker_id, liked_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (liker_id, liked_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, likerID, likedID)
	if err != nil {
		return false, fmt.Errorf("failed to insert like: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a like edge. Idempotent: absent edges are not an error.
func (r *LikeRepository) Delete(ctx context.Context, likerID, likedID string) error {
	query := `DELETE FROM likes WHERE liker_id = $1 AND liked_id = $2`
	if _, err := r.db.Exec(ctx, query, likerID, likedID); err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}

// IsMutual reports whether both directed edges between a and b exist.
func (r *LikeRepository) IsMutual(ctx context.Context, a, b string) (bool, error) {
	query := `
		SELECT EXISTS(SELECT 1 FROM likes WHERE liker_id = $1 AND liked_id = $2)
		   AND EXISTS(SELECT 1 FROM likes WHERE liker_id = $2 AND liked_id = $1)
	`
	var mutual bool
	if err := r.db.QueryRow(ctx, query, a, b).Scan(&mutual); err != nil {
		return false, fmt.Errorf("failed to check mutual like: %w", err)
	}
	return mutual, nil
}

// ReceivedBy returns users who like userID, newest first, each annotated
// with whether userID likes them back.
func (r *LikeRepository) ReceivedBy(ctx context.Context, userID string) ([]models.ReceivedLike, error) {
	query := `
		SELECT u.id, u.nickname, u.profile_image,
		       (SELECT count(*) FROM likes lc WHERE lc.liked_id = u.id) AS likes_count,
		       EXISTS(
		           SELECT 1 FROM likes lb
		           WHERE lb.liker_id = $1 AND lb.liked_id = u.id
		       ) AS liked_by_me,
		       l.created_at
		FROM likes l
		JOIN users u ON u.id = l.liker_id
		WHERE l.liked_id = $1
		ORDER BY l.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get received likes: %w", err)
	}
	defer rows.Close()

	var likes []models.ReceivedLike
	for rows.Next() {
		var rl models.ReceivedLike
		err := rows.Scan(
			&rl.User.ID, &rl.User.Nickname, &rl.User.ProfileImage,
			&rl.LikesCount, &rl.IsLikedByMe, &rl.LikedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan received like: %w", err)
		}
		rl.IsMutual = rl.IsLikedByMe
		likes = append(likes, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating received likes: %w", err)
	}
	return likes, nil
}

// CountReceived returns how many users like userID.
func (r *LikeRepository) CountReceived(ctx context.Context, userID string) (int64, error) {
	query := `SELECT count(*) FROM likes WHERE liked_id = $1`
	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count received likes: %w", err)
	}
	return count, nil
}
