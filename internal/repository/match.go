package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"heartlink-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchRepository handles database operations for matches
type MatchRepository struct {
	db *pgxpool.Pool
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateIfAbsent creates a match for the unordered pair, or returns the
// existing one. Two concurrent creations for the same pair resolve to a
// single row via the unique (user_a_id, user_b_id) constraint; losing the
// race is benign and reported as created=false.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, a, b string) (*models.Match, bool, error) {
	userA, userB := models.OrderPair(a, b)

	insert := `
		INSERT INTO matches (id, user_a_id, user_b_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_a_id, user_b_id) DO NOTHING
		RETURNING id, user_a_id, user_b_id, created_at
	`
	var match models.Match
	err := r.db.QueryRow(ctx, insert, uuid.New().String(), userA, userB, time.Now().UTC()).Scan(
		&match.ID, &match.UserAID, &match.UserBID, &match.CreatedAt,
	)
	if err == nil {
		return &match, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create match: %w", err)
	}

	// Conflict: the pair is already matched, return the existing row.
	existing, err := r.GetByPair(ctx, userA, userB)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID retrieves a match by ID
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `
		SELECT id, user_a_id, user_b_id, created_at
		FROM matches
		WHERE id = $1
	`
	var match models.Match
	err := r.db.QueryRow(ctx, query, id).Scan(
		&match.ID, &match.UserAID, &match.UserBID, &match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return &match, nil
}

// GetByPair retrieves the match for an unordered user pair
func (r *MatchRepository) GetByPair(ctx context.Context, a, b string) (*models.Match, error) {
	userA, userB := models.OrderPair(a, b)
	query := `
		SELECT id, user_a_id, user_b_id, created_at
		FROM matches
		WHERE user_a_id = $1 AND user_b_id = $2
	`
	var match models.Match
	err := r.db.QueryRow(ctx, query, userA, userB).Scan(
		&match.ID, &match.UserAID, &match.UserBID, &match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match by pair: %w", err)
	}
	return &match, nil
}

// AreMatched reports whether two users currently have an active match.
func (r *MatchRepository) AreMatched(ctx context.Context, a, b string) (bool, error) {
	userA, userB := models.OrderPair(a, b)
	query := `SELECT EXISTS(SELECT 1 FROM matches WHERE user_a_id = $1 AND user_b_id = $2)`
	var matched bool
	if err := r.db.QueryRow(ctx, query, userA, userB).Scan(&matched); err != nil {
		return false, fmt.Errorf("failed to check match: %w", err)
	}
	return matched, nil
}

// MatchedUserIDs returns the ids of every user currently matched with userID.
func (r *MatchRepository) MatchedUserIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT CASE WHEN user_a_id = $1 THEN user_b_id ELSE user_a_id END
		FROM matches
		WHERE user_a_id = $1 OR user_b_id = $1
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matched users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan matched user: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matched users: %w", err)
	}
	return ids, nil
}

// ListForUser returns every match userID participates in, newest first,
// with the other participant's identity, the latest message and the count
// of messages addressed to userID that are still unread.
func (r *MatchRepository) ListForUser(ctx context.Context, userID string) ([]models.MatchSummary, error) {
	query := `
		SELECT m.id, m.created_at,
		       u.id, u.nickname, u.profile_image,
		       lm.text, lm.created_at,
		       (SELECT count(*) FROM messages c
		        WHERE c.match_id = m.id AND c.receiver_id = $1 AND c.is_read = false
		       ) AS unread_count
		FROM matches m
		JOIN users u ON u.id = CASE WHEN m.user_a_id = $1 THEN m.user_b_id ELSE m.user_a_id END
		LEFT JOIN LATERAL (
		    SELECT text, created_at FROM messages
		    WHERE match_id = m.id
		    ORDER BY created_at DESC
		    LIMIT 1
		) lm ON true
		WHERE m.user_a_id = $1 OR m.user_b_id = $1
		ORDER BY m.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var summaries []models.MatchSummary
	for rows.Next() {
		var s models.MatchSummary
		var lastText *string
		var lastAt *time.Time
		err := rows.Scan(
			&s.MatchID, &s.CreatedAt,
			&s.User.ID, &s.User.Nickname, &s.User.ProfileImage,
			&lastText, &lastAt,
			&s.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match summary: %w", err)
		}
		if lastText != nil && lastAt != nil {
			s.LastMessage = &models.LastMessage{Text: *lastText, CreatedAt: *lastAt}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return summaries, nil
}

// CancelCascade removes a match, its messages and both like edges between
// the participants in one transaction, so a failed step never leaves the
// store half-mutated. A match already deleted by a concurrent cancel is
// treated as success.
func (r *MatchRepository) CancelCascade(ctx context.Context, matchID, userA, userB string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin cancel transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE match_id = $1`, matchID); err != nil {
		return fmt.Errorf("failed to delete match messages: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM matches WHERE id = $1`, matchID); err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	query := `
		DELETE FROM likes
		WHERE (liker_id = $1 AND liked_id = $2) OR (liker_id = $2 AND liked_id = $1)
	`
	if _, err := tx.Exec(ctx, query, userA, userB); err != nil {
		return fmt.Errorf("failed to delete like edges: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cancel transaction: %w", err)
	}
	return nil
}
