package repository

import (
	"context"
	"fmt"
	"time"

	"heartlink-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository handles database operations for chat messages
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert persists a new message
func (r *MessageRepository) Insert(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, match_id, sender_id, receiver_id, text, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.MatchID, msg.SenderID, msg.ReceiverID, msg.Text, msg.IsRead, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListByMatch returns all messages of a match in creation order, each with
// the sender's public identity attached.
func (r *MessageRepository) ListByMatch(ctx context.Context, matchID string) ([]models.Message, error) {
	query := `
		SELECT m.id, m.match_id, m.sender_id, m.receiver_id, m.text,
		       m.is_read, m.read_at, m.created_at,
		       u.nickname, u.profile_image
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.match_id = $1
		ORDER BY m.created_at ASC
	`
	rows, err := r.db.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var sender models.PublicUser
		err := rows.Scan(
			&msg.ID, &msg.MatchID, &msg.SenderID, &msg.ReceiverID, &msg.Text,
			&msg.IsRead, &msg.ReadAt, &msg.CreatedAt,
			&sender.Nickname, &sender.ProfileImage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		sender.ID = msg.SenderID
		msg.Sender = &sender
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// MarkRead flips the given messages to read and returns the ids that
// actually transitioned. Only messages of this match addressed to the
// reader and still unread are touched; the rest are silently skipped, so
// repeated calls are idempotent and is_read stays monotonic.
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, readerID string, messageIDs []string, readAt time.Time) ([]string, error) {
	query := `
		UPDATE messages
		SET is_read = true, read_at = $1
		WHERE id = ANY($2) AND match_id = $3 AND receiver_id = $4 AND is_read = false
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query, readAt, messageIDs, matchID, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	defer rows.Close()

	var updated []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan read message id: %w", err)
		}
		updated = append(updated, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating read messages: %w", err)
	}
	return updated, nil
}
