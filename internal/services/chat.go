package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"heartlink-backend/internal/apperr"
	"heartlink-backend/internal/models"
	"heartlink-backend/internal/repository"
	"heartlink-backend/internal/ws"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChatService persists messages and fans them out to the match room. The
// same entry points back both the live channel and the REST fallback, so
// a client that lost its socket still gets the message persisted and can
// merge the returned copy by id against a later push.
type ChatService struct {
	messages MessageStore
	matches  MatchStore
	users    UserStore
	pub      Publisher
	push     Pusher // nil when push is not configured
}

// NewChatService creates a new chat service
func NewChatService(messages MessageStore, matches MatchStore, users UserStore, pub Publisher, push Pusher) *ChatService {
	return &ChatService{messages: messages, matches: matches, users: users, pub: pub, push: push}
}

func (s *ChatService) authorize(ctx context.Context, matchID, userID string) (*models.Match, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "match not found")
		}
		return nil, apperr.Internal("failed to load match", err)
	}
	if !match.HasParticipant(userID) {
		return nil, apperr.New(apperr.KindForbidden, "not a participant of this match")
	}
	return match, nil
}

// Send persists a message and broadcasts it to every session in the
// match's room, including the sender's own other sessions. The caller is
// unblocked by the commit; the broadcast is not awaited.
func (s *ChatService) Send(ctx context.Context, matchID, senderID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "message text is required")
	}

	match, err := s.authorize(ctx, matchID, senderID)
	if err != nil {
		return nil, err
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, apperr.Internal("failed to load sender", err)
	}

	msg := &models.Message{
		ID:         uuid.New().String(),
		MatchID:    matchID,
		SenderID:   senderID,
		ReceiverID: match.OtherParticipant(senderID),
		Text:       text,
		IsRead:     false,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to save message", err)
	}

	pub := sender.Public()
	msg.Sender = &pub
	s.pub.Publish(ws.MatchRoom(matchID), "new-message", msg)

	if !s.pub.IsOnline(msg.ReceiverID) {
		s.notifyOffline(ctx, msg.ReceiverID, sender.Nickname, text)
	}
	return msg, nil
}

// MarkRead transitions the given messages to read for the reader and
// broadcasts a read receipt. Messages already read or not addressed to
// the reader are silently skipped; only ids that actually transitioned
// appear in the receipt.
func (s *ChatService) MarkRead(ctx context.Context, matchID, readerID string, messageIDs []string) ([]string, error) {
	if _, err := s.authorize(ctx, matchID, readerID); err != nil {
		return nil, err
	}
	if len(messageIDs) == 0 {
		return nil, nil
	}

	readAt := time.Now().UTC()
	updated, err := s.messages.MarkRead(ctx, matchID, readerID, messageIDs, readAt)
	if err != nil {
		return nil, apperr.Internal("failed to mark messages read", err)
	}
	if len(updated) > 0 {
		s.pub.Publish(ws.MatchRoom(matchID), "messages-read", map[string]any{
			"message_ids": updated,
			"read_by":     readerID,
			"read_at":     readAt,
		})
	}
	return updated, nil
}

// History returns all messages of a match in creation order.
func (s *ChatService) History(ctx context.Context, matchID, requesterID string) ([]models.Message, error) {
	if _, err := s.authorize(ctx, matchID, requesterID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, apperr.Internal("failed to load messages", err)
	}
	return messages, nil
}

func (s *ChatService) notifyOffline(ctx context.Context, receiverID, senderName, text string) {
	if s.push == nil {
		return
	}
	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil || receiver.PushToken == nil || *receiver.PushToken == "" {
		return
	}
	token := *receiver.PushToken
	go func() {
		if err := s.push.NotifyNewMessage(token, senderName, text); err != nil {
			log.Warn().Err(err).Str("receiver_id", receiverID).Msg("push notification failed")
		}
	}()
}
