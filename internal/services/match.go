package services

import (
	"context"
	"errors"

	"heartlink-backend/internal/apperr"
	"heartlink-backend/internal/models"
	"heartlink-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// MatchService owns the match lifecycle after creation: listing and the
// cancellation cascade.
type MatchService struct {
	matches MatchStore
	cache   LikeCountCache
	pub     Publisher
}

// NewMatchService creates a new match service
func NewMatchService(matches MatchStore, cache LikeCountCache, pub Publisher) *MatchService {
	return &MatchService{matches: matches, cache: cache, pub: pub}
}

// ListForUser returns the caller's matches, newest first.
func (s *MatchService) ListForUser(ctx context.Context, userID string) ([]models.MatchSummary, error) {
	summaries, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list matches", err)
	}
	return summaries, nil
}

// Authorize returns the match when requester is one of its participants.
// Looked up fresh on every call so a cancelled match stops authorizing
// immediately, even for connections still joined to its room.
func (s *MatchService) Authorize(ctx context.Context, matchID, requesterID string) (*models.Match, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "match not found")
		}
		return nil, apperr.Internal("failed to load match", err)
	}
	if !match.HasParticipant(requesterID) {
		return nil, apperr.New(apperr.KindForbidden, "not a participant of this match")
	}
	return match, nil
}

// Cancel tears down a match: its messages, the match row and both like
// edges go in one transaction, so a future match requires both sides to
// re-like. Destruction is terminal; the id is never reused.
func (s *MatchService) Cancel(ctx context.Context, matchID, requesterID string) error {
	match, err := s.Authorize(ctx, matchID, requesterID)
	if err != nil {
		return err
	}

	if err := s.matches.CancelCascade(ctx, matchID, match.UserAID, match.UserBID); err != nil {
		return apperr.Internal("failed to cancel match", err)
	}

	// Like edges changed for both sides.
	for _, id := range []string{match.UserAID, match.UserBID} {
		if err := s.cache.InvalidateLikeCount(ctx, id); err != nil {
			log.Warn().Err(err).Str("user_id", id).Msg("like count cache invalidation failed")
		}
	}

	log.Info().Str("match_id", matchID).Str("requester", requesterID).Msg("match cancelled")
	s.pub.SendToUser(match.OtherParticipant(requesterID), "match-cancelled", map[string]string{"match_id": matchID})
	return nil
}
