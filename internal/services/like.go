package services

import (
	"context"

	"heartlink-backend/internal/apperr"
	"heartlink-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// LikeService owns the like graph and triggers match creation on
// reciprocity.
type LikeService struct {
	likes   LikeStore
	matches MatchStore
	users   UserStore
	cache   LikeCountCache
	pub     Publisher
}

// NewLikeService creates a new like service
func NewLikeService(likes LikeStore, matches MatchStore, users UserStore, cache LikeCountCache, pub Publisher) *LikeService {
	return &LikeService{likes: likes, matches: matches, users: users, cache: cache, pub: pub}
}

// LikeResult reports whether a like completed a mutual pair.
type LikeResult struct {
	IsMatched bool   `json:"is_matched"`
	MatchID   string `json:"match_id,omitempty"`
}

// Like inserts the edge liker -> liked and, when it completes a mutual
// pair, creates the match. Match creation is idempotent on the unordered
// pair: two near-simultaneous likes that both observe reciprocity resolve
// to the same match instead of racing each other.
func (s *LikeService) Like(ctx context.Context, likerID, likedID string) (*LikeResult, error) {
	if likerID == likedID {
		return nil, apperr.New(apperr.KindInvalidArgument, "cannot like yourself")
	}

	exists, err := s.users.Exists(ctx, likedID)
	if err != nil {
		return nil, apperr.Internal("failed to look up user", err)
	}
	if !exists {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}

	inserted, err := s.likes.Insert(ctx, likerID, likedID)
	if err != nil {
		return nil, apperr.Internal("failed to save like", err)
	}
	if !inserted {
		return nil, apperr.New(apperr.KindConflict, "already liked this user")
	}
	s.invalidateCount(ctx, likedID)

	mutual, err := s.likes.IsMutual(ctx, likerID, likedID)
	if err != nil {
		return nil, apperr.Internal("failed to check reciprocity", err)
	}
	if !mutual {
		return &LikeResult{}, nil
	}

	match, created, err := s.matches.CreateIfAbsent(ctx, likerID, likedID)
	if err != nil {
		return nil, apperr.Internal("failed to create match", err)
	}
	if created {
		log.Info().Str("match_id", match.ID).Str("user_a", match.UserAID).Str("user_b", match.UserBID).Msg("match created")
		s.pub.SendToUser(match.UserAID, "new-match", match)
		s.pub.SendToUser(match.UserBID, "new-match", match)
	}
	return &LikeResult{IsMatched: true, MatchID: match.ID}, nil
}

// Unlike removes the edge liker -> liked. Removing an absent edge is not
// an error.
func (s *LikeService) Unlike(ctx context.Context, likerID, likedID string) error {
	if err := s.likes.Delete(ctx, likerID, likedID); err != nil {
		return apperr.Internal("failed to remove like", err)
	}
	s.invalidateCount(ctx, likedID)
	return nil
}

// Received lists the users who like userID, annotated with reciprocity.
func (s *LikeService) Received(ctx context.Context, userID string) ([]models.ReceivedLike, error) {
	likes, err := s.likes.ReceivedBy(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load received likes", err)
	}
	return likes, nil
}

// CountReceived returns how many users like userID, served from the cache
// when it is warm.
func (s *LikeService) CountReceived(ctx context.Context, userID string) (int64, error) {
	if count, ok, err := s.cache.GetLikeCount(ctx, userID); err == nil && ok {
		return count, nil
	} else if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("like count cache read failed")
	}

	count, err := s.likes.CountReceived(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to count likes", err)
	}
	if err := s.cache.SetLikeCount(ctx, userID, count); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("like count cache write failed")
	}
	return count, nil
}

func (s *LikeService) invalidateCount(ctx context.Context, userID string) {
	if err := s.cache.InvalidateLikeCount(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("like count cache invalidation failed")
	}
}
