package services

import (
	"context"
	"io"
	"time"

	"heartlink-backend/internal/models"
)

// Storage interfaces implemented by internal/repository. Services depend
// on these rather than the pgx-backed structs so the lifecycle logic is
// testable against in-memory state.

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

type LikeStore interface {
	Insert(ctx context.Context, likerID, likedID string) (bool, error)
	Delete(ctx context.Context, likerID, likedID string) error
	IsMutual(ctx context.Context, a, b string) (bool, error)
	ReceivedBy(ctx context.Context, userID string) ([]models.ReceivedLike, error)
	CountReceived(ctx context.Context, userID string) (int64, error)
}

type MatchStore interface {
	CreateIfAbsent(ctx context.Context, a, b string) (*models.Match, bool, error)
	GetByID(ctx context.Context, id string) (*models.Match, error)
	AreMatched(ctx context.Context, a, b string) (bool, error)
	MatchedUserIDs(ctx context.Context, userID string) ([]string, error)
	ListForUser(ctx context.Context, userID string) ([]models.MatchSummary, error)
	CancelCascade(ctx context.Context, matchID, userA, userB string) error
}

type MessageStore interface {
	Insert(ctx context.Context, msg *models.Message) error
	ListByMatch(ctx context.Context, matchID string) ([]models.Message, error)
	MarkRead(ctx context.Context, matchID, readerID string, messageIDs []string, readAt time.Time) ([]string, error)
}

type StoryStore interface {
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, id string) (*models.Story, error)
	ListByAuthors(ctx context.Context, authorIDs []string, viewerID string, newestFirst bool) ([]models.StoryItem, error)
	Delete(ctx context.Context, storyID, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
	InsertView(ctx context.Context, storyID, viewerID string) error
	CountViews(ctx context.Context, storyID string) (int, error)
	Viewers(ctx context.Context, storyID string) ([]models.StoryViewer, error)
	InsertLike(ctx context.Context, storyID, userID string) (bool, error)
	DeleteLike(ctx context.Context, storyID, userID string) error
	CountLikes(ctx context.Context, storyID string) (int, error)
	InsertComment(ctx context.Context, comment *models.StoryComment) error
	GetComment(ctx context.Context, storyID, commentID string) (*models.StoryComment, error)
	ListComments(ctx context.Context, storyID string) ([]models.StoryComment, error)
	DeleteComment(ctx context.Context, storyID, commentID string) error
}

// LikeCountCache caches received-like counts (internal/cache).
type LikeCountCache interface {
	GetLikeCount(ctx context.Context, userID string) (int64, bool, error)
	SetLikeCount(ctx context.Context, userID string, count int64) error
	InvalidateLikeCount(ctx context.Context, userID string) error
}

// Publisher is the room fan-out side effect (internal/ws.Hub). Handler
// logic never writes to sockets directly, so the mechanism is swappable.
type Publisher interface {
	Publish(room, eventType string, data any)
	SendToUser(userID, eventType string, data any)
	IsOnline(userID string) bool
}

// ImageStore stages story images and returns the retrievable URL
// (internal/media).
type ImageStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Pusher notifies offline receivers about new messages (internal/push).
type Pusher interface {
	NotifyNewMessage(deviceToken, senderName, text string) error
}
