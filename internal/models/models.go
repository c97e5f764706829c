package models

import "time"

// User represents a registered user. Profile management beyond the public
// identity lives in another service; the core only reads these fields.
type User struct {
	ID           string    `json:"id"`
	Nickname     string    `json:"nickname"`
	ProfileImage string    `json:"profile_image,omitempty"`
	PushToken    *string   `json:"push_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PublicUser is the identity attached to messages, comments and stories.
type PublicUser struct {
	ID           string `json:"id"`
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// Public returns the user's public identity.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Nickname: u.Nickname, ProfileImage: u.ProfileImage}
}

// Like is a directed like edge from one user to another. At most one edge
// exists per ordered pair.
type Like struct {
	LikerID   string    `json:"liker_id"`
	LikedID   string    `json:"liked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ReceivedLike annotates a user who likes the caller.
type ReceivedLike struct {
	User        PublicUser `json:"user"`
	LikesCount  int        `json:"likes_count"`
	IsLikedByMe bool       `json:"is_liked_by_me"`
	IsMutual    bool       `json:"is_mutual"`
	LikedAt     time.Time  `json:"liked_at"`
}

// Match pairs two mutually-liking users. UserAID is always the
// lexicographically smaller id so the unordered pair has one canonical row.
type Match struct {
	ID        string    `json:"id"`
	UserAID   string    `json:"user_a_id"`
	UserBID   string    `json:"user_b_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HasParticipant reports whether the user belongs to this match.
func (m *Match) HasParticipant(userID string) bool {
	return m.UserAID == userID || m.UserBID == userID
}

// OtherParticipant returns the match participant that is not userID.
func (m *Match) OtherParticipant(userID string) string {
	if m.UserAID == userID {
		return m.UserBID
	}
	return m.UserAID
}

// OrderPair returns the canonical (a < b) ordering of a user pair.
func OrderPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Message is a chat message inside a match. The read transition is
// one-way: is_read never reverts to false.
type Message struct {
	ID         string      `json:"id"`
	MatchID    string      `json:"match_id"`
	SenderID   string      `json:"sender_id"`
	ReceiverID string      `json:"receiver_id"`
	Text       string      `json:"text"`
	IsRead     bool        `json:"is_read"`
	ReadAt     *time.Time  `json:"read_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	Sender     *PublicUser `json:"sender,omitempty"`
}

// MatchSummary is one entry of the match list: the other participant, the
// latest message and how many messages the caller has not read yet.
type MatchSummary struct {
	MatchID     string       `json:"match_id"`
	User        PublicUser   `json:"user"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
	CreatedAt   time.Time    `json:"created_at"`
}

// LastMessage is the trimmed-down latest message shown in match lists.
type LastMessage struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Story is an ephemeral photo post. It is visible only while
// expires_at is in the future; expiry is deletion, not a flag.
type Story struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	ImageURL  string      `json:"image_url"`
	Caption   string      `json:"caption,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *PublicUser `json:"user,omitempty"`
}

// StoryItem is a story with its viewer-scoped aggregates.
type StoryItem struct {
	Story
	LikeCount    int            `json:"like_count"`
	CommentCount int            `json:"comment_count"`
	Liked        bool           `json:"liked"`
	Viewed       bool           `json:"viewed"`
	Comments     []StoryComment `json:"comments,omitempty"`
}

// StoryGroup is one author's stories in the feed.
type StoryGroup struct {
	User        PublicUser  `json:"user"`
	Stories     []StoryItem `json:"stories"`
	HasUnviewed bool        `json:"has_unviewed"`
}

// StoryViewer is one view record of a story.
type StoryViewer struct {
	User     PublicUser `json:"user"`
	ViewedAt time.Time  `json:"viewed_at"`
}

// StoryComment is a comment on a story.
type StoryComment struct {
	ID        string      `json:"id"`
	StoryID   string      `json:"story_id"`
	UserID    string      `json:"user_id"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
	User      *PublicUser `json:"user,omitempty"`
}
