package services_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"heartlink-backend/internal/models"
	"heartlink-backend/internal/repository"
)

//
// In-memory fakes backing the service tests. They mirror the semantics
// of the pgx repositories: conflict-free inserts report false, reads
// filter expired stories, the read transition is one-way.
//

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*models.User)}
}

func (f *fakeUsers) add(id, nickname string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: id, Nickname: nickname, CreatedAt: time.Now().UTC()}
	f.users[id] = u
	return u
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Exists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeUsers) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PushToken = pushToken
	return nil
}

type likeEdge struct{ liker, liked string }

type fakeLikes struct {
	mu    sync.Mutex
	edges map[likeEdge]time.Time
	users *fakeUsers
}

func newFakeLikes(users *fakeUsers) *fakeLikes {
	return &fakeLikes{edges: make(map[likeEdge]time.Time), users: users}
}

func (f *fakeLikes) Insert(_ context.Context, likerID, likedID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := likeEdge{likerID, likedID}
	if _, ok := f.edges[e]; ok {
		return false, nil
	}
	f.edges[e] = time.Now().UTC()
	return true, nil
}

func (f *fakeLikes) Delete(_ context.Context, likerID, likedID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.edges, likeEdge{likerID, likedID})
	return nil
}

func (f *fakeLikes) IsMutual(_ context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ab := f.edges[likeEdge{a, b}]
	_, ba := f.edges[likeEdge{b, a}]
	return ab && ba, nil
}

func (f *fakeLikes) ReceivedBy(ctx context.Context, userID string) ([]models.ReceivedLike, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ReceivedLike
	for e, at := range f.edges {
		if e.liked != userID {
			continue
		}
		liker := f.users.users[e.liker]
		_, back := f.edges[likeEdge{userID, e.liker}]
		out = append(out, models.ReceivedLike{
			User:        liker.Public(),
			IsLikedByMe: back,
			IsMutual:    back,
			LikedAt:     at,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out, nil
}

func (f *fakeLikes) CountReceived(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for e := range f.edges {
		if e.liked == userID {
			n++
		}
	}
	return n, nil
}

type fakeMatches struct {
	mu     sync.Mutex
	byID   map[string]*models.Match
	byPair map[likeEdge]string
	seq    int
	likes  *fakeLikes
	msgs   *fakeMessages
	users  *fakeUsers
}

func newFakeMatches(likes *fakeLikes, msgs *fakeMessages, users *fakeUsers) *fakeMatches {
	return &fakeMatches{
		byID:   make(map[string]*models.Match),
		byPair: make(map[likeEdge]string),
		likes:  likes,
		msgs:   msgs,
		users:  users,
	}
}

func (f *fakeMatches) add(a, b string) *models.Match {
	m, _, _ := f.CreateIfAbsent(context.Background(), a, b)
	return m
}

func (f *fakeMatches) CreateIfAbsent(_ context.Context, a, b string) (*models.Match, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ua, ub := models.OrderPair(a, b)
	if id, ok := f.byPair[likeEdge{ua, ub}]; ok {
		cp := *f.byID[id]
		return &cp, false, nil
	}
	f.seq++
	m := &models.Match{
		ID:        fmt.Sprintf("match-%d", f.seq),
		UserAID:   ua,
		UserBID:   ub,
		CreatedAt: time.Now().UTC(),
	}
	f.byID[m.ID] = m
	f.byPair[likeEdge{ua, ub}] = m.ID
	cp := *m
	return &cp, true, nil
}

func (f *fakeMatches) GetByID(_ context.Context, id string) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMatches) AreMatched(_ context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ua, ub := models.OrderPair(a, b)
	_, ok := f.byPair[likeEdge{ua, ub}]
	return ok, nil
}

func (f *fakeMatches) MatchedUserIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.byID {
		if m.UserAID == userID {
			out = append(out, m.UserBID)
		} else if m.UserBID == userID {
			out = append(out, m.UserAID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeMatches) ListForUser(ctx context.Context, userID string) ([]models.MatchSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MatchSummary
	for _, m := range f.byID {
		if !m.HasParticipant(userID) {
			continue
		}
		other := f.users.users[m.OtherParticipant(userID)]
		out = append(out, models.MatchSummary{
			MatchID:   m.ID,
			User:      other.Public(),
			CreatedAt: m.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeMatches) CancelCascade(_ context.Context, matchID, userA, userB string) error {
	f.mu.Lock()
	if _, ok := f.byID[matchID]; !ok {
		f.mu.Unlock()
		return repository.ErrNotFound
	}
	delete(f.byID, matchID)
	delete(f.byPair, likeEdge{userA, userB})
	f.mu.Unlock()

	f.msgs.deleteByMatch(matchID)
	_ = f.likes.Delete(context.Background(), userA, userB)
	_ = f.likes.Delete(context.Background(), userB, userA)
	return nil
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{}
}

func (f *fakeMessages) deleteByMatch(matchID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.msgs[:0]
	for _, m := range f.msgs {
		if m.MatchID != matchID {
			kept = append(kept, m)
		}
	}
	f.msgs = kept
}

func (f *fakeMessages) Insert(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *msg
	cp.Sender = nil
	f.msgs = append(f.msgs, &cp)
	return nil
}

func (f *fakeMessages) ListByMatch(_ context.Context, matchID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.msgs {
		if m.MatchID == matchID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, matchID, readerID string, messageIDs []string, readAt time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var updated []string
	for _, m := range f.msgs {
		if !wanted[m.ID] || m.MatchID != matchID || m.ReceiverID != readerID || m.IsRead {
			continue
		}
		m.IsRead = true
		at := readAt
		m.ReadAt = &at
		updated = append(updated, m.ID)
	}
	return updated, nil
}

type storyKey struct{ story, user string }

type fakeStories struct {
	mu       sync.Mutex
	stories  map[string]*models.Story
	views    map[storyKey]time.Time
	likes    map[storyKey]bool
	comments []*models.StoryComment
	users    *fakeUsers
}

func newFakeStories(users *fakeUsers) *fakeStories {
	return &fakeStories{
		stories: make(map[string]*models.Story),
		views:   make(map[storyKey]time.Time),
		likes:   make(map[storyKey]bool),
		users:   users,
	}
}

func (f *fakeStories) add(id, authorID string, expiresAt time.Time) *models.Story {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &models.Story{
		ID:        id,
		UserID:    authorID,
		ImageURL:  "https://img.test/" + id,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	f.stories[id] = s
	return s
}

func (f *fakeStories) Create(_ context.Context, story *models.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *story
	cp.User = nil
	f.stories[story.ID] = &cp
	return nil
}

func (f *fakeStories) GetByID(_ context.Context, id string) (*models.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[id]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStories) ListByAuthors(_ context.Context, authorIDs []string, viewerID string, newestFirst bool) ([]models.StoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	authors := make(map[string]bool, len(authorIDs))
	for _, id := range authorIDs {
		authors[id] = true
	}
	now := time.Now()
	var out []models.StoryItem
	for _, s := range f.stories {
		if !authors[s.UserID] || !s.ExpiresAt.After(now) {
			continue
		}
		item := models.StoryItem{Story: *s}
		author := f.users.users[s.UserID]
		pub := author.Public()
		item.User = &pub
		for k := range f.likes {
			if k.story == s.ID {
				item.LikeCount++
			}
		}
		for _, c := range f.comments {
			if c.StoryID == s.ID {
				item.CommentCount++
			}
		}
		item.Liked = f.likes[storyKey{s.ID, viewerID}]
		_, item.Viewed = f.views[storyKey{s.ID, viewerID}]
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeStories) Delete(_ context.Context, storyID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[storyID]
	if !ok || s.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.stories, storyID)
	return nil
}

func (f *fakeStories) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now()
	for id, s := range f.stories {
		if !s.ExpiresAt.After(now) {
			delete(f.stories, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStories) InsertView(_ context.Context, storyID, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := storyKey{storyID, viewerID}
	if _, ok := f.views[k]; !ok {
		f.views[k] = time.Now().UTC()
	}
	return nil
}

func (f *fakeStories) CountViews(_ context.Context, storyID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.views {
		if k.story == storyID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStories) Viewers(_ context.Context, storyID string) ([]models.StoryViewer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StoryViewer
	for k, at := range f.views {
		if k.story != storyID {
			continue
		}
		out = append(out, models.StoryViewer{User: f.users.users[k.user].Public(), ViewedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out, nil
}

func (f *fakeStories) InsertLike(_ context.Context, storyID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := storyKey{storyID, userID}
	if f.likes[k] {
		return false, nil
	}
	f.likes[k] = true
	return true, nil
}

func (f *fakeStories) DeleteLike(_ context.Context, storyID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.likes, storyKey{storyID, userID})
	return nil
}

func (f *fakeStories) CountLikes(_ context.Context, storyID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.likes {
		if k.story == storyID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStories) InsertComment(_ context.Context, comment *models.StoryComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *comment
	cp.User = nil
	f.comments = append(f.comments, &cp)
	return nil
}

func (f *fakeStories) GetComment(_ context.Context, storyID, commentID string) (*models.StoryComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.comments {
		if c.StoryID == storyID && c.ID == commentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStories) ListComments(_ context.Context, storyID string) ([]models.StoryComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StoryComment
	for _, c := range f.comments {
		if c.StoryID == storyID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStories) DeleteComment(_ context.Context, storyID, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.StoryID == storyID && c.ID == commentID {
			f.comments = append(f.comments[:i], f.comments[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeCache struct {
	mu     sync.Mutex
	counts map[string]int64
	hits   int
	misses int
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: make(map[string]int64)}
}

func (f *fakeCache) GetLikeCount(_ context.Context, userID string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count, ok := f.counts[userID]
	if ok {
		f.hits++
	} else {
		f.misses++
	}
	return count, ok, nil
}

func (f *fakeCache) SetLikeCount(_ context.Context, userID string, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[userID] = count
	return nil
}

func (f *fakeCache) InvalidateLikeCount(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, userID)
	return nil
}

type publishedEvent struct {
	Room string
	Type string
	Data any
}

type directEvent struct {
	UserID string
	Type   string
	Data   any
}

type fakePub struct {
	mu        sync.Mutex
	published []publishedEvent
	direct    []directEvent
	online    map[string]bool
}

func newFakePub() *fakePub {
	return &fakePub{online: make(map[string]bool)}
}

func (f *fakePub) Publish(room, eventType string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedEvent{Room: room, Type: eventType, Data: data})
}

func (f *fakePub) SendToUser(userID, eventType string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, directEvent{UserID: userID, Type: eventType, Data: data})
}

func (f *fakePub) IsOnline(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *fakePub) setOnline(userID string, online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = online
}

func (f *fakePub) publishedOfType(eventType string) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedEvent
	for _, e := range f.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakePub) directOfType(eventType string) []directEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []directEvent
	for _, e := range f.direct {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeImages struct {
	mu   sync.Mutex
	keys []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{}
}

func (f *fakeImages) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "https://img.test/" + key, nil
}

type pushedNote struct {
	Token  string
	Sender string
	Text   string
}

type fakePusher struct {
	mu    sync.Mutex
	notes []pushedNote
	done  chan struct{}
}

func newFakePusher() *fakePusher {
	return &fakePusher{done: make(chan struct{}, 8)}
}

func (f *fakePusher) NotifyNewMessage(deviceToken, senderName, text string) error {
	f.mu.Lock()
	f.notes = append(f.notes, pushedNote{Token: deviceToken, Sender: senderName, Text: text})
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakePusher) all() []pushedNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushedNote(nil), f.notes...)
}

// env wires the fakes together the way cmd wires the real stack.
type env struct {
	users   *fakeUsers
	likes   *fakeLikes
	msgs    *fakeMessages
	matches *fakeMatches
	stories *fakeStories
	cache   *fakeCache
	pub     *fakePub
	images  *fakeImages
}

func newEnv() *env {
	users := newFakeUsers()
	likes := newFakeLikes(users)
	msgs := newFakeMessages()
	return &env{
		users:   users,
		likes:   likes,
		msgs:    msgs,
		matches: newFakeMatches(likes, msgs, users),
		stories: newFakeStories(users),
		cache:   newFakeCache(),
		pub:     newFakePub(),
		images:  newFakeImages(),
	}
}
