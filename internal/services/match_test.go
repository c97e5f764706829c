package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartlink-backend/internal/apperr"
	"heartlink-backend/internal/services"
)

func newMatchService(e *env) *services.MatchService {
	return services.NewMatchService(e.matches, e.cache, e.pub)
}

func TestAuthorize_RejectsOutsiders(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	e.users.add("mallory", "Mallory")
	m := e.matches.add("alice", "bob")
	svc := newMatchService(e)

	ctx := context.Background()
	_, err := svc.Authorize(ctx, m.ID, "alice")
	require.NoError(t, err)

	_, err = svc.Authorize(ctx, m.ID, "mallory")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.Authorize(ctx, "no-such-match", "alice")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCancel_CascadesMessagesAndLikes(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	likeSvc := newLikeService(e)
	chatSvc := newChatService(e, nil)
	matchSvc := newMatchService(e)

	ctx := context.Background()
	_, err := likeSvc.Like(ctx, "alice", "bob")
	require.NoError(t, err)
	res, err := likeSvc.Like(ctx, "bob", "alice")
	require.NoError(t, err)
	require.True(t, res.IsMatched)

	_, err = chatSvc.Send(ctx, res.MatchID, "alice", "hey")
	require.NoError(t, err)

	require.NoError(t, matchSvc.Cancel(ctx, res.MatchID, "alice"))

	// The match, its messages and both like edges are gone.
	_, err = matchSvc.Authorize(ctx, res.MatchID, "alice")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	msgs, err := e.msgs.ListByMatch(ctx, res.MatchID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	count, err := e.likes.CountReceived(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = e.likes.CountReceived(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)

	// The other participant hears about it.
	events := e.pub.directOfType("match-cancelled")
	require.Len(t, events, 1)
	assert.Equal(t, "bob", events[0].UserID)
}

func TestCancel_OnlyParticipantsMay(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	e.users.add("mallory", "Mallory")
	m := e.matches.add("alice", "bob")
	svc := newMatchService(e)

	err := svc.Cancel(context.Background(), m.ID, "mallory")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestCancel_RematchGetsNewIdentity(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	likeSvc := newLikeService(e)
	matchSvc := newMatchService(e)

	ctx := context.Background()
	_, err := likeSvc.Like(ctx, "alice", "bob")
	require.NoError(t, err)
	first, err := likeSvc.Like(ctx, "bob", "alice")
	require.NoError(t, err)

	require.NoError(t, matchSvc.Cancel(ctx, first.MatchID, "bob"))

	// Both sides must like again; the new match is a different row.
	_, err = likeSvc.Like(ctx, "alice", "bob")
	require.NoError(t, err)
	second, err := likeSvc.Like(ctx, "bob", "alice")
	require.NoError(t, err)
	require.True(t, second.IsMatched)
	assert.NotEqual(t, first.MatchID, second.MatchID)
}

func TestListForUser_ReturnsOnlyOwnMatches(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	e.users.add("carol", "Carol")
	e.matches.add("alice", "bob")
	e.matches.add("bob", "carol")
	svc := newMatchService(e)

	list, err := svc.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].User.ID)
}
