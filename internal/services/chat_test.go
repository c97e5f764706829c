package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartlink-backend/internal/apperr"
	"heartlink-backend/internal/models"
	"heartlink-backend/internal/services"
	"heartlink-backend/internal/ws"
)

func newChatService(e *env, push services.Pusher) *services.ChatService {
	return services.NewChatService(e.msgs, e.matches, e.users, e.pub, push)
}

func TestSend_PersistsAndBroadcasts(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	m := e.matches.add("alice", "bob")
	e.pub.setOnline("bob", true)
	svc := newChatService(e, nil)

	msg, err := svc.Send(context.Background(), m.ID, "alice", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "bob", msg.ReceiverID)
	assert.False(t, msg.IsRead)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "Alice", msg.Sender.Nickname)

	events := e.pub.publishedOfType("new-message")
	require.Len(t, events, 1)
	assert.Equal(t, ws.MatchRoom(m.ID), events[0].Room)

	stored, err := e.msgs.ListByMatch(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, msg.ID, stored[0].ID)
}

func TestSend_EmptyTextIsRejected(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	m := e.matches.add("alice", "bob")
	svc := newChatService(e, nil)

	_, err := svc.Send(context.Background(), m.ID, "alice", "   ")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
}

func TestSend_OutsiderIsForbidden(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	e.users.add("mallory", "Mallory")
	m := e.matches.add("alice", "bob")
	svc := newChatService(e, nil)

	_, err := svc.Send(context.Background(), m.ID, "mallory", "hi")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestSend_AfterCancelIsNotFound(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	m := e.matches.add("alice", "bob")
	chatSvc := newChatService(e, nil)
	matchSvc := newMatchService(e)

	ctx := context.Background()
	require.NoError(t, matchSvc.Cancel(ctx, m.ID, "alice"))

	_, err := chatSvc.Send(ctx, m.ID, "alice", "still there?")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSend_OfflineReceiverGetsPush(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	bob := e.users.add("bob", "Bob")
	token := "device-token-bob"
	require.NoError(t, e.users.UpdatePushToken(context.Background(), bob.ID, &token))
	m := e.matches.add("alice", "bob")
	pusher := newFakePusher()
	svc := newChatService(e, pusher)

	_, err := svc.Send(context.Background(), m.ID, "alice", "you there?")
	require.NoError(t, err)

	select {
	case <-pusher.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for push notification")
	}
	notes := pusher.all()
	require.Len(t, notes, 1)
	assert.Equal(t, token, notes[0].Token)
	assert.Equal(t, "Alice", notes[0].Sender)
}

func TestSend_OnlineReceiverGetsNoPush(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	bob := e.users.add("bob", "Bob")
	token := "device-token-bob"
	require.NoError(t, e.users.UpdatePushToken(context.Background(), bob.ID, &token))
	m := e.matches.add("alice", "bob")
	e.pub.setOnline("bob", true)
	pusher := newFakePusher()
	svc := newChatService(e, pusher)

	_, err := svc.Send(context.Background(), m.ID, "alice", "ping")
	require.NoError(t, err)
	assert.Empty(t, pusher.all())
}

func TestMarkRead_TransitionsOnlyAddressedUnread(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	m := e.matches.add("alice", "bob")
	svc := newChatService(e, nil)

	ctx := context.Background()
	toBob, err := svc.Send(ctx, m.ID, "alice", "one")
	require.NoError(t, err)
	toAlice, err := svc.Send(ctx, m.ID, "bob", "two")
	require.NoError(t, err)

	// Bob acks both ids; only the one addressed to him transitions.
	updated, err := svc.MarkRead(ctx, m.ID, "bob", []string{toBob.ID, toAlice.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{toBob.ID}, updated)

	events := e.pub.publishedOfType("messages-read")
	require.Len(t, events, 1)
	receipt, ok := events[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{toBob.ID}, receipt["message_ids"])
	assert.Equal(t, "bob", receipt["read_by"])
}

func TestMarkRead_RepeatIsSilent(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	m := e.matches.add("alice", "bob")
	svc := newChatService(e, nil)

	ctx := context.Background()
	msg, err := svc.Send(ctx, m.ID, "alice", "one")
	require.NoError(t, err)

	updated, err := svc.MarkRead(ctx, m.ID, "bob", []string{msg.ID})
	require.NoError(t, err)
	require.Len(t, updated, 1)

	// Re-acking an already-read message transitions nothing and emits
	// no receipt.
	updated, err = svc.MarkRead(ctx, m.ID, "bob", []string{msg.ID})
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Len(t, e.pub.publishedOfType("messages-read"), 1)
}

func TestMarkRead_EmptyIdsIsNoop(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	m := e.matches.add("alice", "bob")
	svc := newChatService(e, nil)

	updated, err := svc.MarkRead(context.Background(), m.ID, "bob", nil)
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Empty(t, e.pub.publishedOfType("messages-read"))
}

func TestHistory_OrderedAndGuarded(t *testing.T) {
	e := newEnv()
	e.users.add("alice", "Alice")
	e.users.add("bob", "Bob")
	e.users.add("mallory", "Mallory")
	m := e.matches.add("alice", "bob")
	svc := newChatService(e, nil)

	ctx := context.Background()
	var sent []*models.Message
	for _, text := range []string{"one", "two", "three"} {
		msg, err := svc.Send(ctx, m.ID, "alice", text)
		require.NoError(t, err)
		sent = append(sent, msg)
	}

	history, err := svc.History(ctx, m.ID, "bob")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, msg := range history {
		assert.Equal(t, sent[i].ID, msg.ID)
	}

	_, err = svc.History(ctx, m.ID, "mallory")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}
