package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	ops  []string
	msgs []*models.MessageView
	err  error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, op string, m *models.MessageView) error {
	p.ops = append(p.ops, op)
	p.msgs = append(p.msgs, m)
	return p.err
}

func newMessageService(t *testing.T) (*MessageService, *memStore, *recordingPublisher) {
	t.Helper()
	db, _ := newMockDB(t)
	store := newMemStore()
	store.addUser("u1", "+1", "Alice")
	store.addUser("u2", "+2", "Bob")
	store.addUser("u3", "+3", "Carol")
	store.addConversation("c1", "u1", "u2")

	pub := &recordingPublisher{}
	return NewMessageService(db, &memRepoManager{s: store}, pub, logging.NewDiscardLogger()), store, pub
}

func TestMessageCreate_StoresAndPublishes(t *testing.T) {
	s, store, pub := newMessageService(t)

	m, err := s.Create(context.Background(), "u1", "c1", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Text)
	assert.Equal(t, "u1", m.SenderID)
	require.NotNil(t, m.Sender)
	assert.Equal(t, "Alice", m.Sender.DisplayName)
	assert.Contains(t, store.msgs, m.ID)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, rpc.OpCreate, pub.ops[0])
	assert.Equal(t, m.ID, pub.msgs[0].ID)
}

func TestMessageCreate_PublishFailureIsNotFatal(t *testing.T) {
	s, _, pub := newMessageService(t)
	pub.err = errors.New("broker down")

	_, err := s.Create(context.Background(), "u1", "c1", "hi")
	assert.NoError(t, err)
}

func TestMessageCreate_Rejects(t *testing.T) {
	s, store, pub := newMessageService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "u1", "c1", "   ")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.Create(ctx, "u1", "c1", strings.Repeat("x", MaxMessageLength+1))
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.Create(ctx, "u3", "c1", "hi")
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)

	_, err = s.Create(ctx, "u1", "gone", "hi")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.Empty(t, store.msgs)
	assert.Empty(t, pub.msgs)
}

func TestMessageList_OldestFirstWithSenders(t *testing.T) {
	s, _, _ := newMessageService(t)
	ctx := context.Background()

	for _, m := range []struct{ from, text string }{{"u1", "one"}, {"u2", "two"}, {"u1", "three"}} {
		_, err := s.Create(ctx, m.from, "c1", m.text)
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "u2", "c1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Text)
	assert.Equal(t, "Bob", all[1].Sender.DisplayName)

	last, err := s.List(ctx, "u2", "c1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Text)
	assert.Equal(t, "three", last[1].Text)

	_, err = s.List(ctx, "u3", "c1", 0)
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)

	_, err = s.List(ctx, "u1", "c1", -1)
	assert.ErrorIs(t, err, common.ErrorValidation)
}
