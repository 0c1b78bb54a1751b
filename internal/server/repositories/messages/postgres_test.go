package messages

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var msgCols = []string{"id", "conversation_id", "sender_id", "text", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)INSERT INTO messages \(conversation_id, sender_id, text\)`).
		WithArgs("c1", "u1", "hello").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("m1", at))

	m, err := repo.Create(context.Background(), &models.Message{ConversationID: "c1", SenderID: "u1", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	assert.True(t, m.CreatedAt.Equal(at))
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO messages`).WillReturnError(errors.New("check violation"))

	_, err := repo.Create(context.Background(), &models.Message{ConversationID: "c1", SenderID: "u1", Text: " "})
	require.Error(t, err)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM messages WHERE id::text = \$1`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "m404")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByIDs(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM messages WHERE id::text = ANY`).
		WithArgs("m1,m2").
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", "c1", "u1", "a", time.Now()).
			AddRow("m2", "c2", "u2", "b", time.Now()))

	got, err := repo.GetByIDs(context.Background(), []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListByConversation(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	mock.ExpectQuery(`(?s)LIMIT NULLIF\(\$2, 0\)\s*\) recent\s+ORDER BY created_at, id$`).
		WithArgs("c1", 0).
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", "c1", "u1", "hello", t1).
			AddRow("m2", "c1", "u2", "hi", t2))

	got, err := repo.ListByConversation(context.Background(), "c1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Text)
	assert.True(t, got[1].CreatedAt.After(got[0].CreatedAt))
}

func TestListByConversation_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM messages`).WillReturnError(errors.New("db down"))

	_, err := repo.ListByConversation(context.Background(), "c1", 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
