package conversations

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

var convCols = []string{"id", "participant_ids", "pair_key", "last_message_id", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func convRows(id, participants, pairKey, lastMessage string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(convCols).AddRow(id, participants, pairKey, lastMessage, now, now)
}

func TestCreate_Inserted(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT INTO conversations .*ON CONFLICT \(pair_key\) WHERE pair_key IS NOT NULL DO NOTHING`).
		WithArgs("u1,u2", "u1:u2").
		WillReturnRows(convRows("c1", "u1,u2", "u1:u2", ""))

	conv, created, err := repo.Create(context.Background(), &models.Conversation{
		ParticipantIDs: []string{"u1", "u2"}, PairKey: "u1:u2",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "c1", conv.ID)
	assert.Equal(t, []string{"u1", "u2"}, conv.ParticipantIDs)
}

func TestCreate_ConflictReturnsExisting(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO conversations`).
		WithArgs("u1,u2", "u1:u2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`(?s)SELECT .* FROM conversations WHERE pair_key = \$1`).
		WithArgs("u1:u2").
		WillReturnRows(convRows("c-existing", "u1,u2", "u1:u2", "m9"))

	conv, created, err := repo.Create(context.Background(), &models.Conversation{
		ParticipantIDs: []string{"u1", "u2"}, PairKey: "u1:u2",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "c-existing", conv.ID)
	assert.Equal(t, "m9", conv.LastMessageID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO conversations`).WillReturnError(errors.New("db down"))

	_, _, err := repo.Create(context.Background(), &models.Conversation{ParticipantIDs: []string{"u1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM conversations WHERE id::text = \$1`).
		WithArgs("c404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "c404")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByMember(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	rows := sqlmock.NewRows(convCols).
		AddRow("c2", "u1,u3", "u1:u3", "m2", now, now).
		AddRow("c1", "u1,u2", "u1:u2", "", now, now.Add(-time.Hour))

	mock.ExpectQuery(`(?s)WHERE \$1 = ANY\(participant_ids\)\s+ORDER BY updated_at DESC, id`).
		WithArgs("u1").
		WillReturnRows(rows)

	got, err := repo.ListByMember(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].ID)
	assert.Equal(t, "", got[1].LastMessageID)
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^DELETE FROM conversations WHERE id::text = \$1$`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM conversations`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "c1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "c1"), common.ErrorNotFound)
}

func TestSetLastMessage(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE conversations SET last_message_id = \$2::uuid, updated_at = now\(\)`).
		WithArgs("c1", "m1").
		WillReturnRows(convRows("c1", "u1,u2", "u1:u2", "m1"))

	conv, err := repo.SetLastMessage(context.Background(), "c1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", conv.LastMessageID)
}

func TestSetLastMessage_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE conversations`).WillReturnError(sql.ErrNoRows)

	_, err := repo.SetLastMessage(context.Background(), "gone", "m1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
