package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/dbx"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
)

const columns = `id::text, conversation_id::text, sender_id::text, text, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanMessage(rows *sql.Rows) (*models.Message, error) {
	m := &models.Message{}
	if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	query := `INSERT INTO messages (conversation_id, sender_id, text)
		VALUES ($1::uuid, $2::uuid, $3)
		RETURNING id::text, created_at`

	if err := r.db.QueryRowContext(ctx, query, m.ConversationID, m.SenderID, m.Text).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	m := &models.Message{}
	err := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM messages WHERE id::text = $1`, id).
		Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Message, error) {
	if len(ids) == 0 {
		return []*models.Message{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM messages WHERE id::text = ANY(string_to_array($1, ','))`,
		strings.Join(ids, ","))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	msgs, err := dbx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return msgs, nil
}

func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	query := `SELECT ` + columns + ` FROM (
			SELECT * FROM messages
			WHERE conversation_id::text = $1
			ORDER BY created_at DESC, id DESC
			LIMIT NULLIF($2, 0)
		) recent
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	msgs, err := dbx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return msgs, nil
}
