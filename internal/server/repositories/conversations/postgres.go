package conversations

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

const columns = `id::text, array_to_string(participant_ids, ','), COALESCE(pair_key, ''),
		COALESCE(last_message_id::text, ''), created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*models.Conversation, error) {
	c := &models.Conversation{}
	var participants string
	if err := s.Scan(&c.ID, &participants, &c.PairKey, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if participants != "" {
		c.ParticipantIDs = strings.Split(participants, ",")
	}
	return c, nil
}

func scanConversationRows(rows *sql.Rows) (*models.Conversation, error) {
	return scanConversation(rows)
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Conversation) (*models.Conversation, bool, error) {
	query := `INSERT INTO conversations (participant_ids, pair_key)
		VALUES (string_to_array($1, ','), NULLIF($2, ''))
		ON CONFLICT (pair_key) WHERE pair_key IS NOT NULL DO NOTHING
		RETURNING ` + columns

	conv, err := scanConversation(r.db.QueryRowContext(ctx, query, strings.Join(c.ParticipantIDs, ","), c.PairKey))
	if err == nil {
		return conv, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || c.PairKey == "" {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	conv, err = r.GetByPairKey(ctx, c.PairKey)
	if err != nil {
		return nil, false, err
	}
	return conv, false, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.Conversation, error) {
	conv, err := scanConversation(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM conversations WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return conv, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	return r.getOne(ctx, `id::text = $1`, id)
}

func (r *PostgresRepository) GetByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error) {
	return r.getOne(ctx, `pair_key = $1`, pairKey)
}

func (r *PostgresRepository) ListByMember(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query := `SELECT ` + columns + ` FROM conversations
		WHERE $1 = ANY(participant_ids)
		ORDER BY updated_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	convs, err := dbx.CollectRows(rows, scanConversationRows)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return convs, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetLastMessage(ctx context.Context, id, messageID string) (*models.Conversation, error) {
	query := `UPDATE conversations SET last_message_id = $2::uuid, updated_at = now()
		WHERE id::text = $1
		RETURNING ` + columns

	conv, err := scanConversation(r.db.QueryRowContext(ctx, query, id, messageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return conv, nil
}
