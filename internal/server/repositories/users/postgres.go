package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/dbx"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id::text, identifier, secret_hash, salt,
		COALESCE(display_name, ''), COALESCE(bio, ''), COALESCE(avatar_ref, ''),
		is_registered, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	err := s.Scan(&u.ID, &u.Identifier, &u.SecretHash, &u.Salt,
		&u.DisplayName, &u.Bio, &u.AvatarRef,
		&u.IsRegistered, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUserRows(rows *sql.Rows) (*models.User, error) {
	return scanUser(rows)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (identifier, secret_hash, salt, display_name, bio, avatar_ref, is_registered)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)
		RETURNING id::text, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Identifier, user.SecretHash, user.Salt,
		user.DisplayName, user.Bio, user.AvatarRef, user.IsRegistered,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `id::text = $1`, id)
}

func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return r.getOne(ctx, `identifier = $1`, identifier)
}

// GetByIDs returns the users that exist among ids, in no particular order.
func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id::text = ANY(string_to_array($1, ','))`

	rows, err := r.db.QueryContext(ctx, query, strings.Join(ids, ","))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	users, err := dbx.CollectRows(rows, scanUserRows)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

// List returns every user except excludeID, named users first.
func (r *PostgresRepository) List(ctx context.Context, excludeID string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE id::text <> $1
		ORDER BY display_name NULLS LAST, identifier`

	rows, err := r.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	users, err := dbx.CollectRows(rows, scanUserRows)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

// Update applies upd to the user and returns the stored row. An empty
// update only reads the row.
func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if upd.Empty() {
		return r.GetByID(ctx, id)
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 5)
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if upd.DisplayName != nil {
		add("display_name = NULLIF($%d, '')", *upd.DisplayName)
	}
	if upd.Bio != nil {
		add("bio = NULLIF($%d, '')", *upd.Bio)
	}
	if upd.AvatarRef != nil {
		add("avatar_ref = NULLIF($%d, '')", *upd.AvatarRef)
	}
	if upd.IsRegistered != nil {
		add("is_registered = is_registered OR $%d", *upd.IsRegistered)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id::text = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}
