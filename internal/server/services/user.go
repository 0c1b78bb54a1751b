// Package services contains server-side business logic. This file implements
// UserService: signup, login, token issuing and rotation, and profile reads
// and updates.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/cryptox"
	"github.com/dmitrijs2005/quickchat/internal/dbx"
	"github.com/dmitrijs2005/quickchat/internal/server/auth"
	"github.com/dmitrijs2005/quickchat/internal/server/config"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SignupAttributes are stored on a new account.
type SignupAttributes struct {
	DisplayName  string
	IsRegistered bool
}

type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// Signup creates an account and logs it in. A taken identifier yields
// common.ErrorAlreadyExists.
func (s *UserService) Signup(ctx context.Context, identifier, secret string, attrs SignupAttributes) (*models.User, *TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, nil, fmt.Errorf("%w: identifier and secret are required", common.ErrorValidation)
	}

	salt := cryptox.NewSalt()
	user := &models.User{
		Identifier:   identifier,
		Salt:         salt,
		SecretHash:   cryptox.HashSecret([]byte(secret), salt),
		DisplayName:  strings.TrimSpace(attrs.DisplayName),
		IsRegistered: attrs.IsRegistered,
	}

	var (
		created *models.User
		pair    *TokenPair
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return err
			}
			return fmt.Errorf("error creating user: %w", err)
		}
		pair, err = s.generateTokenPair(ctx, created.ID, tx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return created, pair, nil
}

// Login checks the secret and returns the user with a fresh token pair.
// Unknown identifiers and wrong secrets both yield
// common.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, identifier, secret string) (*models.User, *TokenPair, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, common.ErrorInternal
	}
	if !cryptox.VerifySecret([]byte(secret), user.Salt, user.SecretHash) {
		return nil, nil, common.ErrInvalidCredentials
	}
	pair, err := s.generateTokenPair(ctx, user.ID, s.db)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// ListUsers returns every account except excludeID, ordered by name.
func (s *UserService) ListUsers(ctx context.Context, excludeID string) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx, excludeID)
}

// UpdateUser applies upd to targetID. Only the owner may update a record,
// and a display name cannot be cleared.
func (s *UserService) UpdateUser(ctx context.Context, callerID, targetID string, upd models.UserUpdate) (*models.User, error) {
	if callerID != targetID {
		return nil, common.ErrorPermissionDenied
	}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display name is required", common.ErrorValidation)
		}
		upd.DisplayName = &name
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		upd.Bio = &bio
	}
	if upd.IsRegistered != nil && !*upd.IsRegistered {
		return nil, fmt.Errorf("%w: registration cannot be revoked", common.ErrorValidation)
	}
	return s.repomanager.Users(s.db).Update(ctx, targetID, upd)
}

// PurgeExpiredTokens deletes refresh tokens that are past their expiry.
func (s *UserService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.repomanager.RefreshTokens(s.db).PurgeExpired(ctx, s.now())
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	expires := s.now().Add(s.refreshTokenValidityDuration)
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, userID, refresh, expires); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
