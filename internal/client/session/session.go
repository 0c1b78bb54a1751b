// Package session persists the device credential and uses it to silently
// re-authenticate when the backend reports an invalid session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/quickchat/internal/client/backend"
	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/logging"
)

var ErrSessionExpired = errors.New("session expired, please log in again")

// Credential is the identifier/secret pair kept on the device.
type Credential struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// Authenticator is the part of backend.Backend the manager needs.
type Authenticator interface {
	Login(ctx context.Context, identifier, secret string) (*models.User, error)
	CurrentUser() *models.User
	ResetSession()
}

type Manager struct {
	store   kv.Repository
	backend Authenticator
	logger  logging.Logger
}

func NewManager(store kv.Repository, b Authenticator, l logging.Logger) *Manager {
	return &Manager{store: store, backend: b, logger: l.With("module", "session")}
}

// Save stores the credential, replacing any previous one. Incomplete pairs
// are ignored with a warning.
func (m *Manager) Save(ctx context.Context, identifier, secret string) error {
	if identifier == "" || secret == "" {
		m.logger.Warn(ctx, "credential not saved: identifier and secret are required")
		return nil
	}

	data, err := json.Marshal(Credential{Identifier: identifier, Secret: secret})
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, common.SessionStorageKey, string(data)); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Remove(ctx, common.SessionStorageKey); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Load returns the stored credential or nil when there is none.
func (m *Manager) Load(ctx context.Context) (*Credential, error) {
	raw, ok, err := m.store.Get(ctx, common.SessionStorageKey)
	if err != nil || !ok {
		return nil, err
	}

	var c Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if c.Identifier == "" || c.Secret == "" {
		return nil, nil
	}
	return &c, nil
}

// RestoreUser returns the user of the stored credential, reusing the cached
// identity when it matches and logging in otherwise. It returns nil when
// there is no credential or anything fails.
func (m *Manager) RestoreUser(ctx context.Context) *models.User {
	cred, err := m.Load(ctx)
	if err != nil {
		m.logger.Error(ctx, "failed to read credential", "error", err)
		return nil
	}
	if cred == nil {
		return nil
	}

	if u := m.backend.CurrentUser(); u != nil && u.Identifier == cred.Identifier {
		return u
	}

	u, err := m.backend.Login(ctx, cred.Identifier, cred.Secret)
	if err != nil {
		m.logger.Warn(ctx, "session restore failed", "identifier", cred.Identifier, "error", err)
		return nil
	}
	return u
}

// Retry runs fn and, if the backend rejected the session, restores it once
// and runs fn exactly once more.
func (m *Manager) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if !errors.Is(err, backend.ErrSessionInvalid) {
		return err
	}

	m.logger.Info(ctx, "session invalid, restoring")
	m.backend.ResetSession()

	if u := m.RestoreUser(ctx); u == nil {
		return ErrSessionExpired
	}

	err = fn(ctx)
	if errors.Is(err, backend.ErrSessionInvalid) {
		return ErrSessionExpired
	}
	return err
}
