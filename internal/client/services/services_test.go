package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/quickchat/internal/client/backend/backendtest"
	"github.com/dmitrijs2005/quickchat/internal/client/localdb"
	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quickchat/internal/client/session"
	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/stretchr/testify/require"
)

const secret = "pw"

type device struct {
	client  *backendtest.Client
	session *session.Manager
}

func newServer() *backendtest.Server {
	srv := backendtest.NewServer()
	srv.AddUser(models.User{ID: "u1", Identifier: "+100", DisplayName: "Alice", IsRegistered: true}, secret)
	srv.AddUser(models.User{ID: "u2", Identifier: "+200", DisplayName: "Bob", IsRegistered: true}, secret)
	srv.AddUser(models.User{ID: "u3", Identifier: "+300", DisplayName: "Carol", IsRegistered: true}, secret)
	return srv
}

func newStore(t *testing.T) kv.Repository {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return kv.NewSQLiteRepository(db)
}

// newDevice returns a logged-out device with its own credential store.
func newDevice(t *testing.T, srv *backendtest.Server) *device {
	t.Helper()
	c := srv.Client()
	return &device{client: c, session: session.NewManager(newStore(t), c, logging.NewDiscardLogger())}
}

// loggedIn returns a device signed in as identifier with a saved credential.
func loggedIn(t *testing.T, srv *backendtest.Server, identifier string) *device {
	t.Helper()
	d := newDevice(t, srv)
	ctx := context.Background()
	_, err := d.client.Login(ctx, identifier, secret)
	require.NoError(t, err)
	require.NoError(t, d.session.Save(ctx, identifier, secret))
	return d
}
