package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/quickchat/internal/client/backend"
	"github.com/dmitrijs2005/quickchat/internal/client/config"
	"github.com/dmitrijs2005/quickchat/internal/client/feed"
	"github.com/dmitrijs2005/quickchat/internal/client/localdb"
	"github.com/dmitrijs2005/quickchat/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quickchat/internal/client/services"
	"github.com/dmitrijs2005/quickchat/internal/client/session"
	"github.com/dmitrijs2005/quickchat/internal/client/thread"
	"github.com/dmitrijs2005/quickchat/internal/filex"
	"github.com/dmitrijs2005/quickchat/internal/logging"
)

// NewApp opens the local store, connects to the backend and assembles the
// services on stdin/stdout. The returned func releases both connections.
func NewApp(ctx context.Context, cfg *config.Config, l logging.Logger) (*App, func(), error) {
	path, err := filex.EnsureParentDir(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	db, err := localdb.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	client, err := backend.NewGRPCClient(cfg.ServerEndpointAddr, cfg.LiveBaseURL)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	sess := session.NewManager(kv.NewSQLiteRepository(db), client, l)

	app := newApp(Deps{
		Auth:      services.NewAuthService(client, sess, services.NewLocalOTPProvider(l), cfg.AccountSecret, l),
		Directory: services.NewDirectoryService(client, sess, l),
		Profile:   services.NewProfileService(client, sess, l),
		Thread:    thread.New(client, newFeed(cfg, client, l), l, thread.WithRetrier(sess)),
		Session:   sess,
		Pinger:    client,
		Logger:    l,
		In:        os.Stdin,
		Out:       os.Stdout,
	})

	cleanup := func() {
		if err := errors.Join(client.Close(), db.Close()); err != nil {
			l.Error(ctx, "shutdown", "error", err)
		}
	}
	return app, cleanup, nil
}

// newFeed picks the change feed for the configured realtime mode. Auto
// starts with push and falls back to polling.
func newFeed(cfg *config.Config, b *backend.GRPCClient, l logging.Logger) feed.Feed {
	poll := feed.NewPollingFeed(b, cfg.PollInterval, l)
	switch cfg.RealtimeMode {
	case config.ModePoll:
		return poll
	case config.ModePush:
		return feed.NewWebSocketFeed(b, l)
	default:
		return feed.NewFallback(feed.NewWebSocketFeed(b, l), poll, l)
	}
}
