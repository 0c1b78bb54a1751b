// Package server wires the QuickChat backend: PostgreSQL repositories, the
// gRPC API, the live websocket endpoint and background maintenance.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/dmitrijs2005/quickchat/internal/server/config"
	"github.com/dmitrijs2005/quickchat/internal/server/live"
	"github.com/dmitrijs2005/quickchat/internal/server/pubsub"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/quickchat/internal/server/services"

	gs "github.com/dmitrijs2005/quickchat/internal/server/grpc"
)

type App struct {
	config              *config.Config
	logger              *logging.ZapLogger
	db                  *sql.DB
	broker              pubsub.Broker
	userService         *services.UserService
	conversationService *services.ConversationService
	messageService      *services.MessageService
	fileService         *services.FileService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.NewProductionZapLogger(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	broker, err := newBroker(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("broker init error: %w", err)
	}

	return &App{
		config:              c,
		logger:              logger,
		db:                  db,
		broker:              broker,
		userService:         services.NewUserService(db, rm, c),
		conversationService: services.NewConversationService(db, rm),
		messageService:      services.NewMessageService(db, rm, live.NewPublisher(broker), logger),
		fileService:         services.NewFileService(c),
	}, nil
}

// newBroker selects redis when an address is configured.
func newBroker(ctx context.Context, c *config.Config) (pubsub.Broker, error) {
	if c.RedisAddr == "" {
		return pubsub.NewMemoryBroker(), nil
	}
	return pubsub.NewRedisBrokerFromAddr(ctx, c.RedisAddr)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger,
		app.userService, app.conversationService, app.messageService, app.fileService,
		app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startLiveServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := live.NewServer(app.config.EndpointAddrHTTP, app.logger, app.broker, app.conversationService, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeTokens deletes expired refresh tokens every interval until ctx ends.
func (app *App) purgeTokens(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.userService.PurgeExpiredTokens(ctx)
			if err != nil {
				app.logger.Warn(ctx, "refresh token purge failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "purged expired refresh tokens", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startLiveServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeTokens(ctx, app.config.TokenPurgeInterval)
	}()

	wg.Wait()

	if err := app.broker.Close(); err != nil {
		app.logger.Warn(ctx, "broker close failed", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
	_ = app.logger.Sync()
}
