package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/client/services"
	"github.com/dmitrijs2005/quickchat/internal/client/thread"
	"github.com/dmitrijs2005/quickchat/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Restorer brings back the user of the saved credential.
type Restorer interface {
	RestoreUser(ctx context.Context) *models.User
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of an App.
type Deps struct {
	Auth      services.AuthService
	Directory services.DirectoryService
	Profile   services.ProfileService
	Thread    *thread.Synchronizer
	Session   Restorer
	Pinger    Pinger
	Logger    logging.Logger

	In  io.Reader
	Out io.Writer
}

type App struct {
	auth      services.AuthService
	directory services.DirectoryService
	profile   services.ProfileService
	thread    *thread.Synchronizer
	session   Restorer
	pinger    Pinger
	logger    logging.Logger

	reader *bufio.Reader
	out    *syncWriter

	mu       sync.Mutex
	user     *models.User
	mode     Mode
	current  *models.Conversation
	seen     map[string]bool
	chats    []models.Conversation
	contacts []models.User
}

func newApp(d Deps) *App {
	return &App{
		auth:      d.Auth,
		directory: d.Directory,
		profile:   d.Profile,
		thread:    d.Thread,
		session:   d.Session,
		pinger:    d.Pinger,
		logger:    d.Logger.With("module", "cli"),
		reader:    bufio.NewReader(d.In),
		out:       &syncWriter{w: d.Out},
	}
}

// syncWriter serializes output of the REPL and the background goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) currentUser() *models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

func (a *App) setUser(u *models.User) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}

func (a *App) isLoggedIn() bool {
	return a.currentUser() != nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.println("Switched to", mode, "mode")
	}
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var parts []string
	if a.user != nil {
		parts = append(parts, a.user.Name())
	}
	if a.mode != "" {
		parts = append(parts, string(a.mode))
	}
	if a.current != nil && a.user != nil {
		parts = append(parts, "| "+a.current.Title(a.user.ID))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Run restores the saved session, starts the background watchers and runs
// the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context, checkInterval time.Duration) {
	defer a.thread.Close()

	a.println("Welcome to QuickChat (type 'help' for commands)")

	if u := a.session.RestoreUser(ctx); u != nil {
		a.setUser(u)
		a.println("Logged in as", u.Name())
		if !u.IsRegistered {
			a.println("Your profile is incomplete, use 'editprofile' to finish it")
		}
	}

	go a.StartOnlineStatusWatcher(ctx, checkInterval)
	go a.follow(ctx)

	runREPL(ctx, a, a.getStatus, a.reader)
}

// StartOnlineStatusWatcher pings the backend every interval and reports
// switches between online and offline mode.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.pinger.Ping(ctx); err != nil {
		a.logger.Debug(ctx, "ping failed", "error", err)
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}
