package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/client/backend"
	"github.com/dmitrijs2005/quickchat/internal/client/backend/backendtest"
	"github.com/dmitrijs2005/quickchat/internal/client/localdb"
	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quickchat/internal/client/services"
	"github.com/dmitrijs2005/quickchat/internal/client/session"
	"github.com/dmitrijs2005/quickchat/internal/client/thread"
	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret   = "pw"
	goodCode = "1234"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// codeAuth accepts goodCode for every phone and otherwise behaves like the
// real service.
type codeAuth struct {
	client    *backendtest.Client
	session   *session.Manager
	requested []string
}

func (c *codeAuth) RequestCode(_ context.Context, phone string) error {
	c.requested = append(c.requested, phone)
	return nil
}

func (c *codeAuth) Verify(ctx context.Context, phone, code string) (*services.LoginResult, error) {
	if code != goodCode {
		return nil, services.ErrInvalidCode
	}
	u, err := c.client.Login(ctx, phone, secret)
	if errors.Is(err, backend.ErrInvalidCredentials) {
		u, err = c.client.Signup(ctx, phone, secret, backend.SignupAttributes{})
	}
	if err != nil {
		return nil, err
	}
	if err := c.session.Save(ctx, phone, secret); err != nil {
		return nil, err
	}
	return &services.LoginResult{User: u, NeedsProfile: !u.IsRegistered}, nil
}

func (c *codeAuth) Logout(ctx context.Context) error {
	c.client.ResetSession()
	return c.session.Clear(ctx)
}

type harness struct {
	app    *App
	out    *lockedBuffer
	srv    *backendtest.Server
	client *backendtest.Client
	auth   *codeAuth
}

func newServer() *backendtest.Server {
	srv := backendtest.NewServer()
	srv.AddUser(models.User{ID: "u1", Identifier: "+100", DisplayName: "Alice", IsRegistered: true}, secret)
	srv.AddUser(models.User{ID: "u2", Identifier: "+200", DisplayName: "Bob", IsRegistered: true}, secret)
	srv.AddUser(models.User{ID: "u3", Identifier: "+300", DisplayName: "Carol", IsRegistered: true}, secret)
	return srv
}

func newHarness(t *testing.T, srv *backendtest.Server, input string) *harness {
	t.Helper()

	oldIs := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = oldIs })

	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	l := logging.NewDiscardLogger()
	client := srv.Client()
	sess := session.NewManager(kv.NewSQLiteRepository(db), client, l)
	auth := &codeAuth{client: client, session: sess}
	out := &lockedBuffer{}
	th := thread.New(client, srv, l, thread.WithRetrier(sess))
	t.Cleanup(th.Close)

	app := newApp(Deps{
		Auth:      auth,
		Directory: services.NewDirectoryService(client, sess, l),
		Profile:   services.NewProfileService(client, sess, l),
		Thread:    th,
		Session:   sess,
		Pinger:    client,
		Logger:    l,
		In:        strings.NewReader(input),
		Out:       out,
	})
	return &harness{app: app, out: out, srv: srv, client: client, auth: auth}
}

// loggedInHarness signs in as identifier without going through the prompts.
func loggedInHarness(t *testing.T, srv *backendtest.Server, identifier, input string) *harness {
	t.Helper()
	h := newHarness(t, srv, input)
	ctx := context.Background()
	u, err := h.client.Login(ctx, identifier, secret)
	require.NoError(t, err)
	require.NoError(t, h.auth.session.Save(ctx, identifier, secret))
	h.app.setUser(u)
	return h
}

func TestApp_LoginExistingUser(t *testing.T) {
	h := newHarness(t, newServer(), "+100\n"+goodCode+"\n")

	require.NoError(t, h.app.Login(context.Background()))

	assert.True(t, h.app.isLoggedIn())
	assert.Equal(t, []string{"+100"}, h.auth.requested)
	assert.Contains(t, h.out.String(), "Logged in as Alice")
	assert.Equal(t, "(Alice)", h.app.getStatus())
}

func TestApp_LoginWrongCode(t *testing.T) {
	h := newHarness(t, newServer(), "+100\n0000\n")

	err := h.app.Login(context.Background())
	assert.ErrorIs(t, err, services.ErrInvalidCode)
	assert.False(t, h.app.isLoggedIn())
}

func TestApp_LoginNewUserCompletesProfile(t *testing.T) {
	srv := newServer()
	h := newHarness(t, srv, "+999\n"+goodCode+"\nDave\nJust joined\n\n")

	require.NoError(t, h.app.Login(context.Background()))

	u := h.app.currentUser()
	require.NotNil(t, u)
	assert.Equal(t, "Dave", u.DisplayName)
	assert.True(t, u.IsRegistered)

	stored := srv.User(u.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.IsRegistered)
	assert.Equal(t, "Just joined", stored.Bio)
	assert.Contains(t, h.out.String(), "Profile saved")
}

func TestApp_CommandsNeedLogin(t *testing.T) {
	h := newHarness(t, newServer(), "")
	ctx := context.Background()

	assert.ErrorIs(t, h.app.Chats(ctx, ""), errNotLoggedIn)
	assert.ErrorIs(t, h.app.Contacts(ctx, ""), errNotLoggedIn)
	assert.ErrorIs(t, h.app.Send(ctx, "hi"), errNotLoggedIn)
	assert.ErrorIs(t, h.app.ShowProfile(ctx), errNotLoggedIn)
	assert.Zero(t, h.srv.TotalCalls())
}

func TestApp_EditProfileKeepsAndClears(t *testing.T) {
	srv := newServer()
	h := loggedInHarness(t, srv, "+100", "\nhello\n\n\n-\n\n")
	ctx := context.Background()

	require.NoError(t, h.app.EditProfile(ctx))
	assert.Equal(t, "Alice", srv.User("u1").DisplayName)
	assert.Equal(t, "hello", srv.User("u1").Bio)

	require.NoError(t, h.app.EditProfile(ctx))
	assert.Empty(t, srv.User("u1").Bio)

	require.NoError(t, h.app.ShowProfile(ctx))
	assert.Contains(t, h.out.String(), "+100")
}

func TestApp_ChatFlow(t *testing.T) {
	srv := newServer()
	h := loggedInHarness(t, srv, "+100", "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.app.follow(ctx)

	require.NoError(t, h.app.Contacts(ctx, ""))
	assert.Contains(t, h.out.String(), "1. Bob (+200)")
	assert.Contains(t, h.out.String(), "2. Carol (+300)")

	require.NoError(t, h.app.Chat(ctx, "1"))
	assert.Contains(t, h.out.String(), "Chat with Bob")
	assert.Contains(t, h.out.String(), "No messages yet")
	assert.Equal(t, "(Alice | Bob)", h.app.getStatus())

	require.NoError(t, h.app.Send(ctx, "hello"))
	require.NoError(t, h.app.History(ctx))
	assert.Contains(t, h.out.String(), "You: hello")

	convID := h.app.thread.ConversationID()
	assert.NotEmpty(t, srv.Conversation(convID).LastMessageID)

	bob := srv.Client()
	_, err := bob.Login(ctx, "+200", secret)
	require.NoError(t, err)
	_, err = bob.CreateMessage(ctx, convID, "hey alice")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "Bob: hey alice")
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.app.Chats(ctx, "bo"))
	assert.Contains(t, h.out.String(), "1. Bob | ")
}

func TestApp_OpenUnknownChat(t *testing.T) {
	h := loggedInHarness(t, newServer(), "+100", "")

	err := h.app.Open(context.Background(), "nope")
	assert.EqualError(t, err, `no chat "nope"`)
	assert.Empty(t, h.app.thread.ConversationID())
}

func TestApp_FailedSendResendAndDiscard(t *testing.T) {
	srv := newServer()
	srv.AddConversation(models.Conversation{ID: "c1", ParticipantIDs: []string{"u1", "u2"}})
	h := loggedInHarness(t, srv, "+100", "")
	ctx := context.Background()

	require.NoError(t, h.app.Chats(ctx, ""))
	require.NoError(t, h.app.Open(ctx, "1"))

	srv.FailNext(rpc.MethodCreateMessage, backend.ErrUnavailable)
	err := h.app.Send(ctx, "first try")
	require.ErrorIs(t, err, backend.ErrUnavailable)

	msgs := h.app.thread.Messages()
	require.Len(t, msgs, 1)
	key := shortKey(msgs[0].LocalKey)
	assert.Contains(t, h.out.String(), "resend "+key)

	require.NoError(t, h.app.Resend(ctx, key))
	require.True(t, h.app.thread.Messages()[0].Confirmed())

	srv.FailNext(rpc.MethodCreateMessage, backend.ErrUnavailable)
	require.Error(t, h.app.Send(ctx, "second try"))
	msgs = h.app.thread.Messages()
	require.Len(t, msgs, 2)

	require.NoError(t, h.app.Discard(ctx, shortKey(msgs[1].LocalKey)))
	assert.Len(t, h.app.thread.Messages(), 1)
	assert.ErrorIs(t, h.app.Discard(ctx, "zzz"), thread.ErrUnknownEntry)
}

func TestApp_DeleteOpenChat(t *testing.T) {
	srv := newServer()
	srv.AddConversation(models.Conversation{ID: "c1", ParticipantIDs: []string{"u1", "u2"}})
	h := loggedInHarness(t, srv, "+100", "")
	ctx := context.Background()

	require.NoError(t, h.app.Open(ctx, "c1"))
	require.NoError(t, h.app.Delete(ctx, ""))

	assert.Nil(t, srv.Conversation("c1"))
	assert.Empty(t, h.app.thread.ConversationID())
	assert.Equal(t, "(Alice)", h.app.getStatus())

	assert.ErrorIs(t, h.app.Send(ctx, "hello?"), thread.ErrNotOpen)
}

func TestApp_Logout(t *testing.T) {
	srv := newServer()
	h := loggedInHarness(t, srv, "+100", "")
	ctx := context.Background()

	require.NoError(t, h.app.Logout(ctx))
	assert.False(t, h.app.isLoggedIn())
	assert.Nil(t, h.auth.session.RestoreUser(ctx))
}

func TestApp_ExpiredSessionReturnsToLogin(t *testing.T) {
	srv := newServer()
	h := loggedInHarness(t, srv, "+100", "")
	ctx := context.Background()

	require.NoError(t, h.app.Chats(ctx, ""))

	require.NoError(t, h.auth.session.Clear(ctx))
	srv.ExpireSessions()

	require.NoError(t, h.app.Chats(ctx, ""))
	assert.False(t, h.app.isLoggedIn())
	assert.Equal(t, "", h.app.getStatus())
	assert.Contains(t, h.out.String(), "Session expired, please log in again")

	err := h.app.Chats(ctx, "")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestApp_RunRestoresSession(t *testing.T) {
	lines := capturePrints(t)
	srv := newServer()
	h := loggedInHarness(t, srv, "+100", "chats\nexit\n")
	h.app.setUser(nil)
	h.client.ResetSession()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.app.Run(ctx, time.Hour)

	assert.Contains(t, h.out.String(), "Logged in as Alice")
	assert.Contains(t, h.out.String(), "No chats yet")
	assert.Contains(t, *lines, "Bye!")
}

func TestApp_OnlineStatus(t *testing.T) {
	srv := newServer()
	h := newHarness(t, srv, "")
	ctx := context.Background()

	h.app.checkOnline(ctx)
	assert.Equal(t, "(online)", h.app.getStatus())

	srv.FailNext(rpc.MethodPing, backend.ErrUnavailable)
	h.app.checkOnline(ctx)
	assert.Equal(t, "(offline)", h.app.getStatus())
	assert.Equal(t, 1, strings.Count(h.out.String(), "Switched to offline mode"))

	h.app.checkOnline(ctx)
	assert.Equal(t, 2, strings.Count(h.out.String(), "Switched to online mode"))
}
