// Package backendtest provides an in-memory backend for client tests. One
// Server holds the records; each Client is an independent session on it, so
// several users can be simulated at once.
package backendtest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/client/backend"
	"github.com/dmitrijs2005/quickchat/internal/client/feed"
	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
)

type Server struct {
	mu sync.Mutex

	users    map[string]*models.User
	secrets  map[string]string
	convs    map[string]*models.Conversation
	messages []models.Message
	files    map[string][]byte
	seq      int
	clock    time.Time
	epoch    int

	calls    map[string]int
	failures map[string][]error
	watchers map[string][]chan feed.Update

	// LeakConversations makes ListConversations ignore membership.
	LeakConversations bool
}

func NewServer() *Server {
	return &Server{
		users:    map[string]*models.User{},
		secrets:  map[string]string{},
		convs:    map[string]*models.Conversation{},
		files:    map[string][]byte{},
		clock:    time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		calls:    map[string]int{},
		failures: map[string][]error{},
		watchers: map[string][]chan feed.Update{},
	}
}

// AddUser stores u with secret as its credential.
func (s *Server) AddUser(u models.User, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.ID] = &cp
	s.secrets[u.Identifier] = secret
}

// AddConversation stores c as is, without any checks.
func (s *Server) AddConversation(c models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = s.tick()
	}
	s.convs[c.ID] = &cp
}

func (s *Server) User(id string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (s *Server) Conversation(id string) *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// Calls returns how often method (an rpc.Method* name) was called.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls counts every call made to the server.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// FailNext makes the next call of method return err.
func (s *Server) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], err)
}

// ExpireSessions invalidates every logged-in client.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// Client opens a new, logged-out session.
func (s *Server) Client() *Client {
	return &Client{srv: s}
}

// Watch implements feed.Feed with pushed create events.
func (s *Server) Watch(ctx context.Context, conversationID string) (<-chan feed.Update, error) {
	in := make(chan feed.Update, 16)
	s.mu.Lock()
	s.watchers[conversationID] = append(s.watchers[conversationID], in)
	s.mu.Unlock()

	out := make(chan feed.Update)
	go func() {
		defer close(out)
		defer s.unwatch(conversationID, in)
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-in:
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Server) unwatch(conversationID string, ch chan feed.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[conversationID] = slices.DeleteFunc(s.watchers[conversationID], func(c chan feed.Update) bool { return c == ch })
}

func (s *Server) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

// enter records the call and returns an injected failure, if any. It must
// be called with the lock held.
func (s *Server) enter(method string) error {
	s.calls[method]++
	if errs := s.failures[method]; len(errs) > 0 {
		s.failures[method] = errs[1:]
		return errs[0]
	}
	return nil
}

func (s *Server) resolveMessage(m models.Message) models.Message {
	if u, ok := s.users[m.SenderID]; ok {
		cp := *u
		m.Sender = &cp
	}
	return m
}

func (s *Server) resolveConversation(c *models.Conversation) models.Conversation {
	out := *c
	out.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	out.Participants = nil
	for _, id := range c.ParticipantIDs {
		if u, ok := s.users[id]; ok {
			out.Participants = append(out.Participants, *u)
		}
	}
	out.LastMessage = nil
	for _, m := range s.messages {
		if m.ID == c.LastMessageID {
			lm := s.resolveMessage(m)
			out.LastMessage = &lm
		}
	}
	return out
}

// Client is one session against a Server and implements backend.Backend.
type Client struct {
	srv     *Server
	current *models.User
	epoch   int
}

var _ backend.Backend = (*Client)(nil)

// authed records the call and checks the session. It returns with the
// server lock held on success.
func (c *Client) authed(method string) (string, error) {
	c.srv.mu.Lock()
	if err := c.srv.enter(method); err != nil {
		c.srv.mu.Unlock()
		return "", err
	}
	if c.current == nil || c.epoch != c.srv.epoch {
		c.srv.mu.Unlock()
		return "", backend.ErrSessionInvalid
	}
	return c.current.ID, nil
}

func (c *Client) Ping(context.Context) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return c.srv.enter(rpc.MethodPing)
}

func (c *Client) Login(_ context.Context, identifier, secret string) (*models.User, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(rpc.MethodLogin); err != nil {
		return nil, err
	}
	if stored, ok := s.secrets[identifier]; !ok || stored != secret {
		return nil, backend.ErrInvalidCredentials
	}
	for _, u := range s.users {
		if u.Identifier == identifier {
			cp := *u
			c.current = &cp
			c.epoch = s.epoch
			out := cp
			return &out, nil
		}
	}
	return nil, backend.ErrInvalidCredentials
}

func (c *Client) Signup(_ context.Context, identifier, secret string, attrs backend.SignupAttributes) (*models.User, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(rpc.MethodSignup); err != nil {
		return nil, err
	}
	if _, ok := s.secrets[identifier]; ok {
		return nil, backend.ErrAlreadyExists
	}
	u := &models.User{ID: s.nextID("u"), Identifier: identifier, DisplayName: attrs.DisplayName, IsRegistered: attrs.IsRegistered}
	s.users[u.ID] = u
	s.secrets[identifier] = secret

	cp := *u
	c.current = &cp
	c.epoch = s.epoch
	out := cp
	return &out, nil
}

func (c *Client) CurrentUser() *models.User {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if c.current == nil {
		return nil
	}
	u := *c.current
	return &u
}

func (c *Client) ResetSession() {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	c.current = nil
}

func (c *Client) AccessToken() string {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return "token-" + c.current.ID
}

func (c *Client) LiveURL(conversationID string) string {
	return "ws://backendtest" + rpc.LivePath(conversationID)
}

func (c *Client) GetUser(_ context.Context, id string) (*models.User, error) {
	if _, err := c.authed(rpc.MethodGetUser); err != nil {
		return nil, err
	}
	defer c.srv.mu.Unlock()
	u, ok := c.srv.users[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (c *Client) ListUsers(_ context.Context, excludeID string) ([]models.User, error) {
	if _, err := c.authed(rpc.MethodListUsers); err != nil {
		return nil, err
	}
	defer c.srv.mu.Unlock()
	var out []models.User
	for _, u := range c.srv.users {
		if u.ID != excludeID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Client) UpdateUser(_ context.Context, upd backend.UserUpdate) (*models.User, error) {
	caller, err := c.authed(rpc.MethodUpdateUser)
	if err != nil {
		return nil, err
	}
	defer c.srv.mu.Unlock()

	id := upd.ID
	if id == "" {
		id = caller
	}
	if id != caller {
		return nil, fmt.Errorf("%w: only the owner can update a user", backend.ErrPermissionDenied)
	}
	u, ok := c.srv.users[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.AvatarRef != nil {
		u.AvatarRef = *upd.AvatarRef
	}
	if upd.IsRegistered != nil {
		if !*upd.IsRegistered {
			return nil, fmt.Errorf("%w: registration cannot be undone", backend.ErrValidation)
		}
		u.IsRegistered = true
	}
	cp := *u
	c.current = &cp
	out := cp
	return &out, nil
}

func (c *Client) ListConversations(_ context.Context, memberID string) ([]models.Conversation, error) {
	if _, err := c.authed(rpc.MethodListConversations); err != nil {
		return nil, err
	}
	s := c.srv
	defer s.mu.Unlock()

	var out []models.Conversation
	for _, cv := range s.convs {
		if s.LeakConversations || cv.HasMember(memberID) {
			out = append(out, s.resolveConversation(cv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func pairOf(cv *models.Conversation, a, b string) bool {
	return len(cv.ParticipantIDs) == 2 && cv.HasMember(a) && cv.HasMember(b) && a != b
}

func (c *Client) FindConversation(_ context.Context, userA, userB string) (*models.Conversation, error) {
	caller, err := c.authed(rpc.MethodFindConversation)
	if err != nil {
		return nil, err
	}
	s := c.srv
	defer s.mu.Unlock()

	if caller != userA && caller != userB {
		return nil, backend.ErrPermissionDenied
	}
	for _, cv := range s.convs {
		if pairOf(cv, userA, userB) {
			out := s.resolveConversation(cv)
			return &out, nil
		}
	}
	return nil, backend.ErrNotFound
}

func (c *Client) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	caller, err := c.authed(rpc.MethodGetConversation)
	if err != nil {
		return nil, err
	}
	s := c.srv
	defer s.mu.Unlock()

	cv, ok := s.convs[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	if !cv.HasMember(caller) {
		return nil, backend.ErrPermissionDenied
	}
	out := s.resolveConversation(cv)
	return &out, nil
}

func (c *Client) CreateConversation(_ context.Context, participantIDs []string) (*models.Conversation, error) {
	caller, err := c.authed(rpc.MethodCreateConversation)
	if err != nil {
		return nil, err
	}
	s := c.srv
	defer s.mu.Unlock()

	if !slices.Contains(participantIDs, caller) {
		return nil, fmt.Errorf("%w: caller must participate", backend.ErrPermissionDenied)
	}
	if len(slices.Compact(slices.Sorted(slices.Values(participantIDs)))) < 2 {
		return nil, fmt.Errorf("%w: at least two participants are required", backend.ErrValidation)
	}
	for _, id := range participantIDs {
		if _, ok := s.users[id]; !ok {
			return nil, fmt.Errorf("%w: unknown participant", backend.ErrValidation)
		}
	}
	cv := &models.Conversation{ID: s.nextID("c"), ParticipantIDs: slices.Clone(participantIDs), UpdatedAt: s.tick()}
	s.convs[cv.ID] = cv
	out := s.resolveConversation(cv)
	return &out, nil
}

func (c *Client) DeleteConversation(_ context.Context, id string) error {
	caller, err := c.authed(rpc.MethodDeleteConversation)
	if err != nil {
		return err
	}
	s := c.srv
	defer s.mu.Unlock()

	cv, ok := s.convs[id]
	if !ok {
		return backend.ErrNotFound
	}
	if !cv.HasMember(caller) {
		return backend.ErrPermissionDenied
	}
	delete(s.convs, id)
	return nil
}

func (c *Client) SetLastMessage(_ context.Context, conversationID, messageID string) error {
	caller, err := c.authed(rpc.MethodSetLastMessage)
	if err != nil {
		return err
	}
	s := c.srv
	defer s.mu.Unlock()

	cv, ok := s.convs[conversationID]
	if !ok {
		return backend.ErrNotFound
	}
	if !cv.HasMember(caller) {
		return backend.ErrPermissionDenied
	}
	cv.LastMessageID = messageID
	cv.UpdatedAt = s.tick()
	return nil
}

func (c *Client) ListMessages(_ context.Context, conversationID string, limit int) ([]models.Message, error) {
	caller, err := c.authed(rpc.MethodListMessages)
	if err != nil {
		return nil, err
	}
	s := c.srv
	defer s.mu.Unlock()

	cv, ok := s.convs[conversationID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	if !cv.HasMember(caller) {
		return nil, backend.ErrPermissionDenied
	}
	var out []models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, s.resolveMessage(m))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (c *Client) CreateMessage(_ context.Context, conversationID, text string) (*models.Message, error) {
	caller, err := c.authed(rpc.MethodCreateMessage)
	if err != nil {
		return nil, err
	}
	s := c.srv
	defer s.mu.Unlock()

	cv, ok := s.convs[conversationID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	if !cv.HasMember(caller) {
		return nil, backend.ErrPermissionDenied
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", backend.ErrValidation)
	}

	m := models.Message{
		ID:             s.nextID("m"),
		ConversationID: conversationID,
		SenderID:       caller,
		Text:           text,
		CreatedAt:      s.tick(),
		Status:         models.StatusConfirmed,
	}
	s.messages = append(s.messages, m)
	out := s.resolveMessage(m)

	for _, w := range s.watchers[conversationID] {
		select {
		case w <- feed.Update{Op: feed.OpCreate, Message: out}:
		default:
		}
	}
	return &out, nil
}

func (c *Client) UploadFile(_ context.Context, name, _ string, data []byte) (string, error) {
	caller, err := c.authed(rpc.MethodCreateUpload)
	if err != nil {
		return "", err
	}
	defer c.srv.mu.Unlock()

	key := "avatars/" + caller + "/" + name
	c.srv.files[key] = slices.Clone(data)
	return key, nil
}

func (c *Client) ResolveFile(_ context.Context, ref string) (string, error) {
	if _, err := c.authed(rpc.MethodResolveFile); err != nil {
		return "", err
	}
	defer c.srv.mu.Unlock()

	if _, ok := c.srv.files[ref]; !ok {
		return "", backend.ErrNotFound
	}
	return "https://files.test/" + ref, nil
}
