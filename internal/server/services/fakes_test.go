package services

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/dbx"
	"github.com/dmitrijs2005/quickchat/internal/server/config"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/messages"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// memStore backs the in-memory repositories below. Repositories ignore the
// DBTX they are bound to.
type memStore struct {
	seq    int
	clock  time.Time
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
	convs  map[string]*models.Conversation
	msgs   map[string]*models.Message

	usersErr  error
	tokensErr error
	msgsErr   error
}

func newMemStore() *memStore {
	return &memStore{
		clock:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		users:  map[string]*models.User{},
		tokens: map[string]*models.RefreshToken{},
		convs:  map[string]*models.Conversation{},
		msgs:   map[string]*models.Message{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) addUser(id, identifier, name string) *models.User {
	u := &models.User{ID: id, Identifier: identifier, DisplayName: name, CreatedAt: s.tick()}
	s.users[id] = u
	return u
}

func (s *memStore) addConversation(id string, ids ...string) *models.Conversation {
	c := &models.Conversation{ID: id, ParticipantIDs: models.NormalizeParticipants(ids), UpdatedAt: s.tick()}
	if len(c.ParticipantIDs) == 2 {
		c.PairKey = models.PairKey(c.ParticipantIDs[0], c.ParticipantIDs[1])
	}
	s.convs[id] = c
	return c
}

type memRepoManager struct{ s *memStore }

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(dbx.DBTX) users.Repository            { return (*memUsers)(m.s) }
func (m *memRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return (*memTokens)(m.s)
}
func (m *memRepoManager) Conversations(dbx.DBTX) conversations.Repository {
	return (*memConversations)(m.s)
}
func (m *memRepoManager) Messages(dbx.DBTX) messages.Repository { return (*memMessages)(m.s) }

type memUsers memStore

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	s := (*memStore)(r)
	if s.usersErr != nil {
		return nil, s.usersErr
	}
	for _, existing := range s.users {
		if existing.Identifier == u.Identifier {
			return nil, common.ErrorAlreadyExists
		}
	}
	c := *u
	c.ID = s.nextID("u")
	c.CreatedAt = s.tick()
	s.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	s := (*memStore)(r)
	if s.usersErr != nil {
		return nil, s.usersErr
	}
	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (r *memUsers) GetByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	s := (*memStore)(r)
	if s.usersErr != nil {
		return nil, s.usersErr
	}
	for _, u := range s.users {
		if u.Identifier == identifier {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	out := []*models.User{}
	for _, id := range ids {
		if u, err := r.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, (*memStore)(r).usersErr
}

func (r *memUsers) List(_ context.Context, excludeID string) ([]*models.User, error) {
	s := (*memStore)(r)
	out := []*models.User{}
	for _, u := range s.users {
		if u.ID != excludeID {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (r *memUsers) Update(_ context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	s := (*memStore)(r)
	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
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
		u.IsRegistered = u.IsRegistered || *upd.IsRegistered
	}
	out := *u
	return &out, nil
}

type memTokens memStore

func (r *memTokens) Create(_ context.Context, userID, token string, expiresAt time.Time) error {
	s := (*memStore)(r)
	if s.tokensErr != nil {
		return s.tokensErr
	}
	s.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: expiresAt}
	return nil
}

func (r *memTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	t, ok := (*memStore)(r).tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (r *memTokens) Delete(_ context.Context, token string) error {
	delete((*memStore)(r).tokens, token)
	return nil
}

func (r *memTokens) PurgeExpired(_ context.Context, t time.Time) (int64, error) {
	s := (*memStore)(r)
	var n int64
	for k, v := range s.tokens {
		if v.Expires.Before(t) {
			delete(s.tokens, k)
			n++
		}
	}
	return n, nil
}

type memConversations memStore

func (r *memConversations) Create(_ context.Context, c *models.Conversation) (*models.Conversation, bool, error) {
	s := (*memStore)(r)
	if c.PairKey != "" {
		for _, existing := range s.convs {
			if existing.PairKey == c.PairKey {
				out := *existing
				return &out, false, nil
			}
		}
	}
	n := *c
	n.ID = s.nextID("c")
	n.CreatedAt = s.tick()
	n.UpdatedAt = n.CreatedAt
	s.convs[n.ID] = &n
	out := n
	return &out, true, nil
}

func (r *memConversations) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	c, ok := (*memStore)(r).convs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *c
	return &out, nil
}

func (r *memConversations) GetByPairKey(_ context.Context, key string) (*models.Conversation, error) {
	for _, c := range (*memStore)(r).convs {
		if c.PairKey == key {
			out := *c
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memConversations) ListByMember(_ context.Context, userID string) ([]*models.Conversation, error) {
	out := []*models.Conversation{}
	for _, c := range (*memStore)(r).convs {
		if slices.Contains(c.ParticipantIDs, userID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memConversations) Delete(_ context.Context, id string) error {
	s := (*memStore)(r)
	if _, ok := s.convs[id]; !ok {
		return common.ErrorNotFound
	}
	delete(s.convs, id)
	return nil
}

func (r *memConversations) SetLastMessage(_ context.Context, id, messageID string) (*models.Conversation, error) {
	s := (*memStore)(r)
	c, ok := s.convs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c.LastMessageID = messageID
	c.UpdatedAt = s.tick()
	out := *c
	return &out, nil
}

type memMessages memStore

func (r *memMessages) Create(_ context.Context, m *models.Message) (*models.Message, error) {
	s := (*memStore)(r)
	if s.msgsErr != nil {
		return nil, s.msgsErr
	}
	n := *m
	n.ID = s.nextID("m")
	n.CreatedAt = s.tick()
	s.msgs[n.ID] = &n
	out := n
	return &out, nil
}

func (r *memMessages) GetByID(_ context.Context, id string) (*models.Message, error) {
	m, ok := (*memStore)(r).msgs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *m
	return &out, nil
}

func (r *memMessages) GetByIDs(ctx context.Context, ids []string) ([]*models.Message, error) {
	out := []*models.Message{}
	for _, id := range ids {
		if m, err := r.GetByID(ctx, id); err == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMessages) ListByConversation(_ context.Context, conversationID string, limit int) ([]*models.Message, error) {
	out := []*models.Message{}
	for _, m := range (*memStore)(r).msgs {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		S3Region:                     "us-east-1",
		S3RootUser:                   "minioadmin",
		S3RootPassword:               "minioadmin",
		S3BaseEndpoint:               "http://127.0.0.1:9000",
		S3Bucket:                     "avatars",
	}
}
