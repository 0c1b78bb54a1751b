package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/dbx"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/repomanager"
)

// ConversationService manages conversations on behalf of an authenticated
// caller. Every operation requires the caller to be a participant.
type ConversationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewConversationService(db *sql.DB, m repomanager.RepositoryManager) *ConversationService {
	return &ConversationService{db: db, repomanager: m}
}

// List returns memberID's conversations, most recently updated first, with
// participants and last message resolved. Callers may only list their own.
func (s *ConversationService) List(ctx context.Context, callerID, memberID string) ([]*models.ConversationView, error) {
	if memberID == "" {
		memberID = callerID
	}
	if memberID != callerID {
		return nil, common.ErrorPermissionDenied
	}
	convs, err := s.repomanager.Conversations(s.db).ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, s.db, convs)
}

// Find looks up the two-party conversation of a and b in either order.
func (s *ConversationService) Find(ctx context.Context, callerID, a, b string) (*models.ConversationView, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: both users are required", common.ErrorValidation)
	}
	if callerID != a && callerID != b {
		return nil, common.ErrorPermissionDenied
	}
	c, err := s.repomanager.Conversations(s.db).GetByPairKey(ctx, models.PairKey(a, b))
	if err != nil {
		return nil, err
	}
	return s.resolveOne(ctx, s.db, c)
}

func (s *ConversationService) Get(ctx context.Context, callerID, id string) (*models.ConversationView, error) {
	c, err := s.getAsMember(ctx, s.db, callerID, id)
	if err != nil {
		return nil, err
	}
	return s.resolveOne(ctx, s.db, c)
}

// Create starts a conversation between participantIDs, which must include
// the caller and someone else. A two-party conversation that already exists is returned
// instead of a duplicate.
func (s *ConversationService) Create(ctx context.Context, callerID string, participantIDs []string) (*models.ConversationView, error) {
	ids := models.NormalizeParticipants(participantIDs)
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: at least two participants are required", common.ErrorValidation)
	}
	c := &models.Conversation{ParticipantIDs: ids}
	if !c.HasMember(callerID) {
		return nil, common.ErrorPermissionDenied
	}
	if len(ids) == 2 {
		c.PairKey = models.PairKey(ids[0], ids[1])
	}

	var view *models.ConversationView
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		known, err := s.repomanager.Users(tx).GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(known) != len(ids) {
			return fmt.Errorf("%w: unknown participant", common.ErrorValidation)
		}
		created, _, err := s.repomanager.Conversations(tx).Create(ctx, c)
		if err != nil {
			return err
		}
		view, err = s.resolveOne(ctx, tx, created)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Delete removes the conversation record. Its messages are kept.
func (s *ConversationService) Delete(ctx context.Context, callerID, id string) error {
	if _, err := s.getAsMember(ctx, s.db, callerID, id); err != nil {
		return err
	}
	return s.repomanager.Conversations(s.db).Delete(ctx, id)
}

// SetLastMessage points the conversation at messageID and bumps its
// updated time. The message must belong to the conversation.
func (s *ConversationService) SetLastMessage(ctx context.Context, callerID, id, messageID string) (*models.ConversationView, error) {
	if _, err := s.getAsMember(ctx, s.db, callerID, id); err != nil {
		return nil, err
	}
	m, err := s.repomanager.Messages(s.db).GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.ConversationID != id {
		return nil, fmt.Errorf("%w: message belongs to another conversation", common.ErrorValidation)
	}
	c, err := s.repomanager.Conversations(s.db).SetLastMessage(ctx, id, messageID)
	if err != nil {
		return nil, err
	}
	return s.resolveOne(ctx, s.db, c)
}

func (s *ConversationService) getAsMember(ctx context.Context, db dbx.DBTX, callerID, id string) (*models.Conversation, error) {
	c, err := s.repomanager.Conversations(db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.HasMember(callerID) {
		return nil, common.ErrorPermissionDenied
	}
	return c, nil
}

func (s *ConversationService) resolveOne(ctx context.Context, db dbx.DBTX, c *models.Conversation) (*models.ConversationView, error) {
	views, err := s.resolve(ctx, db, []*models.Conversation{c})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// resolve loads participants and last messages for convs with one query
// per table.
func (s *ConversationService) resolve(ctx context.Context, db dbx.DBTX, convs []*models.Conversation) ([]*models.ConversationView, error) {
	var messageIDs []string
	for _, c := range convs {
		if c.LastMessageID != "" {
			messageIDs = append(messageIDs, c.LastMessageID)
		}
	}
	msgs, err := s.repomanager.Messages(db).GetByIDs(ctx, messageIDs)
	if err != nil {
		return nil, err
	}
	msgByID := make(map[string]*models.Message, len(msgs))
	for _, m := range msgs {
		msgByID[m.ID] = m
	}

	var userIDs []string
	for _, c := range convs {
		userIDs = append(userIDs, c.ParticipantIDs...)
	}
	for _, m := range msgs {
		userIDs = append(userIDs, m.SenderID)
	}
	users, err := s.repomanager.Users(db).GetByIDs(ctx, models.NormalizeParticipants(userIDs))
	if err != nil {
		return nil, err
	}
	userByID := make(map[string]*models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	views := make([]*models.ConversationView, 0, len(convs))
	for _, c := range convs {
		v := &models.ConversationView{Conversation: *c}
		for _, id := range c.ParticipantIDs {
			if u, ok := userByID[id]; ok {
				v.Participants = append(v.Participants, u)
			}
		}
		if m, ok := msgByID[c.LastMessageID]; ok {
			v.LastMessage = &models.MessageView{Message: *m, Sender: userByID[m.SenderID]}
		}
		views = append(views, v)
	}
	return views, nil
}
