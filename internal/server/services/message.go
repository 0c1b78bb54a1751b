package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/dmitrijs2005/quickchat/internal/server/repositories/repomanager"
)

// MessagePublisher announces stored messages to live subscribers.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, op string, m *models.MessageView) error
}

// MaxMessageLength bounds the text of a single message, in bytes.
const MaxMessageLength = 4096

type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   MessagePublisher
	logger      logging.Logger
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, p MessagePublisher, l logging.Logger) *MessageService {
	return &MessageService{db: db, repomanager: m, publisher: p, logger: l.With("module", "messages")}
}

// List returns the conversation's messages oldest first with senders
// resolved. A positive limit keeps only the newest limit messages.
func (s *MessageService) List(ctx context.Context, callerID, conversationID string, limit int) ([]*models.MessageView, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", common.ErrorValidation)
	}
	if err := s.checkMember(ctx, callerID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.repomanager.Messages(s.db).ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	var senderIDs []string
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
	}
	senders, err := s.repomanager.Users(s.db).GetByIDs(ctx, models.NormalizeParticipants(senderIDs))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(senders))
	for _, u := range senders {
		byID[u.ID] = u
	}

	views := make([]*models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, &models.MessageView{Message: *m, Sender: byID[m.SenderID]})
	}
	return views, nil
}

// Create stores a message from the caller and publishes it. A failed
// publish is logged and does not fail the call.
func (s *MessageService) Create(ctx context.Context, callerID, conversationID, text string) (*models.MessageView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", common.ErrorValidation)
	}
	if len(text) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message is longer than %d bytes", common.ErrorValidation, MaxMessageLength)
	}
	if err := s.checkMember(ctx, callerID, conversationID); err != nil {
		return nil, err
	}

	m, err := s.repomanager.Messages(s.db).Create(ctx, &models.Message{
		ConversationID: conversationID,
		SenderID:       callerID,
		Text:           text,
	})
	if err != nil {
		return nil, err
	}

	sender, err := s.repomanager.Users(s.db).GetByID(ctx, callerID)
	if err != nil {
		s.logger.Warn(ctx, "sender lookup failed", "user_id", callerID, "error", err)
		sender = nil
	}
	view := &models.MessageView{Message: *m, Sender: sender}

	if s.publisher != nil {
		if err := s.publisher.PublishMessage(ctx, rpc.OpCreate, view); err != nil {
			s.logger.Error(ctx, "publish failed", "conversation_id", conversationID, "message_id", m.ID, "error", err)
		}
	}
	return view, nil
}

func (s *MessageService) checkMember(ctx context.Context, callerID, conversationID string) error {
	c, err := s.repomanager.Conversations(s.db).GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !c.HasMember(callerID) {
		return common.ErrorPermissionDenied
	}
	return nil
}
