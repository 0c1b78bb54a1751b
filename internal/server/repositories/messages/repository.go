// Package messages stores chat messages in PostgreSQL.
package messages

import (
	"context"

	"github.com/dmitrijs2005/quickchat/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Message) (*models.Message, error)
	GetByID(ctx context.Context, id string) (*models.Message, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Message, error)
	// ListByConversation returns messages oldest first. A positive limit
	// keeps only the newest limit messages.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
}
