// Package conversations stores conversation records in PostgreSQL.
package conversations

import (
	"context"

	"github.com/dmitrijs2005/quickchat/internal/server/models"
)

type Repository interface {
	// Create inserts c. When c.PairKey is already taken the existing row is
	// returned and created is false.
	Create(ctx context.Context, c *models.Conversation) (conv *models.Conversation, created bool, err error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error)
	// ListByMember returns userID's conversations, most recently updated first.
	ListByMember(ctx context.Context, userID string) ([]*models.Conversation, error)
	Delete(ctx context.Context, id string) error
	SetLastMessage(ctx context.Context, id, messageID string) (*models.Conversation, error)
}
