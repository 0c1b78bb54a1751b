// Package backend is the client's typed view of the QuickChat server: auth,
// users, conversations, messages, avatar files and the live channel address.
package backend

import (
	"context"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
)

// SignupAttributes are stored on an account at creation.
type SignupAttributes struct {
	DisplayName  string
	IsRegistered bool
}

// UserUpdate changes a user record. Nil fields are left untouched and an
// empty string clears the field.
type UserUpdate struct {
	ID           string
	DisplayName  *string
	Bio          *string
	AvatarRef    *string
	IsRegistered *bool
}

func (u UserUpdate) Empty() bool {
	return u.DisplayName == nil && u.Bio == nil && u.AvatarRef == nil && u.IsRegistered == nil
}

// Backend is everything the client core needs from the server. Every method
// returns errors from this package's taxonomy.
type Backend interface {
	Ping(ctx context.Context) error

	Login(ctx context.Context, identifier, secret string) (*models.User, error)
	Signup(ctx context.Context, identifier, secret string, attrs SignupAttributes) (*models.User, error)
	// CurrentUser returns the cached authenticated user without a network call.
	CurrentUser() *models.User
	// ResetSession drops the cached user and tokens.
	ResetSession()

	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, excludeID string) ([]models.User, error)
	UpdateUser(ctx context.Context, upd UserUpdate) (*models.User, error)

	ListConversations(ctx context.Context, memberID string) ([]models.Conversation, error)
	FindConversation(ctx context.Context, userA, userB string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, participantIDs []string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	SetLastMessage(ctx context.Context, conversationID, messageID string) error

	ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	CreateMessage(ctx context.Context, conversationID, text string) (*models.Message, error)

	// UploadFile stores data and returns its reference.
	UploadFile(ctx context.Context, name, contentType string, data []byte) (string, error)
	ResolveFile(ctx context.Context, ref string) (string, error)

	// LiveURL is the websocket address of a conversation's change feed.
	LiveURL(conversationID string) string
	AccessToken() string
}
