package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/quickchat/internal/client/backend"
	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/logging"
)

// DirectoryService lists the user's conversations and finds people to talk
// to. Every result is re-checked for membership on the client.
type DirectoryService interface {
	ListConversations(ctx context.Context, currentUserID string) ([]models.Conversation, error)
	// CreateOrGetConversation returns the two-party conversation of the
	// pair, creating it when absent. Concurrent calls may still create two.
	CreateOrGetConversation(ctx context.Context, currentUserID, otherUserID string) (*models.Conversation, error)
	// DeleteConversation removes the record only; messages stay.
	DeleteConversation(ctx context.Context, conversationID string) error
	Filter(conversations []models.Conversation, currentUserID, query string) []models.Conversation
	ListContacts(ctx context.Context, currentUserID string) ([]models.User, error)
	FilterUsers(users []models.User, query string) []models.User
}

type DirectoryBackend interface {
	ListConversations(ctx context.Context, memberID string) ([]models.Conversation, error)
	FindConversation(ctx context.Context, userA, userB string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, participantIDs []string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	ListUsers(ctx context.Context, excludeID string) ([]models.User, error)
}

type directoryService struct {
	backend DirectoryBackend
	session Session
	logger  logging.Logger
}

func NewDirectoryService(b DirectoryBackend, s Session, l logging.Logger) DirectoryService {
	return &directoryService{backend: b, session: s, logger: l.With("module", "directory")}
}

func (d *directoryService) ListConversations(ctx context.Context, currentUserID string) ([]models.Conversation, error) {
	var raw []models.Conversation
	err := d.session.Retry(ctx, func(ctx context.Context) error {
		var err error
		raw, err = d.backend.ListConversations(ctx, currentUserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Conversation, 0, len(raw))
	for _, c := range raw {
		if !c.HasMember(currentUserID) {
			d.logger.Warn(ctx, "dropping conversation without membership", "conversation", c.ID)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *directoryService) CreateOrGetConversation(ctx context.Context, currentUserID, otherUserID string) (*models.Conversation, error) {
	if currentUserID == "" || otherUserID == "" {
		return nil, fmt.Errorf("%w: both users are required", backend.ErrValidation)
	}
	if currentUserID == otherUserID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", backend.ErrValidation)
	}

	var conv *models.Conversation
	err := d.session.Retry(ctx, func(ctx context.Context) error {
		var err error
		conv, err = d.backend.FindConversation(ctx, currentUserID, otherUserID)
		if !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		conv, err = d.backend.CreateConversation(ctx, []string{currentUserID, otherUserID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (d *directoryService) DeleteConversation(ctx context.Context, conversationID string) error {
	return d.session.Retry(ctx, func(ctx context.Context) error {
		return d.backend.DeleteConversation(ctx, conversationID)
	})
}

// Filter keeps conversations whose other participant's name contains query,
// ignoring case. A blank query keeps everything.
func (d *directoryService) Filter(conversations []models.Conversation, currentUserID, query string) []models.Conversation {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return conversations
	}

	var out []models.Conversation
	for _, c := range conversations {
		other := c.Other(currentUserID)
		if other != nil && strings.Contains(strings.ToLower(other.Name()), q) {
			out = append(out, c)
		}
	}
	return out
}

func (d *directoryService) ListContacts(ctx context.Context, currentUserID string) ([]models.User, error) {
	var users []models.User
	err := d.session.Retry(ctx, func(ctx context.Context) error {
		var err error
		users, err = d.backend.ListUsers(ctx, currentUserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := users[:0]
	for _, u := range users {
		if u.ID != currentUserID {
			out = append(out, u)
		}
	}
	return out, nil
}

// FilterUsers matches query against display name or identifier, ignoring
// case.
func (d *directoryService) FilterUsers(users []models.User, query string) []models.User {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return users
	}

	var out []models.User
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.DisplayName), q) || strings.Contains(strings.ToLower(u.Identifier), q) {
			out = append(out, u)
		}
	}
	return out
}
