package models

import (
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/rpc"
)

// Conversation is a chat between its participants. Participants and
// LastMessage are only filled when the backend resolved them.
type Conversation struct {
	ID             string
	ParticipantIDs []string
	Participants   []User
	LastMessageID  string
	LastMessage    *Message
	UpdatedAt      time.Time
}

func (c Conversation) HasMember(userID string) bool {
	return userID != "" && slices.Contains(c.ParticipantIDs, userID)
}

// Other returns the first resolved participant that is not userID, or nil.
func (c Conversation) Other(userID string) *User {
	for i := range c.Participants {
		if c.Participants[i].ID != userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// Title names the conversation from userID's point of view.
func (c Conversation) Title(userID string) string {
	var names []string
	for _, p := range c.Participants {
		if p.ID != userID {
			names = append(names, p.Name())
		}
	}
	if len(names) == 0 {
		return "Saved messages"
	}
	return strings.Join(names, ", ")
}

func ConversationFromRPC(c rpc.Conversation) Conversation {
	conv := Conversation{
		ID:             c.ID,
		ParticipantIDs: slices.Clone(c.ParticipantIDs),
		LastMessageID:  c.LastMessageID,
		UpdatedAt:      c.UpdatedAt,
	}
	for _, p := range c.Participants {
		conv.Participants = append(conv.Participants, UserFromRPC(p))
	}
	if c.LastMessage != nil {
		m := MessageFromRPC(*c.LastMessage)
		conv.LastMessage = &m
	}
	return conv
}
