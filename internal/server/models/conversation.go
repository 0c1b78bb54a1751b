package models

import (
	"slices"
	"strings"
	"time"
)

type Conversation struct {
	ID             string
	ParticipantIDs []string
	// PairKey is set for two-party conversations only; it is unique.
	PairKey       string
	LastMessageID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *Conversation) HasMember(userID string) bool {
	return slices.Contains(c.ParticipantIDs, userID)
}

// PairKey returns the order-independent key of a two-party conversation.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// NormalizeParticipants drops blanks and duplicates and sorts the ids.
func NormalizeParticipants(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ConversationView is a conversation with its participants and last
// message resolved.
type ConversationView struct {
	Conversation
	Participants []*User
	LastMessage  *MessageView
}
