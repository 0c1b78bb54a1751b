package models

import "github.com/dmitrijs2005/quickchat/internal/rpc"

// RPC converts u to its wire form. Secrets never leave the server.
func (u *User) RPC() rpc.User {
	return rpc.User{
		ID:           u.ID,
		Identifier:   u.Identifier,
		DisplayName:  u.DisplayName,
		Bio:          u.Bio,
		AvatarRef:    u.AvatarRef,
		IsRegistered: u.IsRegistered,
		CreatedAt:    u.CreatedAt,
	}
}

func (m *MessageView) RPC() rpc.Message {
	out := rpc.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
	}
	if m.Sender != nil {
		u := m.Sender.RPC()
		out.Sender = &u
	}
	return out
}

func (c *ConversationView) RPC() rpc.Conversation {
	out := rpc.Conversation{
		ID:             c.ID,
		ParticipantIDs: append([]string(nil), c.ParticipantIDs...),
		LastMessageID:  c.LastMessageID,
		UpdatedAt:      c.UpdatedAt,
		CreatedAt:      c.CreatedAt,
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, p.RPC())
	}
	if c.LastMessage != nil {
		m := c.LastMessage.RPC()
		out.LastMessage = &m
	}
	return out
}
