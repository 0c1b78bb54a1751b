package models

import (
	"time"

	"github.com/dmitrijs2005/quickchat/internal/rpc"
)

type MessageStatus int

const (
	// StatusConfirmed messages are stored on the backend and carry an ID.
	StatusConfirmed MessageStatus = iota
	// StatusPending messages were submitted locally and await confirmation.
	StatusPending
	// StatusFailedToSend messages were rejected or lost; they stay until
	// resent or discarded.
	StatusFailedToSend
)

func (s MessageStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFailedToSend:
		return "failed"
	default:
		return "sent"
	}
}

// Message is one chat message. ID is empty while the message is not yet
// confirmed; LocalKey identifies such messages instead.
type Message struct {
	ID             string
	LocalKey       string
	ConversationID string
	SenderID       string
	Sender         *User
	Text           string
	CreatedAt      time.Time
	Status         MessageStatus
}

func (m Message) Confirmed() bool {
	return m.ID != "" && m.Status == StatusConfirmed
}

func MessageFromRPC(m rpc.Message) Message {
	msg := Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
		Status:         StatusConfirmed,
	}
	if m.Sender != nil {
		u := UserFromRPC(*m.Sender)
		msg.Sender = &u
	}
	return msg
}
