package models

import "time"

type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           string
	CreatedAt      time.Time
}

// MessageView is a message with its sender resolved. Sender is nil when
// the account no longer exists.
type MessageView struct {
	Message
	Sender *User
}
