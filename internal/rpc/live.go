package rpc

import "fmt"

// Live event operations pushed over the websocket channel.
const (
	OpCreate = "create"
	OpUpdate = "update"
)

// LiveEvent is one change notification for a conversation.
type LiveEvent struct {
	Op      string  `json:"op"`
	Message Message `json:"message"`
}

// LivePath is the HTTP route of the live channel for a conversation.
func LivePath(conversationID string) string {
	return fmt.Sprintf("/live/conversations/%s", conversationID)
}

// ConversationTopic names the pub/sub topic carrying a conversation's events.
func ConversationTopic(conversationID string) string {
	return "quickchat:conversation:" + conversationID
}
