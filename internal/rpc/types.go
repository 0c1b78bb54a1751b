package rpc

import "time"

type User struct {
	ID           string    `json:"id"`
	Identifier   string    `json:"identifier"`
	DisplayName  string    `json:"display_name,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	AvatarRef    string    `json:"avatar_ref,omitempty"`
	IsRegistered bool      `json:"is_registered"`
	CreatedAt    time.Time `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Sender         *User     `json:"sender,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

type Conversation struct {
	ID             string    `json:"id"`
	ParticipantIDs []string  `json:"participant_ids"`
	Participants   []User    `json:"participants,omitempty"`
	LastMessageID  string    `json:"last_message_id,omitempty"`
	LastMessage    *Message  `json:"last_message,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// SignupAttributes are stored on the new account.
type SignupAttributes struct {
	DisplayName  string `json:"display_name,omitempty"`
	IsRegistered bool   `json:"is_registered"`
}

type SignupRequest struct {
	Identifier string           `json:"identifier"`
	Secret     string           `json:"secret"`
	Attributes SignupAttributes `json:"attributes"`
}

type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type UserResponse struct {
	User User `json:"user"`
}

type ListUsersRequest struct {
	ExcludeID string `json:"exclude_id,omitempty"`
}

type UsersResponse struct {
	Users []User `json:"users"`
}

// UpdateUserRequest changes the caller's own record; ID defaults to the
// caller. Nil fields are left untouched, an empty string clears the field.
type UpdateUserRequest struct {
	ID           string  `json:"id,omitempty"`
	DisplayName  *string `json:"display_name,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	AvatarRef    *string `json:"avatar_ref,omitempty"`
	IsRegistered *bool   `json:"is_registered,omitempty"`
}

type ListConversationsRequest struct {
	MemberID string `json:"member_id"`
}

type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type FindConversationRequest struct {
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
}

type CreateConversationRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
}

type ConversationResponse struct {
	Conversation Conversation `json:"conversation"`
}

type SetLastMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type ListMessagesRequest struct {
	ConversationID string `json:"conversation_id"`
	Limit          int    `json:"limit,omitempty"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

type CreateMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type MessageResponse struct {
	Message Message `json:"message"`
}

type CreateUploadRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
}

type UploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ResolveFileRequest struct {
	Key string `json:"key"`
}

type URLResponse struct {
	URL string `json:"url"`
}
