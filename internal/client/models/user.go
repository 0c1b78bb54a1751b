// Package models defines the client-side view of users, conversations and
// messages.
package models

import "github.com/dmitrijs2005/quickchat/internal/rpc"

// User is an account as seen by the client. IsRegistered turns true once the
// owner completes their profile and never goes back.
type User struct {
	ID           string
	Identifier   string
	DisplayName  string
	Bio          string
	AvatarRef    string
	IsRegistered bool
}

// Name is the display name, falling back to the identifier.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Identifier
}

func UserFromRPC(u rpc.User) User {
	return User{
		ID:           u.ID,
		Identifier:   u.Identifier,
		DisplayName:  u.DisplayName,
		Bio:          u.Bio,
		AvatarRef:    u.AvatarRef,
		IsRegistered: u.IsRegistered,
	}
}
