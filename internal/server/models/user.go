// Package models holds the server's persistent records and the views
// assembled from them for API responses.
package models

import "time"

// User is an account. SecretHash is argon2id(secret, Salt).
type User struct {
	ID           string
	Identifier   string
	SecretHash   []byte
	Salt         []byte
	DisplayName  string
	Bio          string
	AvatarRef    string
	IsRegistered bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserUpdate lists the fields to change. Nil means unchanged, an empty
// string clears the column. IsRegistered can only be raised.
type UserUpdate struct {
	DisplayName  *string
	Bio          *string
	AvatarRef    *string
	IsRegistered *bool
}

// Empty reports whether u changes nothing.
func (u UserUpdate) Empty() bool {
	return u.DisplayName == nil && u.Bio == nil && u.AvatarRef == nil && u.IsRegistered == nil
}
