// Package services contains the application services of the QuickChat
// client: authentication, the chat directory and the user profile.
package services

import (
	"context"
)

// Session is what the services need from session.Manager.
type Session interface {
	Save(ctx context.Context, identifier, secret string) error
	Clear(ctx context.Context) error
	Retry(ctx context.Context, fn func(ctx context.Context) error) error
}
