// Package feed delivers conversation changes to the client, either pushed
// over the live websocket channel or pulled by polling.
package feed

import (
	"context"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	// OpSnapshot carries the full message list of a poll.
	OpSnapshot = "snapshot"
)

// Update is one change. Message is set for create and update, Snapshot for
// snapshot.
type Update struct {
	Op       string
	Message  models.Message
	Snapshot []models.Message
}

// Feed watches one conversation. The returned channel is closed when ctx is
// done or the feed ends. An error means the feed could not be started.
type Feed interface {
	Watch(ctx context.Context, conversationID string) (<-chan Update, error)
}

func send(ctx context.Context, ch chan<- Update, u Update) bool {
	select {
	case ch <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
