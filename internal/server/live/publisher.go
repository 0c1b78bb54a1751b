// Package live serves the websocket channel that pushes new messages to
// clients watching a conversation.
package live

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/dmitrijs2005/quickchat/internal/server/pubsub"
)

// Publisher encodes message events and publishes them on the
// conversation's topic.
type Publisher struct {
	broker pubsub.Broker
}

func NewPublisher(b pubsub.Broker) *Publisher {
	return &Publisher{broker: b}
}

func (p *Publisher) PublishMessage(ctx context.Context, op string, m *models.MessageView) error {
	payload, err := json.Marshal(rpc.LiveEvent{Op: op, Message: m.RPC()})
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, rpc.ConversationTopic(m.ConversationID), payload)
}
