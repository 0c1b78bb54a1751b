package feed

import (
	"context"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/logging"
)

type MessageLister interface {
	ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
}

// PollingFeed fetches the full message list at a fixed interval. Failed
// fetches skip the cycle.
type PollingFeed struct {
	lister   MessageLister
	interval time.Duration
	logger   logging.Logger
}

func NewPollingFeed(lister MessageLister, interval time.Duration, l logging.Logger) *PollingFeed {
	return &PollingFeed{lister: lister, interval: interval, logger: l.With("module", "feed", "kind", "poll")}
}

func (f *PollingFeed) Watch(ctx context.Context, conversationID string) (<-chan Update, error) {
	out := make(chan Update)

	go func() {
		defer close(out)

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				msgs, err := f.lister.ListMessages(ctx, conversationID, 0)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					f.logger.Debug(ctx, "poll failed, skipping cycle", "conversation", conversationID, "error", err)
					continue
				}
				if !send(ctx, out, Update{Op: OpSnapshot, Snapshot: msgs}) {
					return
				}
			}
		}
	}()

	return out, nil
}
