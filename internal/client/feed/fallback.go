package feed

import (
	"context"

	"github.com/dmitrijs2005/quickchat/internal/logging"
)

// Fallback prefers Primary and switches to Secondary when Primary cannot be
// started or drops while the watch is still wanted. Once switched, the
// watch stays on Secondary.
type Fallback struct {
	Primary   Feed
	Secondary Feed
	logger    logging.Logger
}

func NewFallback(primary, secondary Feed, l logging.Logger) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary, logger: l.With("module", "feed")}
}

func (f *Fallback) Watch(ctx context.Context, conversationID string) (<-chan Update, error) {
	primary, err := f.Primary.Watch(ctx, conversationID)
	if err != nil {
		f.logger.Info(ctx, "push feed unavailable, polling", "conversation", conversationID, "error", err)
		return f.Secondary.Watch(ctx, conversationID)
	}

	out := make(chan Update)
	go func() {
		defer close(out)

		for u := range primary {
			if !send(ctx, out, u) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		f.logger.Info(ctx, "push feed dropped, polling", "conversation", conversationID)
		secondary, err := f.Secondary.Watch(ctx, conversationID)
		if err != nil {
			f.logger.Error(ctx, "fallback feed failed", "conversation", conversationID, "error", err)
			return
		}
		for u := range secondary {
			if !send(ctx, out, u) {
				return
			}
		}
	}()

	return out, nil
}
