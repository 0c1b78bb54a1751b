package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/gorilla/websocket"
)

// Endpoint resolves the live channel of a conversation.
type Endpoint interface {
	LiveURL(conversationID string) string
	AccessToken() string
}

// TokenRefresher is implemented by endpoints that can renew an expired
// access token. The feed redials once after a refresh when the live channel
// answers 401.
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context) error
}

// WebSocketFeed receives pushed events from the live channel.
type WebSocketFeed struct {
	endpoint Endpoint
	dialer   *websocket.Dialer
	logger   logging.Logger
}

func NewWebSocketFeed(e Endpoint, l logging.Logger) *WebSocketFeed {
	return &WebSocketFeed{
		endpoint: e,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   l.With("module", "feed", "kind", "push"),
	}
}

func (f *WebSocketFeed) dial(ctx context.Context, conversationID string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	header.Set(common.AccessTokenHeaderName, f.endpoint.AccessToken())
	return f.dialer.DialContext(ctx, f.endpoint.LiveURL(conversationID), header)
}

func (f *WebSocketFeed) Watch(ctx context.Context, conversationID string) (<-chan Update, error) {
	conn, resp, err := f.dial(ctx, conversationID)
	if r, ok := f.endpoint.(TokenRefresher); ok && resp != nil && resp.StatusCode == http.StatusUnauthorized {
		if rerr := r.RefreshAccessToken(ctx); rerr != nil {
			f.logger.Warn(ctx, "access token refresh failed", "error", rerr)
		} else {
			conn, resp, err = f.dial(ctx, conversationID)
		}
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("live channel: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("live channel: %w", err)
	}

	out := make(chan Update)
	stop := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					f.logger.Warn(ctx, "live channel closed", "conversation", conversationID, "error", err)
				}
				return
			}

			var ev rpc.LiveEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				f.logger.Warn(ctx, "bad live event", "error", err)
				continue
			}
			if ev.Op != OpCreate && ev.Op != OpUpdate {
				continue
			}
			if !send(ctx, out, Update{Op: ev.Op, Message: models.MessageFromRPC(ev.Message)}) {
				return
			}
		}
	}()

	return out, nil
}
