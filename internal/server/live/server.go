package live

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/dmitrijs2005/quickchat/internal/server/auth"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/dmitrijs2005/quickchat/internal/server/pubsub"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// ConversationGetter returns a conversation the caller is a member of.
type ConversationGetter interface {
	Get(ctx context.Context, callerID, id string) (*models.ConversationView, error)
}

type Server struct {
	address       string
	logger        logging.Logger
	broker        pubsub.Broker
	conversations ConversationGetter
	jwtSecret     []byte
	upgrader      websocket.Upgrader
}

func NewServer(a string, l logging.Logger, b pubsub.Broker, cs ConversationGetter, secretKey string) *Server {
	return &Server{
		address:       a,
		logger:        l.With("module", "live_server"),
		broker:        b,
		conversations: cs,
		jwtSecret:     []byte(secretKey),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is not checked; access tokens authenticate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router returns the HTTP routes of the live endpoint.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/live/conversations/{id}", s.handleConversation).Methods(http.MethodGet)
	return r
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping live server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting live server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := mux.Vars(r)["id"]

	token := r.Header.Get(common.AccessTokenHeaderName)
	if token == "" {
		token = r.URL.Query().Get(common.AccessTokenHeaderName)
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			http.Error(w, common.ErrTokenExpired.Error(), http.StatusUnauthorized)
			return
		}
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if _, err := s.conversations.Get(ctx, userID, conversationID); err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			http.Error(w, "conversation not found", http.StatusNotFound)
		case errors.Is(err, common.ErrorPermissionDenied):
			http.Error(w, "not a member", http.StatusForbidden)
		default:
			s.logger.Error(ctx, "membership check failed", "conversation_id", conversationID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	sub, err := s.broker.Subscribe(context.Background(), rpc.ConversationTopic(conversationID))
	if err != nil {
		s.logger.Error(ctx, "subscribe failed", "conversation_id", conversationID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = sub.Close()
		s.logger.Warn(ctx, "websocket upgrade failed", "error", err)
		return
	}

	s.logger.Info(ctx, "live connected", "conversation_id", conversationID, "user_id", userID)

	done := make(chan struct{})
	go s.writePump(conn, sub, done)
	s.readPump(conn, done)

	_ = sub.Close()
	s.logger.Info(ctx, "live disconnected", "conversation_id", conversationID, "user_id", userID)
}

// readPump consumes control frames until the peer goes away. Client data
// frames are ignored.
func (s *Server) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, sub pubsub.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
