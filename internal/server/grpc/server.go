// Package grpc exposes the server services over the quickchat.v1.Backend
// gRPC service.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/dmitrijs2005/quickchat/internal/server/services"
	"google.golang.org/grpc"
)

type UserService interface {
	Signup(ctx context.Context, identifier, secret string, attrs services.SignupAttributes) (*models.User, *services.TokenPair, error)
	Login(ctx context.Context, identifier, secret string) (*models.User, *services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, excludeID string) ([]*models.User, error)
	UpdateUser(ctx context.Context, callerID, targetID string, upd models.UserUpdate) (*models.User, error)
}

type ConversationService interface {
	List(ctx context.Context, callerID, memberID string) ([]*models.ConversationView, error)
	Find(ctx context.Context, callerID, a, b string) (*models.ConversationView, error)
	Get(ctx context.Context, callerID, id string) (*models.ConversationView, error)
	Create(ctx context.Context, callerID string, participantIDs []string) (*models.ConversationView, error)
	Delete(ctx context.Context, callerID, id string) error
	SetLastMessage(ctx context.Context, callerID, id, messageID string) (*models.ConversationView, error)
}

type MessageService interface {
	List(ctx context.Context, callerID, conversationID string, limit int) ([]*models.MessageView, error)
	Create(ctx context.Context, callerID, conversationID, text string) (*models.MessageView, error)
}

type FileService interface {
	CreateUpload(ctx context.Context, userID, name, contentType string) (string, string, error)
	ResolveFile(ctx context.Context, key string) (string, error)
}

type GRPCServer struct {
	address       string
	users         UserService
	conversations ConversationService
	messages      MessageService
	files         FileService
	logger        logging.Logger
	jwtSecret     []byte
}

var _ rpc.BackendServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, us UserService, cs ConversationService, ms MessageService, fs FileService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		users:         us,
		conversations: cs,
		messages:      ms,
		files:         fs,
		jwtSecret:     []byte(secretKey),
	}
}

// NewServer returns a grpc.Server with the backend service and the access
// token interceptor registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	rpc.RegisterBackendServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	return srv.Serve(listen)
}
