package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/netx"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type caller interface {
	Call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error
}

// GRPCClient talks to the server over gRPC and caches the authenticated
// user and its tokens. Each instance is one independent session.
type GRPCClient struct {
	conn    *grpc.ClientConn
	client  caller
	liveURL string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	current      *models.User
}

var _ Backend = (*GRPCClient)(nil)

// NewGRPCClient connects lazily to addr. liveBaseURL is the ws:// or wss://
// origin of the live channel. Extra dial options are appended to the
// defaults.
func NewGRPCClient(addr, liveBaseURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{liveURL: strings.TrimRight(liveBaseURL, "/")}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = rpc.NewBackendClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

// accessTokenInterceptor attaches the access token and, when the server
// reports it expired, rotates the token pair once and retries the call once.
func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	access, refresh := c.tokens()

	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}
	if !isTokenExpired(err) || refresh == "" || method == rpc.FullMethod(rpc.MethodRefreshToken) {
		return err
	}

	if rerr := c.rotate(ctx, refresh); rerr != nil {
		return err
	}

	access, _ = c.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

func (c *GRPCClient) rotate(ctx context.Context, refresh string) error {
	var resp rpc.TokenPair
	if err := c.client.Call(ctx, rpc.MethodRefreshToken, &rpc.RefreshTokenRequest{RefreshToken: refresh}, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent logout wins over the refresh.
	if c.refreshToken != refresh {
		return ErrSessionInvalid
	}
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	return nil
}

func (c *GRPCClient) tokens() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

func (c *GRPCClient) call(ctx context.Context, method string, in, out any) error {
	return mapError(c.client.Call(ctx, method, in, out))
}

func (c *GRPCClient) setSession(resp *rpc.AuthResponse) *models.User {
	u := models.UserFromRPC(resp.User)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.current = &u

	cp := u
	return &cp
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	var resp rpc.PingResponse
	if err := c.call(ctx, rpc.MethodPing, &rpc.Empty{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *GRPCClient) Login(ctx context.Context, identifier, secret string) (*models.User, error) {
	var resp rpc.AuthResponse
	if err := c.call(ctx, rpc.MethodLogin, &rpc.LoginRequest{Identifier: identifier, Secret: secret}, &resp); err != nil {
		return nil, err
	}
	return c.setSession(&resp), nil
}

func (c *GRPCClient) Signup(ctx context.Context, identifier, secret string, attrs SignupAttributes) (*models.User, error) {
	req := &rpc.SignupRequest{
		Identifier: identifier,
		Secret:     secret,
		Attributes: rpc.SignupAttributes{DisplayName: attrs.DisplayName, IsRegistered: attrs.IsRegistered},
	}
	var resp rpc.AuthResponse
	if err := c.call(ctx, rpc.MethodSignup, req, &resp); err != nil {
		return nil, err
	}
	return c.setSession(&resp), nil
}

func (c *GRPCClient) CurrentUser() *models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	u := *c.current
	return &u
}

func (c *GRPCClient) ResetSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.refreshToken = ""
	c.current = nil
}

func (c *GRPCClient) AccessToken() string {
	access, _ := c.tokens()
	return access
}

// RefreshAccessToken rotates the token pair for callers outside gRPC, such
// as the live channel dial.
func (c *GRPCClient) RefreshAccessToken(ctx context.Context) error {
	_, refresh := c.tokens()
	if refresh == "" {
		return ErrSessionInvalid
	}
	if err := c.rotate(ctx, refresh); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *GRPCClient) LiveURL(conversationID string) string {
	return c.liveURL + rpc.LivePath(conversationID)
}

func (c *GRPCClient) GetUser(ctx context.Context, id string) (*models.User, error) {
	var resp rpc.UserResponse
	if err := c.call(ctx, rpc.MethodGetUser, &rpc.IDRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	u := models.UserFromRPC(resp.User)
	return &u, nil
}

func (c *GRPCClient) ListUsers(ctx context.Context, excludeID string) ([]models.User, error) {
	var resp rpc.UsersResponse
	if err := c.call(ctx, rpc.MethodListUsers, &rpc.ListUsersRequest{ExcludeID: excludeID}, &resp); err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(resp.Users))
	for _, u := range resp.Users {
		users = append(users, models.UserFromRPC(u))
	}
	return users, nil
}

func (c *GRPCClient) UpdateUser(ctx context.Context, upd UserUpdate) (*models.User, error) {
	req := &rpc.UpdateUserRequest{
		ID:           upd.ID,
		DisplayName:  upd.DisplayName,
		Bio:          upd.Bio,
		AvatarRef:    upd.AvatarRef,
		IsRegistered: upd.IsRegistered,
	}
	var resp rpc.UserResponse
	if err := c.call(ctx, rpc.MethodUpdateUser, req, &resp); err != nil {
		return nil, err
	}
	u := models.UserFromRPC(resp.User)

	c.mu.Lock()
	if c.current != nil && c.current.ID == u.ID {
		cached := u
		c.current = &cached
	}
	c.mu.Unlock()

	return &u, nil
}

func (c *GRPCClient) ListConversations(ctx context.Context, memberID string) ([]models.Conversation, error) {
	var resp rpc.ConversationsResponse
	if err := c.call(ctx, rpc.MethodListConversations, &rpc.ListConversationsRequest{MemberID: memberID}, &resp); err != nil {
		return nil, err
	}
	convs := make([]models.Conversation, 0, len(resp.Conversations))
	for _, cv := range resp.Conversations {
		convs = append(convs, models.ConversationFromRPC(cv))
	}
	return convs, nil
}

func (c *GRPCClient) conversation(ctx context.Context, method string, in any) (*models.Conversation, error) {
	var resp rpc.ConversationResponse
	if err := c.call(ctx, method, in, &resp); err != nil {
		return nil, err
	}
	conv := models.ConversationFromRPC(resp.Conversation)
	return &conv, nil
}

func (c *GRPCClient) FindConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	return c.conversation(ctx, rpc.MethodFindConversation, &rpc.FindConversationRequest{UserA: userA, UserB: userB})
}

func (c *GRPCClient) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return c.conversation(ctx, rpc.MethodGetConversation, &rpc.IDRequest{ID: id})
}

func (c *GRPCClient) CreateConversation(ctx context.Context, participantIDs []string) (*models.Conversation, error) {
	return c.conversation(ctx, rpc.MethodCreateConversation, &rpc.CreateConversationRequest{ParticipantIDs: participantIDs})
}

func (c *GRPCClient) DeleteConversation(ctx context.Context, id string) error {
	return c.call(ctx, rpc.MethodDeleteConversation, &rpc.IDRequest{ID: id}, nil)
}

func (c *GRPCClient) SetLastMessage(ctx context.Context, conversationID, messageID string) error {
	return c.call(ctx, rpc.MethodSetLastMessage, &rpc.SetLastMessageRequest{ConversationID: conversationID, MessageID: messageID}, nil)
}

func (c *GRPCClient) ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	var resp rpc.MessagesResponse
	if err := c.call(ctx, rpc.MethodListMessages, &rpc.ListMessagesRequest{ConversationID: conversationID, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msgs = append(msgs, models.MessageFromRPC(m))
	}
	return msgs, nil
}

func (c *GRPCClient) CreateMessage(ctx context.Context, conversationID, text string) (*models.Message, error) {
	var resp rpc.MessageResponse
	if err := c.call(ctx, rpc.MethodCreateMessage, &rpc.CreateMessageRequest{ConversationID: conversationID, Text: text}, &resp); err != nil {
		return nil, err
	}
	m := models.MessageFromRPC(resp.Message)
	return &m, nil
}

func (c *GRPCClient) UploadFile(ctx context.Context, name, contentType string, data []byte) (string, error) {
	var resp rpc.UploadResponse
	if err := c.call(ctx, rpc.MethodCreateUpload, &rpc.CreateUploadRequest{Name: name, ContentType: contentType}, &resp); err != nil {
		return "", err
	}
	if err := netx.UploadToPresignedURL(ctx, resp.URL, data, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return resp.Key, nil
}

func (c *GRPCClient) ResolveFile(ctx context.Context, ref string) (string, error) {
	var resp rpc.URLResponse
	if err := c.call(ctx, rpc.MethodResolveFile, &rpc.ResolveFileRequest{Key: ref}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}
