package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/dmitrijs2005/quickchat/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newBareServer(secret string) *GRPCServer {
	return NewGRPCServer("", logging.NewDiscardLogger(), nil, nil, nil, nil, secret)
}

func withToken(tok string) context.Context {
	md := metadata.New(map[string]string{common.AccessTokenHeaderName: tok})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_PublicMethodSkipsAuth(t *testing.T) {
	s := newBareServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodLogin)}

	called := false
	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "ok", nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_Rejections(t *testing.T) {
	s := newBareServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodListConversations)}

	expired, err := auth.GenerateToken("u1", []byte("secret"), -time.Second)
	require.NoError(t, err)

	tests := []struct {
		name string
		ctx  context.Context
		msg  string
	}{
		{name: "missing", ctx: context.Background(), msg: "missing token"},
		{name: "invalid", ctx: withToken("not-a-jwt"), msg: common.ErrInvalidToken.Error()},
		{name: "expired", ctx: withToken(expired), msg: common.ErrTokenExpired.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				t.Fatal("handler must not run")
				return nil, nil
			})
			st := status.Convert(err)
			assert.Equal(t, codes.Unauthenticated, st.Code())
			assert.Equal(t, tt.msg, st.Message())
		})
	}
}

func TestInterceptor_ValidTokenSetsUserID(t *testing.T) {
	s := newBareServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodCreateMessage)}

	tok, err := auth.GenerateToken("user-123", []byte("secret"), time.Hour)
	require.NoError(t, err)

	var got any
	_, err = s.accessTokenInterceptor(withToken(tok), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got = ctx.Value(UserIDKey)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "user-123", got)
}

func TestCallerID_Missing(t *testing.T) {
	_, err := callerID(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
