// Package rpc defines the QuickChat backend gRPC service. Requests and
// responses travel as google.protobuf.Struct values carrying the JSON form
// of the DTOs in this package, so the service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "quickchat.v1.Backend"

const (
	MethodPing               = "Ping"
	MethodLogin              = "Login"
	MethodSignup             = "Signup"
	MethodRefreshToken       = "RefreshToken"
	MethodGetUser            = "GetUser"
	MethodListUsers          = "ListUsers"
	MethodUpdateUser         = "UpdateUser"
	MethodListConversations  = "ListConversations"
	MethodFindConversation   = "FindConversation"
	MethodGetConversation    = "GetConversation"
	MethodCreateConversation = "CreateConversation"
	MethodDeleteConversation = "DeleteConversation"
	MethodSetLastMessage     = "SetLastMessage"
	MethodListMessages       = "ListMessages"
	MethodCreateMessage      = "CreateMessage"
	MethodCreateUpload       = "CreateUpload"
	MethodResolveFile        = "ResolveFile"
)

// FullMethod returns the gRPC path of method, e.g. "/quickchat.v1.Backend/Login".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PublicMethods can be called without an access token.
var PublicMethods = map[string]struct{}{
	FullMethod(MethodPing):         {},
	FullMethod(MethodLogin):        {},
	FullMethod(MethodSignup):       {},
	FullMethod(MethodRefreshToken): {},
}

// BackendServer is implemented by the server. Each method receives and
// returns the Struct form of the matching DTO.
type BackendServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Signup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConversations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FindConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetLastMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(BackendServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BackendServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BackendServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Backend service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BackendServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodPing, BackendServer.Ping),
		unaryMethod(MethodLogin, BackendServer.Login),
		unaryMethod(MethodSignup, BackendServer.Signup),
		unaryMethod(MethodRefreshToken, BackendServer.RefreshToken),
		unaryMethod(MethodGetUser, BackendServer.GetUser),
		unaryMethod(MethodListUsers, BackendServer.ListUsers),
		unaryMethod(MethodUpdateUser, BackendServer.UpdateUser),
		unaryMethod(MethodListConversations, BackendServer.ListConversations),
		unaryMethod(MethodFindConversation, BackendServer.FindConversation),
		unaryMethod(MethodGetConversation, BackendServer.GetConversation),
		unaryMethod(MethodCreateConversation, BackendServer.CreateConversation),
		unaryMethod(MethodDeleteConversation, BackendServer.DeleteConversation),
		unaryMethod(MethodSetLastMessage, BackendServer.SetLastMessage),
		unaryMethod(MethodListMessages, BackendServer.ListMessages),
		unaryMethod(MethodCreateMessage, BackendServer.CreateMessage),
		unaryMethod(MethodCreateUpload, BackendServer.CreateUpload),
		unaryMethod(MethodResolveFile, BackendServer.ResolveFile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quickchat/v1/backend",
}

// RegisterBackendServer registers srv on s.
func RegisterBackendServer(s grpc.ServiceRegistrar, srv BackendServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// BackendClient invokes Backend methods with DTOs on both ends.
type BackendClient struct {
	cc grpc.ClientConnInterface
}

func NewBackendClient(cc grpc.ClientConnInterface) *BackendClient {
	return &BackendClient{cc: cc}
}

// Call encodes in, invokes method and decodes the reply into out.
// out may be nil when the reply carries nothing of interest.
func (c *BackendClient) Call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	req, err := Encode(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, resp, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return Decode(resp, out)
}
