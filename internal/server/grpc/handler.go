package grpc

import (
	"context"

	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/dmitrijs2005/quickchat/internal/server/models"
	"github.com/dmitrijs2005/quickchat/internal/server/services"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, _ *rpc.Empty) (*rpc.PingResponse, error) {
		return &rpc.PingResponse{Status: "OK"}, nil
	})
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.LoginRequest) (*rpc.AuthResponse, error) {
		user, pair, err := s.users.Login(ctx, req.Identifier, req.Secret)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodLogin, err)
		}
		s.logger.Info(ctx, "Logged in", "user_id", user.ID)
		return authResponse(user, pair), nil
	})
}

func (s *GRPCServer) Signup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.SignupRequest) (*rpc.AuthResponse, error) {
		user, pair, err := s.users.Signup(ctx, req.Identifier, req.Secret, services.SignupAttributes{
			DisplayName:  req.Attributes.DisplayName,
			IsRegistered: req.Attributes.IsRegistered,
		})
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodSignup, err)
		}
		s.logger.Info(ctx, "Signed up", "user_id", user.ID)
		return authResponse(user, pair), nil
	})
}

func (s *GRPCServer) RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.RefreshTokenRequest) (*rpc.TokenPair, error) {
		pair, err := s.users.RefreshToken(ctx, req.RefreshToken)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodRefreshToken, err)
		}
		return &rpc.TokenPair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
	})
}

func (s *GRPCServer) GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.IDRequest) (*rpc.UserResponse, error) {
		if _, err := callerID(ctx); err != nil {
			return nil, err
		}
		user, err := s.users.GetUser(ctx, req.ID)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodGetUser, err)
		}
		return &rpc.UserResponse{User: user.RPC()}, nil
	})
}

func (s *GRPCServer) ListUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.ListUsersRequest) (*rpc.UsersResponse, error) {
		if _, err := callerID(ctx); err != nil {
			return nil, err
		}
		users, err := s.users.ListUsers(ctx, req.ExcludeID)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodListUsers, err)
		}
		out := &rpc.UsersResponse{Users: make([]rpc.User, 0, len(users))}
		for _, u := range users {
			out.Users = append(out.Users, u.RPC())
		}
		return out, nil
	})
}

func (s *GRPCServer) UpdateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.UpdateUserRequest) (*rpc.UserResponse, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		target := req.ID
		if target == "" {
			target = uid
		}
		user, err := s.users.UpdateUser(ctx, uid, target, models.UserUpdate{
			DisplayName:  req.DisplayName,
			Bio:          req.Bio,
			AvatarRef:    req.AvatarRef,
			IsRegistered: req.IsRegistered,
		})
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodUpdateUser, err)
		}
		return &rpc.UserResponse{User: user.RPC()}, nil
	})
}

func (s *GRPCServer) ListConversations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.ListConversationsRequest) (*rpc.ConversationsResponse, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		convs, err := s.conversations.List(ctx, uid, req.MemberID)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodListConversations, err)
		}
		out := &rpc.ConversationsResponse{Conversations: make([]rpc.Conversation, 0, len(convs))}
		for _, c := range convs {
			out.Conversations = append(out.Conversations, c.RPC())
		}
		return out, nil
	})
}

func (s *GRPCServer) FindConversation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.FindConversationRequest) (*rpc.ConversationResponse, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		c, err := s.conversations.Find(ctx, uid, req.UserA, req.UserB)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodFindConversation, err)
		}
		return &rpc.ConversationResponse{Conversation: c.RPC()}, nil
	})
}

func (s *GRPCServer) GetConversation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.IDRequest) (*rpc.ConversationResponse, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		c, err := s.conversations.Get(ctx, uid, req.ID)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodGetConversation, err)
		}
		return &rpc.ConversationResponse{Conversation: c.RPC()}, nil
	})
}

func (s *GRPCServer) CreateConversation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.CreateConversationRequest) (*rpc.ConversationResponse, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		c, err := s.conversations.Create(ctx, uid, req.ParticipantIDs)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodCreateConversation, err)
		}
		s.logger.Info(ctx, "Conversation ready", "conversation_id", c.ID, "user_id", uid)
		return &rpc.ConversationResponse{Conversation: c.RPC()}, nil
	})
}

func (s *GRPCServer) DeleteConversation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.conversations.Delete(ctx, uid, req.ID); err != nil {
			return nil, s.toStatus(ctx, rpc.MethodDeleteConversation, err)
		}
		s.logger.Info(ctx, "Conversation deleted", "conversation_id", req.ID, "user_id", uid)
		return &rpc.Empty{}, nil
	})
}

func (s *GRPCServer) SetLastMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.SetLastMessageRequest) (*rpc.ConversationResponse, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		c, err := s.conversations.SetLastMessage(ctx, uid, req.ConversationID, req.MessageID)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodSetLastMessage, err)
		}
		return &rpc.ConversationResponse{Conversation: c.RPC()}, nil
	})
}

func (s *GRPCServer) ListMessages(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.MessagesResponse, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		msgs, err := s.messages.List(ctx, uid, req.ConversationID, req.Limit)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodListMessages, err)
		}
		out := &rpc.MessagesResponse{Messages: make([]rpc.Message, 0, len(msgs))}
		for _, m := range msgs {
			out.Messages = append(out.Messages, m.RPC())
		}
		return out, nil
	})
}

func (s *GRPCServer) CreateMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.CreateMessageRequest) (*rpc.MessageResponse, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		m, err := s.messages.Create(ctx, uid, req.ConversationID, req.Text)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodCreateMessage, err)
		}
		return &rpc.MessageResponse{Message: m.RPC()}, nil
	})
}

func (s *GRPCServer) CreateUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.CreateUploadRequest) (*rpc.UploadResponse, error) {
		uid, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		key, url, err := s.files.CreateUpload(ctx, uid, req.Name, req.ContentType)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodCreateUpload, err)
		}
		return &rpc.UploadResponse{Key: key, URL: url}, nil
	})
}

func (s *GRPCServer) ResolveFile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Handle(ctx, in, func(ctx context.Context, req *rpc.ResolveFileRequest) (*rpc.URLResponse, error) {
		if _, err := callerID(ctx); err != nil {
			return nil, err
		}
		url, err := s.files.ResolveFile(ctx, req.Key)
		if err != nil {
			return nil, s.toStatus(ctx, rpc.MethodResolveFile, err)
		}
		return &rpc.URLResponse{URL: url}, nil
	})
}

func authResponse(user *models.User, pair *services.TokenPair) *rpc.AuthResponse {
	return &rpc.AuthResponse{
		User:         user.RPC(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
}
