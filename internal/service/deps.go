package service

import (
	"context"

	"socialsync/internal/logger"
	"socialsync/internal/model"
	"socialsync/internal/queue"
)

// MessageAPI is the slice of the REST client the message coordinator uses.
type MessageAPI interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID model.ID, limit, offset int) (*model.MessageListResponse, error)
	SendMessage(ctx context.Context, conversationID model.ID, req model.SendMessageRequest) (*model.SendMessageResponse, error)
	SendToRecipient(ctx context.Context, req model.SendMessageRequest) (*model.SendMessageResponse, error)
	MarkConversationRead(ctx context.Context, conversationID model.ID) (int, error)
}

// NotificationAPI is the slice of the REST client the notification coordinator uses.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, limit, offset int) (*model.NotificationListResponse, error)
	MarkNotificationRead(ctx context.Context, id model.ID) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// CommentAPI is the slice of the REST client the comment coordinator uses.
type CommentAPI interface {
	ListComments(ctx context.Context, postID model.ID, limit int, cursor *string) (*model.CommentListResponse, error)
	ListReplies(ctx context.Context, postID, commentID model.ID, limit int, cursor *string) (*model.CommentListResponse, error)
	CreateComment(ctx context.Context, postID model.ID, req model.CreateCommentRequest) (*model.Comment, error)
	ToggleCommentLike(ctx context.Context, postID, commentID model.ID) (*model.LikeResponse, error)
}

// AuthAPI is the slice of the REST client the auth coordinator uses.
type AuthAPI interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error)
	Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
}

// TokenHolder owns the tokens attached to outgoing requests.
type TokenHolder interface {
	SetTokens(pair model.TokenPair)
	Tokens() model.TokenPair
	ClearTokens()
}

// Emitter sends an event on a real-time channel. Emits are best-effort.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// EventSink receives toasts and summaries of applied inbound events.
type EventSink interface {
	Publish(ctx context.Context, event queue.SyncEvent)
}

// Identity tells coordinators who the current user and session are.
type Identity interface {
	UserID() model.ID
	SessionID() string
}

// emit sends an event and logs, never returns, a failure.
func emit(ch Emitter, component, event string, payload interface{}) {
	if ch == nil {
		return
	}
	if err := ch.Emit(event, payload); err != nil {
		logger.Warnf("[%s] Emit %s FAILED: err=%v", component, event, err)
	}
}
