package service

import (
	"context"
	"encoding/json"
	"sync"

	"socialsync/internal/model"
	"socialsync/internal/queue"
)

// =============================================================================
// FAKES
// =============================================================================
//
// Each fake implements one dependency interface with function fields, so a
// test only defines the behavior it cares about.

type emitted struct {
	Event   string
	Payload json.RawMessage
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (f *fakeEmitter) Emit(event string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	data, _ := json.Marshal(payload)
	f.mu.Lock()
	f.events = append(f.events, emitted{Event: event, Payload: data})
	f.mu.Unlock()
	return nil
}

func (f *fakeEmitter) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Event)
	}
	return out
}

type fakeSink struct {
	mu     sync.Mutex
	events []queue.SyncEvent
}

func (f *fakeSink) Publish(ctx context.Context, event queue.SyncEvent) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
}

func (f *fakeSink) ofType(eventType string) []queue.SyncEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []queue.SyncEvent
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeIdentity struct {
	user    model.ID
	session string
}

func (f fakeIdentity) UserID() model.ID  { return f.user }
func (f fakeIdentity) SessionID() string { return f.session }

type fakeMessageAPI struct {
	listConversationsFn func(ctx context.Context) ([]model.Conversation, error)
	listMessagesFn      func(ctx context.Context, id model.ID, limit, offset int) (*model.MessageListResponse, error)
	sendMessageFn       func(ctx context.Context, id model.ID, req model.SendMessageRequest) (*model.SendMessageResponse, error)
	sendToRecipientFn   func(ctx context.Context, req model.SendMessageRequest) (*model.SendMessageResponse, error)
	markReadFn          func(ctx context.Context, id model.ID) (int, error)

	mu        sync.Mutex
	markReads []model.ID
}

func (f *fakeMessageAPI) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	if f.listConversationsFn != nil {
		return f.listConversationsFn(ctx)
	}
	return nil, nil
}

func (f *fakeMessageAPI) ListMessages(ctx context.Context, id model.ID, limit, offset int) (*model.MessageListResponse, error) {
	if f.listMessagesFn != nil {
		return f.listMessagesFn(ctx, id, limit, offset)
	}
	return &model.MessageListResponse{}, nil
}

func (f *fakeMessageAPI) SendMessage(ctx context.Context, id model.ID, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	return f.sendMessageFn(ctx, id, req)
}

func (f *fakeMessageAPI) SendToRecipient(ctx context.Context, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	return f.sendToRecipientFn(ctx, req)
}

func (f *fakeMessageAPI) MarkConversationRead(ctx context.Context, id model.ID) (int, error) {
	f.mu.Lock()
	f.markReads = append(f.markReads, id)
	f.mu.Unlock()
	if f.markReadFn != nil {
		return f.markReadFn(ctx, id)
	}
	return 0, nil
}

type fakeNotificationAPI struct {
	listFn        func(ctx context.Context, limit, offset int) (*model.NotificationListResponse, error)
	markReadFn    func(ctx context.Context, id model.ID) error
	markAllReadFn func(ctx context.Context) error
}

func (f *fakeNotificationAPI) ListNotifications(ctx context.Context, limit, offset int) (*model.NotificationListResponse, error) {
	return f.listFn(ctx, limit, offset)
}

func (f *fakeNotificationAPI) MarkNotificationRead(ctx context.Context, id model.ID) error {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, id)
	}
	return nil
}

func (f *fakeNotificationAPI) MarkAllNotificationsRead(ctx context.Context) error {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx)
	}
	return nil
}

type fakeCommentAPI struct {
	listCommentsFn func(ctx context.Context, postID model.ID, limit int, cursor *string) (*model.CommentListResponse, error)
	listRepliesFn  func(ctx context.Context, postID, commentID model.ID, limit int, cursor *string) (*model.CommentListResponse, error)
	createFn       func(ctx context.Context, postID model.ID, req model.CreateCommentRequest) (*model.Comment, error)
	toggleLikeFn   func(ctx context.Context, postID, commentID model.ID) (*model.LikeResponse, error)
}

func (f *fakeCommentAPI) ListComments(ctx context.Context, postID model.ID, limit int, cursor *string) (*model.CommentListResponse, error) {
	return f.listCommentsFn(ctx, postID, limit, cursor)
}

func (f *fakeCommentAPI) ListReplies(ctx context.Context, postID, commentID model.ID, limit int, cursor *string) (*model.CommentListResponse, error) {
	return f.listRepliesFn(ctx, postID, commentID, limit, cursor)
}

func (f *fakeCommentAPI) CreateComment(ctx context.Context, postID model.ID, req model.CreateCommentRequest) (*model.Comment, error) {
	return f.createFn(ctx, postID, req)
}

func (f *fakeCommentAPI) ToggleCommentLike(ctx context.Context, postID, commentID model.ID) (*model.LikeResponse, error) {
	return f.toggleLikeFn(ctx, postID, commentID)
}

type fakeAuthAPI struct {
	loginFn    func(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error)
	registerFn func(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error)
	logoutFn   func(ctx context.Context, refreshToken string) error
}

func (f *fakeAuthAPI) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	return f.loginFn(ctx, req)
}

func (f *fakeAuthAPI) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	return f.registerFn(ctx, req)
}

func (f *fakeAuthAPI) Logout(ctx context.Context, refreshToken string) error {
	if f.logoutFn != nil {
		return f.logoutFn(ctx, refreshToken)
	}
	return nil
}

type fakeTokens struct {
	mu   sync.Mutex
	pair model.TokenPair
}

func (f *fakeTokens) SetTokens(pair model.TokenPair) {
	f.mu.Lock()
	f.pair = pair
	f.mu.Unlock()
}

func (f *fakeTokens) Tokens() model.TokenPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pair
}

func (f *fakeTokens) ClearTokens() { f.SetTokens(model.TokenPair{}) }
