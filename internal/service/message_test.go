package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialsync/internal/model"
	"socialsync/internal/queue"
	"socialsync/internal/store"
)

type messageFixture struct {
	api   *fakeMessageAPI
	store *store.Conversations
	ch    *fakeEmitter
	sink  *fakeSink
	svc   *MessageService
}

func newMessageFixture(api *fakeMessageAPI) *messageFixture {
	f := &messageFixture{
		api:   api,
		store: store.NewConversations(),
		ch:    &fakeEmitter{},
		sink:  &fakeSink{},
	}
	f.svc = NewMessageService(api, f.store, f.ch, NewTypist(f.ch, time.Hour), f.sink,
		fakeIdentity{user: "me", session: "sess-a"}, 2)
	return f
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestMessageService_MarkReadScenario(t *testing.T) {
	api := &fakeMessageAPI{
		listConversationsFn: func(ctx context.Context) ([]model.Conversation, error) {
			return []model.Conversation{{ID: "1", UnreadCount: 2}, {ID: "2", UnreadCount: 0}}, nil
		},
		markReadFn: func(ctx context.Context, id model.ID) (int, error) { return 2, nil },
	}
	f := newMessageFixture(api)
	ctx := context.Background()

	require.NoError(t, f.svc.LoadConversations(ctx))
	assert.Equal(t, 2, f.store.UnreadTotal())

	f.svc.MarkRead(ctx, "1")

	view := f.store.View()
	assert.Equal(t, 0, view.Conversations[0].UnreadCount)
	assert.Equal(t, 0, view.Conversations[1].UnreadCount)
	assert.Equal(t, 0, view.UnreadTotal)

	unread := f.sink.ofType(queue.EventUnreadChanged)
	require.NotEmpty(t, unread)
	assert.Equal(t, 0, unread[len(unread)-1].Unread)
}

func TestMessageService_MarkReadFailureIsSwallowed(t *testing.T) {
	api := &fakeMessageAPI{
		listConversationsFn: func(ctx context.Context) ([]model.Conversation, error) {
			return []model.Conversation{{ID: "1", UnreadCount: 2}}, nil
		},
		markReadFn: func(ctx context.Context, id model.ID) (int, error) { return 0, errors.New("offline") },
	}
	f := newMessageFixture(api)
	require.NoError(t, f.svc.LoadConversations(context.Background()))

	f.svc.MarkRead(context.Background(), "1")
	assert.Equal(t, 2, f.store.UnreadTotal())
}

func TestMessageService_SelectConversation(t *testing.T) {
	api := &fakeMessageAPI{
		listMessagesFn: func(ctx context.Context, id model.ID, limit, offset int) (*model.MessageListResponse, error) {
			assert.Equal(t, 2, limit)
			return &model.MessageListResponse{
				Messages: []model.Message{{ID: "10", ConversationID: id}, {ID: "11", ConversationID: id}},
				HasMore:  true,
			}, nil
		},
	}
	f := newMessageFixture(api)
	ctx := context.Background()

	require.NoError(t, f.svc.SelectConversation(ctx, "1"))
	require.NoError(t, f.svc.Keystroke("1"))
	require.NoError(t, f.svc.SelectConversation(ctx, "2"))

	assert.Equal(t, []string{
		EventJoinConversation,
		EventTypingStart,
		EventTypingStop,
		EventLeaveConversation,
		EventJoinConversation,
	}, f.ch.names())
	assert.Equal(t, []model.ID{"1", "2"}, api.markReads)

	view := f.store.Messages()
	assert.Equal(t, model.ID("2"), view.ConversationID)
	assert.Len(t, view.Messages, 2)
	assert.True(t, view.HasMore)
}

func TestMessageService_ContinuationSuppressedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	api := &fakeMessageAPI{
		listMessagesFn: func(ctx context.Context, id model.ID, limit, offset int) (*model.MessageListResponse, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				return &model.MessageListResponse{Messages: []model.Message{{ID: "3", ConversationID: id}}, HasMore: true}, nil
			}
			<-release
			return &model.MessageListResponse{Messages: []model.Message{{ID: "1", ConversationID: id}, {ID: "2", ConversationID: id}}}, nil
		},
	}
	f := newMessageFixture(api)
	ctx := context.Background()
	require.NoError(t, f.svc.SelectConversation(ctx, "1"))

	done := make(chan int)
	go func() {
		added, err := f.svc.LoadMessages(ctx, "1", false)
		assert.NoError(t, err)
		done <- added
	}()

	assert.Eventually(t, func() bool { return f.store.Messages().LoadingMore }, time.Second, 5*time.Millisecond)
	_, err := f.svc.LoadMessages(ctx, "1", false)
	assert.ErrorIs(t, err, model.ErrLoadInProgress)

	close(release)
	assert.Equal(t, 2, <-done)

	var ids []model.ID
	for _, m := range f.store.Messages().Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []model.ID{"1", "2", "3"}, ids)
}

func TestMessageService_StalePageIsDropped(t *testing.T) {
	release := make(chan struct{})
	api := &fakeMessageAPI{
		listMessagesFn: func(ctx context.Context, id model.ID, limit, offset int) (*model.MessageListResponse, error) {
			if id == "1" {
				<-release
			}
			return &model.MessageListResponse{Messages: []model.Message{{ID: model.ID("m" + string(id)), ConversationID: id}}}, nil
		},
	}
	f := newMessageFixture(api)
	ctx := context.Background()

	errCh := make(chan error)
	go func() { errCh <- f.svc.SelectConversation(ctx, "1") }()

	assert.Eventually(t, func() bool { return f.store.Messages().Loading }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.svc.SelectConversation(ctx, "2"))
	close(release)

	assert.ErrorIs(t, <-errCh, model.ErrConversationChanged)
	view := f.store.Messages()
	require.Len(t, view.Messages, 1)
	assert.Equal(t, model.ID("m2"), view.Messages[0].ID)
}

func TestMessageService_SendAppendsOnAck(t *testing.T) {
	var sent model.SendMessageRequest
	api := &fakeMessageAPI{
		listConversationsFn: func(ctx context.Context) ([]model.Conversation, error) {
			return []model.Conversation{{ID: "2"}, {ID: "1"}}, nil
		},
		sendMessageFn: func(ctx context.Context, id model.ID, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
			sent = req
			return &model.SendMessageResponse{Message: model.Message{ID: "50", ConversationID: id, SenderID: "me", Content: req.Content}}, nil
		},
	}
	f := newMessageFixture(api)
	ctx := context.Background()
	require.NoError(t, f.svc.LoadConversations(ctx))
	require.NoError(t, f.svc.SelectConversation(ctx, "1"))

	msg, err := f.svc.SendMessage(ctx, "1", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", sent.Content)
	assert.Equal(t, "sess-a", sent.OriginSession)
	assert.Equal(t, model.ID("50"), msg.ID)

	// The push for our own send arrives too.
	f.svc.HandleNewMessage(raw(t, model.Message{ID: "50", ConversationID: "1", SenderID: "me", Content: "hello", OriginSession: "sess-a"}))

	assert.Len(t, f.store.Messages().Messages, 1)
	view := f.store.View()
	assert.Equal(t, model.ID("1"), view.Conversations[0].ID)
	assert.Equal(t, "hello", view.Conversations[0].LastMessage.Content)
}

func TestMessageService_SendValidation(t *testing.T) {
	f := newMessageFixture(&fakeMessageAPI{})

	_, err := f.svc.SendMessage(context.Background(), "1", "   ")
	assert.ErrorIs(t, err, model.ErrContentRequired)

	_, err = f.svc.SendMessage(context.Background(), "1", strings.Repeat("x", model.MaxMessageLength+1))
	assert.ErrorIs(t, err, model.ErrContentTooLong)
}

func TestMessageService_SendFailureLeavesStoreUntouched(t *testing.T) {
	api := &fakeMessageAPI{
		sendMessageFn: func(ctx context.Context, id model.ID, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
			return nil, errors.New("boom")
		},
	}
	f := newMessageFixture(api)
	require.NoError(t, f.svc.SelectConversation(context.Background(), "1"))

	_, err := f.svc.SendMessage(context.Background(), "1", "hi")
	require.Error(t, err)
	assert.Empty(t, f.store.Messages().Messages)
}

func TestMessageService_SendToRecipientUpsertsConversation(t *testing.T) {
	api := &fakeMessageAPI{
		sendToRecipientFn: func(ctx context.Context, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
			assert.Equal(t, model.ID("bob"), req.RecipientID)
			return &model.SendMessageResponse{
				Message:      model.Message{ID: "1", ConversationID: "9", SenderID: "me", Content: req.Content},
				Conversation: &model.Conversation{ID: "9", Participant: model.UserSummary{ID: "bob", Username: "bob"}},
			}, nil
		},
	}
	f := newMessageFixture(api)

	_, err := f.svc.SendToRecipient(context.Background(), "bob", "hey")
	require.NoError(t, err)

	c, ok := f.store.Conversation("9")
	require.True(t, ok)
	assert.Equal(t, "bob", c.Participant.Username)
	assert.Equal(t, "hey", c.LastMessage.Content)
}

func TestMessageService_InboundEvents(t *testing.T) {
	api := &fakeMessageAPI{
		listConversationsFn: func(ctx context.Context) ([]model.Conversation, error) {
			return []model.Conversation{{ID: "1"}, {ID: "2", UnreadCount: 3}}, nil
		},
	}
	f := newMessageFixture(api)
	ctx := context.Background()
	require.NoError(t, f.svc.LoadConversations(ctx))
	require.NoError(t, f.svc.SelectConversation(ctx, "1"))

	f.svc.HandleUserTyping(raw(t, model.TypingEvent{ConversationID: "1", UserID: "bob", IsTyping: true}))
	f.svc.HandleUserTyping(raw(t, model.TypingEvent{ConversationID: "1", UserID: "me", IsTyping: true}))
	assert.Len(t, f.store.Messages().Typing, 1)

	f.svc.HandleNewMessage(raw(t, map[string]interface{}{"id": 7, "conversationId": 1, "senderId": "bob", "content": "yo"}))
	view := f.store.Messages()
	require.Len(t, view.Messages, 1)
	assert.Empty(t, view.Typing)
	assert.Len(t, f.sink.ofType(queue.EventMessageReceived), 1)

	f.svc.HandleNewMessage(json.RawMessage(`{"broken`))
	assert.Len(t, f.store.Messages().Messages, 1)

	// Another session of ours read conversation 2.
	f.svc.HandleMessagesRead(raw(t, model.MessagesReadEvent{ConversationID: "2", ReaderID: "me", ReadCount: 2}))
	c, _ := f.store.Conversation("2")
	assert.Equal(t, 1, c.UnreadCount)
}

func TestMessageService_MessageNotificationBeforeListFetch(t *testing.T) {
	f := newMessageFixture(&fakeMessageAPI{})

	ev := model.MessageNotificationEvent{
		ConversationID: "4",
		MessageID:      "40",
		Sender:         &model.UserSummary{ID: "bob", Username: "bob"},
		Content:        "are you there?",
	}
	f.svc.HandleMessageNotification(raw(t, ev))
	f.svc.HandleMessageNotification(raw(t, ev))

	assert.Equal(t, 2, f.store.UnreadTotal())
	toasts := f.sink.ofType(queue.EventToast)
	require.Len(t, toasts, 2)
	assert.Equal(t, "New message from bob", toasts[0].Title)
	assert.Equal(t, "are you there?", toasts[0].Body)
}
