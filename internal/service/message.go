package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"socialsync/internal/logger"
	"socialsync/internal/model"
	"socialsync/internal/queue"
	"socialsync/internal/store"
)

// Messages channel events.
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"

	EventNewMessage             = "new_message"
	EventMessagesRead           = "messages_read"
	EventUserTyping             = "user_typing"
	EventNewMessageNotification = "new_message_notification"
)

// DefaultMessagePageSize is the message page size when none is configured.
const DefaultMessagePageSize = 30

// MessageService coordinates conversation and message intents: it calls the
// API outside the store lock and applies results to store.Conversations.
// It also applies inbound messages-channel events.
type MessageService struct {
	api      MessageAPI
	store    *store.Conversations
	ch       Emitter
	typist   *Typist
	sink     EventSink
	id       Identity
	pageSize int
}

func NewMessageService(
	api MessageAPI,
	st *store.Conversations,
	ch Emitter,
	typist *Typist,
	sink EventSink,
	id Identity,
	pageSize int,
) *MessageService {
	if pageSize <= 0 {
		pageSize = DefaultMessagePageSize
	}
	return &MessageService{
		api:      api,
		store:    st,
		ch:       ch,
		typist:   typist,
		sink:     sink,
		id:       id,
		pageSize: pageSize,
	}
}

// LoadConversations replaces the conversation list. The unread total becomes
// the per-conversation sum from here on.
func (s *MessageService) LoadConversations(ctx context.Context) error {
	s.store.BeginLoadConversations()

	list, err := s.api.ListConversations(ctx)
	if err != nil {
		logger.Warnf("[MessageService] LoadConversations FAILED: err=%v", err)
		s.store.FailConversations(err)
		return err
	}

	s.store.SetConversations(list)
	logger.Infof("[MessageService] LoadConversations OK: count=%d unread=%d", len(list), s.store.UnreadTotal())
	s.publishUnread()
	return nil
}

// SelectConversation opens a conversation: it resets the message list, moves
// room membership and the typing burst over, fetches the first page and marks
// the conversation read. Mark-read failures are logged only.
func (s *MessageService) SelectConversation(ctx context.Context, id model.ID) error {
	if id == "" {
		return model.ErrNoActiveConversation
	}

	prev := s.store.Select(id)
	if prev != "" && prev != id {
		s.typist.Stop(prev)
		emit(s.ch, "MessageService", EventLeaveConversation, model.ConversationRoom{ConversationID: prev})
	}
	if prev != id {
		emit(s.ch, "MessageService", EventJoinConversation, model.ConversationRoom{ConversationID: id})
	}

	if _, err := s.LoadMessages(ctx, id, true); err != nil {
		return err
	}
	s.MarkRead(ctx, id)
	return nil
}

// CloseConversation deselects the active conversation.
func (s *MessageService) CloseConversation() {
	prev := s.store.Select("")
	if prev == "" {
		return
	}
	s.typist.Stop(prev)
	emit(s.ch, "MessageService", EventLeaveConversation, model.ConversationRoom{ConversationID: prev})
}

// LoadMessages fetches a page of the active conversation. reset replaces the
// list; otherwise older messages are prepended and the number actually
// prepended is returned. Continuations are refused while one is in flight.
func (s *MessageService) LoadMessages(ctx context.Context, conversationID model.ID, reset bool) (int, error) {
	offset, err := s.store.BeginLoadMessages(conversationID, reset)
	if err != nil {
		return 0, err
	}

	resp, err := s.api.ListMessages(ctx, conversationID, s.pageSize, offset)
	if err != nil {
		logger.Warnf("[MessageService] LoadMessages FAILED: conversation=%s offset=%d err=%v", conversationID, offset, err)
		s.store.FailMessages(conversationID, err)
		return 0, err
	}

	added, err := s.store.ApplyMessages(conversationID, reset, resp.Messages, resp.HasMore)
	if err != nil {
		logger.Debugf("[MessageService] LoadMessages dropped stale page: conversation=%s", conversationID)
		return 0, err
	}

	logger.Debugf("[MessageService] LoadMessages OK: conversation=%s reset=%v added=%d hasMore=%v",
		conversationID, reset, added, resp.HasMore)
	return added, nil
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", model.ErrContentRequired
	}
	if utf8.RuneCountInString(content) > model.MaxMessageLength {
		return "", fmt.Errorf("%w: max %d characters", model.ErrContentTooLong, model.MaxMessageLength)
	}
	return content, nil
}

// SendMessage sends to an existing conversation. Nothing is inserted locally
// until the server acknowledges the message.
func (s *MessageService) SendMessage(ctx context.Context, conversationID model.ID, content string) (*model.Message, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	s.typist.Stop(conversationID)

	resp, err := s.api.SendMessage(ctx, conversationID, model.SendMessageRequest{
		Content:       content,
		OriginSession: s.id.SessionID(),
	})
	if err != nil {
		logger.Warnf("[MessageService] SendMessage FAILED: conversation=%s err=%v", conversationID, err)
		return nil, err
	}

	s.applySent(resp)
	return &resp.Message, nil
}

// SendToRecipient starts (or continues) a conversation with a user.
func (s *MessageService) SendToRecipient(ctx context.Context, recipientID model.ID, content string) (*model.Message, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.SendToRecipient(ctx, model.SendMessageRequest{
		RecipientID:   recipientID,
		Content:       content,
		OriginSession: s.id.SessionID(),
	})
	if err != nil {
		logger.Warnf("[MessageService] SendToRecipient FAILED: recipient=%s err=%v", recipientID, err)
		return nil, err
	}

	s.applySent(resp)
	return &resp.Message, nil
}

func (s *MessageService) applySent(resp *model.SendMessageResponse) {
	if resp.Message.OriginSession == "" {
		resp.Message.OriginSession = s.id.SessionID()
	}
	appended := s.store.ApplySent(resp.Message, resp.Conversation)
	logger.Infof("[MessageService] Send OK: conversation=%s message=%s appended=%v",
		resp.Message.ConversationID, resp.Message.ID, appended)
}

// MarkRead marks a conversation read on the server and decrements its unread
// count by what the server reports. Failures are logged only.
func (s *MessageService) MarkRead(ctx context.Context, conversationID model.ID) {
	readCount, err := s.api.MarkConversationRead(ctx, conversationID)
	if err != nil {
		logger.Warnf("[MessageService] MarkRead FAILED: conversation=%s err=%v", conversationID, err)
		return
	}

	s.store.MarkRead(conversationID, readCount)
	logger.Debugf("[MessageService] MarkRead OK: conversation=%s readCount=%d", conversationID, readCount)
	s.publishUnread()
}

// Keystroke forwards typing in the active conversation to the typist.
func (s *MessageService) Keystroke(conversationID model.ID) error {
	if active := s.store.ActiveID(); active == "" || active != conversationID {
		return model.ErrNoActiveConversation
	}
	s.typist.Keystroke(conversationID)
	return nil
}

// Rejoin re-enters the active conversation's room after a reconnect.
func (s *MessageService) Rejoin() {
	if id := s.store.ActiveID(); id != "" {
		emit(s.ch, "MessageService", EventJoinConversation, model.ConversationRoom{ConversationID: id})
	}
}

// Reset drops all conversation state and any typing burst (logout).
func (s *MessageService) Reset() {
	s.typist.StopAll()
	s.store.Reset()
}

func (s *MessageService) publishUnread() {
	if s.sink == nil {
		return
	}
	s.sink.Publish(context.Background(), queue.NewUnreadChangedEvent(queue.CounterMessages, s.store.UnreadTotal()))
}

// =============================================================================
// Inbound events
// =============================================================================

// HandleNewMessage applies a new_message push.
func (s *MessageService) HandleNewMessage(data json.RawMessage) {
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.ID == "" {
		logger.Warnf("[MessageService] Dropping malformed new_message: err=%v", err)
		return
	}

	self := s.id.UserID()
	appended, known := s.store.ApplyIncoming(msg, self, s.id.SessionID())
	if msg.SenderID != self {
		// A delivered message ends the sender's typing indicator.
		s.store.SetTyping(msg.SenderID, msg.ConversationID, false)
	}

	logger.Debugf("[MessageService] new_message: conversation=%s message=%s appended=%v",
		msg.ConversationID, msg.ID, appended)

	if !known && s.store.Loaded() {
		// The stub has no participant yet.
		go func() {
			if err := s.LoadConversations(context.Background()); err != nil {
				logger.Warnf("[MessageService] Refresh after unknown conversation FAILED: err=%v", err)
			}
		}()
	}

	if msg.SenderID == self || s.sink == nil {
		return
	}
	s.sink.Publish(context.Background(), queue.NewMessageReceivedEvent(&msg))
	if msg.ConversationID != s.store.ActiveID() {
		s.publishUnread()
	}
}

// HandleMessagesRead applies a messages_read push. When we are the reader
// (another of our sessions read it) the unread count drops; otherwise the
// other participant read our messages.
func (s *MessageService) HandleMessagesRead(data json.RawMessage) {
	var ev model.MessagesReadEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warnf("[MessageService] Dropping malformed messages_read: err=%v", err)
		return
	}

	self := s.id.UserID()
	if ev.ReaderID == self {
		s.store.MarkRead(ev.ConversationID, ev.ReadCount)
		s.publishUnread()
		return
	}
	n := s.store.MarkOwnMessagesRead(ev.ConversationID, self)
	logger.Debugf("[MessageService] messages_read: conversation=%s reader=%s flagged=%d", ev.ConversationID, ev.ReaderID, n)
}

// HandleUserTyping applies a user_typing push for the active conversation.
func (s *MessageService) HandleUserTyping(data json.RawMessage) {
	var ev model.TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warnf("[MessageService] Dropping malformed user_typing: err=%v", err)
		return
	}
	if ev.UserID == s.id.UserID() {
		return
	}
	s.store.SetTyping(ev.UserID, ev.ConversationID, ev.IsTyping)
}

// HandleMessageNotification raises a toast for a message in a conversation
// the user is not looking at. Before the conversation list is fetched, the
// standalone unread counter is bumped too.
func (s *MessageService) HandleMessageNotification(data json.RawMessage) {
	var ev model.MessageNotificationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warnf("[MessageService] Dropping malformed new_message_notification: err=%v", err)
		return
	}
	if ev.ConversationID != "" && ev.ConversationID == s.store.ActiveID() {
		return
	}

	if s.store.IncrementStandaloneUnread() {
		s.publishUnread()
	}

	if s.sink == nil {
		return
	}
	title := "New message"
	if ev.Sender != nil {
		title = "New message from " + displayName(ev.Sender)
	}
	toast := queue.NewToastEvent(title, ev.Content)
	toast.ConversationID = ev.ConversationID
	toast.MessageID = ev.MessageID
	s.sink.Publish(context.Background(), toast)
}

func displayName(u *model.UserSummary) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
