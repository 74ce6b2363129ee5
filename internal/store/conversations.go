// Package store holds the client-side state the daemon keeps in sync:
// conversations and the open conversation's messages, notifications, and
// post comments with their reply threads.
//
// Stores never perform I/O. Coordinators in internal/service call the API
// outside the lock and then apply results here, so every mutation is a short
// critical section, the same way reducers run between events in a UI runtime.
package store

import (
	"sort"
	"sync"

	"socialsync/internal/model"
)

// TypingKey identifies one user typing in one conversation.
type TypingKey struct {
	UserID         model.ID `json:"userId"`
	ConversationID model.ID `json:"conversationId"`
}

// ConversationsView is a point-in-time copy of the conversation state.
type ConversationsView struct {
	Conversations []model.Conversation `json:"conversations"`
	Loaded        bool                 `json:"loaded"`
	Loading       bool                 `json:"loading"`
	UnreadTotal   int                  `json:"unreadTotal"`
	ActiveID      model.ID             `json:"activeConversationId,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// MessagesView is a point-in-time copy of the active conversation's messages.
type MessagesView struct {
	ConversationID model.ID        `json:"conversationId"`
	Messages       []model.Message `json:"messages"`
	Offset         int             `json:"offset"`
	HasMore        bool            `json:"hasMore"`
	Loading        bool            `json:"loading"`
	LoadingMore    bool            `json:"loadingMore"`
	Typing         []TypingKey     `json:"typing"`
	Error          string          `json:"error,omitempty"`
}

// Conversations is the conversation list plus the message list of the single
// selected conversation.
type Conversations struct {
	mu sync.Mutex

	conversations []model.Conversation
	loaded        bool
	loading       bool
	listErr       string

	// standaloneUnread counts unread messages before the list has been
	// fetched. Replaced by the per-conversation sum on first fetch.
	standaloneUnread int

	activeID    model.ID
	messages    []model.Message
	messageIDs  map[model.ID]struct{}
	offset      int
	hasMore     bool
	loadingMsgs bool
	loadingMore bool
	msgErr      string

	typing map[TypingKey]struct{}

	// seen bounds redelivery: a message id already applied to the list does
	// not move the preview or the unread count again.
	seen      map[model.ID]struct{}
	seenOrder []model.ID
}

// maxSeenMessages is how many recent message ids are remembered for
// redelivery checks.
const maxSeenMessages = 1000

func NewConversations() *Conversations {
	return &Conversations{
		messageIDs: make(map[model.ID]struct{}),
		typing:     make(map[TypingKey]struct{}),
		seen:       make(map[model.ID]struct{}),
	}
}

// markSeenLocked records a message id and reports whether it was new.
func (s *Conversations) markSeenLocked(id model.ID) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.seenOrder = append(s.seenOrder, id)
	if len(s.seenOrder) > maxSeenMessages {
		delete(s.seen, s.seenOrder[0])
		s.seenOrder = s.seenOrder[1:]
	}
	return true
}

// =============================================================================
// Conversation list
// =============================================================================

// BeginLoadConversations marks the list as loading.
func (s *Conversations) BeginLoadConversations() {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
}

// SetConversations replaces the list and reconciles the unread total.
func (s *Conversations) SetConversations(list []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = append([]model.Conversation(nil), list...)
	s.loaded = true
	s.loading = false
	s.listErr = ""
	s.standaloneUnread = 0
}

// FailConversations records a list fetch error. Existing data is kept.
func (s *Conversations) FailConversations(err error) {
	s.mu.Lock()
	s.loading = false
	s.listErr = err.Error()
	s.mu.Unlock()
}

// Loaded reports whether the list has been fetched at least once.
func (s *Conversations) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// UnreadTotal is the sum of per-conversation unread counts once the list is
// loaded, and the standalone counter before that.
func (s *Conversations) UnreadTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadTotalLocked()
}

func (s *Conversations) unreadTotalLocked() int {
	if !s.loaded {
		return s.standaloneUnread
	}
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount
	}
	return total
}

// IncrementStandaloneUnread bumps the pre-fetch counter. It is a no-op once
// the list is loaded; from then on unread lives on the conversations.
func (s *Conversations) IncrementStandaloneUnread() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return false
	}
	s.standaloneUnread++
	return true
}

// Conversation returns a copy of one conversation.
func (s *Conversations) Conversation(id model.ID) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.conversations[i], true
	}
	return model.Conversation{}, false
}

// View returns a copy of the list state.
func (s *Conversations) View() ConversationsView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ConversationsView{
		Conversations: append([]model.Conversation{}, s.conversations...),
		Loaded:        s.loaded,
		Loading:       s.loading,
		UnreadTotal:   s.unreadTotalLocked(),
		ActiveID:      s.activeID,
		Error:         s.listErr,
	}
}

func (s *Conversations) indexLocked(id model.ID) int {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// touchLocked updates the preview and activity time of the message's
// conversation and moves it to the front. known is false when the
// conversation was not in the list and a stub was inserted.
func (s *Conversations) touchLocked(msg *model.Message, incrementUnread bool) (known bool) {
	i := s.indexLocked(msg.ConversationID)

	var conv model.Conversation
	if i >= 0 {
		conv = s.conversations[i]
		s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
		known = true
	} else {
		conv = model.Conversation{ID: msg.ConversationID}
	}

	conv.LastMessage = msg.Preview()
	if msg.CreatedAt.After(conv.LastActivityAt) {
		conv.LastActivityAt = msg.CreatedAt
	}
	if incrementUnread {
		conv.UnreadCount++
	}

	s.conversations = append([]model.Conversation{conv}, s.conversations...)
	return known
}

// UpsertConversation inserts or replaces a conversation and moves it to the front.
func (s *Conversations) UpsertConversation(conv model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(conv.ID); i >= 0 {
		s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
	}
	s.conversations = append([]model.Conversation{conv}, s.conversations...)
}

// MarkRead decrements a conversation's unread count by readCount, floored at
// zero. Before the list is loaded the standalone counter is decremented instead.
func (s *Conversations) MarkRead(id model.ID, readCount int) {
	if readCount <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.standaloneUnread = max(0, s.standaloneUnread-readCount)
		return
	}

	if i := s.indexLocked(id); i >= 0 {
		s.conversations[i].UnreadCount = max(0, s.conversations[i].UnreadCount-readCount)
	}
}

// SortByActivity orders the list by last activity, newest first. Used after a
// full fetch when the server order cannot be trusted.
func (s *Conversations) SortByActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastActivityAt.After(s.conversations[j].LastActivityAt)
	})
}

// =============================================================================
// Selection and messages
// =============================================================================

// Select makes id the active conversation, clearing the message list, the
// pagination offset and all typing state. It returns the previously active id.
func (s *Conversations) Select(id model.ID) model.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.activeID
	s.activeID = id
	s.messages = nil
	s.messageIDs = make(map[model.ID]struct{})
	s.offset = 0
	s.hasMore = false
	s.loadingMsgs = false
	s.loadingMore = false
	s.msgErr = ""
	s.typing = make(map[TypingKey]struct{})
	return prev
}

// ActiveID returns the selected conversation, or "" when none is open.
func (s *Conversations) ActiveID() model.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// BeginLoadMessages validates and flags a message fetch. A continuation is
// refused while another continuation is in flight or when nothing is left.
// It returns the offset to fetch from.
func (s *Conversations) BeginLoadMessages(conversationID model.ID, reset bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == "" {
		return 0, model.ErrNoActiveConversation
	}
	if s.activeID != conversationID {
		return 0, model.ErrConversationChanged
	}

	if reset {
		s.loadingMsgs = true
		return 0, nil
	}

	if s.loadingMore || s.loadingMsgs {
		return 0, model.ErrLoadInProgress
	}
	if !s.hasMore {
		return 0, model.ErrNothingMore
	}
	s.loadingMore = true
	return s.offset, nil
}

// ApplyMessages stores a fetched page. On reset it replaces the list; on
// continuation it prepends only ids not already present and returns how many
// were prepended, so the caller can keep its viewport anchored. Pages for a
// conversation that is no longer selected are dropped.
func (s *Conversations) ApplyMessages(conversationID model.ID, reset bool, page []model.Message, hasMore bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != conversationID {
		return 0, model.ErrConversationChanged
	}

	s.hasMore = hasMore
	s.msgErr = ""

	if reset {
		s.loadingMsgs = false
		s.messages = nil
		s.messageIDs = make(map[model.ID]struct{})
		for _, m := range page {
			s.appendLocked(m)
		}
		s.offset = len(page)
		return len(s.messages), nil
	}

	s.loadingMore = false
	s.offset += len(page)

	older := make([]model.Message, 0, len(page))
	for _, m := range page {
		if _, dup := s.messageIDs[m.ID]; dup {
			continue
		}
		s.messageIDs[m.ID] = struct{}{}
		older = append(older, m)
	}
	s.messages = append(older, s.messages...)
	return len(older), nil
}

// FailMessages records a fetch error for the active conversation and clears
// the loading flags. Existing messages are kept.
func (s *Conversations) FailMessages(conversationID model.ID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != conversationID {
		return
	}
	s.loadingMsgs = false
	s.loadingMore = false
	s.msgErr = err.Error()
}

func (s *Conversations) appendLocked(m model.Message) bool {
	if _, dup := s.messageIDs[m.ID]; dup {
		return false
	}
	s.messageIDs[m.ID] = struct{}{}
	s.messages = append(s.messages, m)
	return true
}

// ApplySent records the server-acknowledged result of our own send. The
// message is appended if it belongs to the active conversation and the
// transport push has not already delivered it.
func (s *Conversations) ApplySent(msg model.Message, conv *model.Conversation) (appended bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv != nil {
		if i := s.indexLocked(conv.ID); i >= 0 {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
		}
		s.conversations = append([]model.Conversation{*conv}, s.conversations...)
	}

	if msg.ConversationID == s.activeID && s.activeID != "" {
		appended = s.appendLocked(msg)
	}
	if s.markSeenLocked(msg.ID) {
		s.touchLocked(&msg, false)
	}
	return appended
}

// ApplyIncoming handles a new_message push. The message is appended only if
// it belongs to the active conversation and either someone else sent it or
// another session of ours did (our own sends are added by ApplySent). The
// conversation preview is updated and the conversation moved to the front the
// first time a message id is seen; redeliveries change neither the preview nor
// the unread count. known is false when the conversation was not in the list.
func (s *Conversations) ApplyIncoming(msg model.Message, selfID model.ID, sessionID string) (appended, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromSelf := msg.SenderID == selfID
	otherSession := fromSelf && msg.OriginSession != "" && msg.OriginSession != sessionID
	isActive := s.activeID != "" && msg.ConversationID == s.activeID

	if isActive && (!fromSelf || otherSession) {
		appended = s.appendLocked(msg)
	}

	if !s.markSeenLocked(msg.ID) {
		return appended, s.indexLocked(msg.ConversationID) >= 0
	}
	incrementUnread := s.loaded && !fromSelf && !isActive
	known = s.touchLocked(&msg, incrementUnread)
	return appended, known
}

// MarkOwnMessagesRead flags our messages in the active conversation as read
// after the other participant read them.
func (s *Conversations) MarkOwnMessagesRead(conversationID, selfID model.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != conversationID {
		return 0
	}
	n := 0
	for i := range s.messages {
		if s.messages[i].SenderID == selfID && !s.messages[i].IsRead {
			s.messages[i].IsRead = true
			n++
		}
	}
	return n
}

// =============================================================================
// Typing
// =============================================================================

// SetTyping records a user_typing event. Events for conversations other than
// the active one are ignored.
func (s *Conversations) SetTyping(userID, conversationID model.ID, isTyping bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conversationID != s.activeID || s.activeID == "" {
		return false
	}
	key := TypingKey{UserID: userID, ConversationID: conversationID}
	if isTyping {
		s.typing[key] = struct{}{}
	} else {
		delete(s.typing, key)
	}
	return true
}

func (s *Conversations) typingLocked() []TypingKey {
	keys := make([]TypingKey, 0, len(s.typing))
	for k := range s.typing {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].UserID < keys[j].UserID })
	return keys
}

// Messages returns a copy of the active conversation's message state.
func (s *Conversations) Messages() MessagesView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MessagesView{
		ConversationID: s.activeID,
		Messages:       append([]model.Message{}, s.messages...),
		Offset:         s.offset,
		HasMore:        s.hasMore,
		Loading:        s.loadingMsgs,
		LoadingMore:    s.loadingMore,
		Typing:         s.typingLocked(),
		Error:          s.msgErr,
	}
}

// Reset drops all state (logout).
func (s *Conversations) Reset() {
	s.mu.Lock()
	s.conversations = nil
	s.loaded, s.loading = false, false
	s.listErr = ""
	s.standaloneUnread = 0
	s.seen = make(map[model.ID]struct{})
	s.seenOrder = nil
	s.mu.Unlock()

	s.Select("")
}
