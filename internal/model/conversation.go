package model

import (
	"time"
)

// Conversation is a direct-message thread with one other participant.
type Conversation struct {
	ID             ID              `json:"id"`
	Participant    UserSummary     `json:"participant"`
	LastMessage    *MessagePreview `json:"lastMessage,omitempty"`
	UnreadCount    int             `json:"unreadCount"`
	LastActivityAt time.Time       `json:"lastActivityAt"`
}

// MessagePreview is the last-message summary shown in the conversation list.
type MessagePreview struct {
	ID        ID        `json:"id"`
	Content   string    `json:"content"`
	SenderID  ID        `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a single direct message. Messages are immutable once created,
// except for the read flag flipped by read receipts.
type Message struct {
	ID             ID        `json:"id"`
	ConversationID ID        `json:"conversationId"`
	SenderID       ID        `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	IsRead         bool      `json:"isRead"`

	// OriginSession is the client session that sent the message, echoed back
	// by the server so other sessions of the same user can tell it apart.
	OriginSession string `json:"originSession,omitempty"`
}

// Preview returns the conversation-list summary of the message.
func (m *Message) Preview() *MessagePreview {
	return &MessagePreview{
		ID:        m.ID,
		Content:   m.Content,
		SenderID:  m.SenderID,
		CreatedAt: m.CreatedAt,
	}
}

// ConversationListResponse is the response of GET /messages/conversations.
type ConversationListResponse struct {
	Conversations []Conversation `json:"conversations"`
}

// MessageListResponse is the response of GET /messages/conversations/:id/messages.
// Messages are in chronological order (oldest first).
type MessageListResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

// SendMessageRequest is the request body for sending a message. RecipientID
// is only used when starting a new conversation.
type SendMessageRequest struct {
	RecipientID   ID     `json:"recipientId,omitempty"`
	Content       string `json:"content"`
	OriginSession string `json:"originSession,omitempty"`
}

// SendMessageResponse is the response of a send. Conversation is set when the
// server created or updated the conversation as part of the send.
type SendMessageResponse struct {
	Message      Message       `json:"message"`
	Conversation *Conversation `json:"conversation,omitempty"`
}

// MarkReadResponse is the response of POST /messages/conversations/:id/read.
type MarkReadResponse struct {
	ReadCount int `json:"readCount"`
}

// MessagesReadEvent is the payload of the inbound messages_read event.
type MessagesReadEvent struct {
	ConversationID ID  `json:"conversationId"`
	ReaderID       ID  `json:"readerId"`
	ReadCount      int `json:"readCount"`
}

// TypingEvent is the payload of typing_start/typing_stop (outbound) and
// user_typing (inbound).
type TypingEvent struct {
	ConversationID ID   `json:"conversationId"`
	UserID         ID   `json:"userId,omitempty"`
	IsTyping       bool `json:"isTyping"`
}

// ConversationRoom is the payload of join_conversation/leave_conversation.
type ConversationRoom struct {
	ConversationID ID `json:"conversationId"`
}

// Message constraints
const (
	MaxMessageLength = 2000
)
