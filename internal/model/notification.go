package model

import (
	"time"
)

// Notification types
const (
	NotificationTypeFollow  = "follow"
	NotificationTypeLike    = "like"
	NotificationTypeComment = "comment"

	// NotificationTypeMessage notifications are never stored; message alerts
	// go through the conversation path and surface as a toast.
	NotificationTypeMessage = "message"
)

// Notification represents a single notification record.
type Notification struct {
	ID         ID           `json:"id"`
	ReceiverID ID           `json:"receiverId"`
	SenderID   ID           `json:"senderId"`
	Sender     *UserSummary `json:"sender,omitempty"`
	Type       string       `json:"type"`
	Content    string       `json:"content"`
	IsRead     bool         `json:"isRead"`
	CreatedAt  time.Time    `json:"createdAt"`
	PostID     *ID          `json:"postId,omitempty"`
	CommentID  *ID          `json:"commentId,omitempty"`
}

// NotificationListResponse is the paginated notification list response.
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	HasMore       bool           `json:"hasMore"`
	UnreadCount   int            `json:"unreadCount"`
	Total         int            `json:"total"`
}

// UnreadCountEvent is the payload of the inbound unread_count event.
type UnreadCountEvent struct {
	Count int `json:"count"`
}

// MessageNotificationEvent is the payload of new_message_notification.
type MessageNotificationEvent struct {
	ConversationID ID           `json:"conversationId"`
	MessageID      ID           `json:"messageId"`
	Sender         *UserSummary `json:"sender,omitempty"`
	Content        string       `json:"content"`
}
