package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"socialsync/internal/model"
)

// Event types for the sync stream
const (
	EventToast                = "toast"
	EventMessageReceived      = "message_received"
	EventNotificationReceived = "notification_received"
	EventCommentAdded         = "comment_added"
	EventCommentDeleted       = "comment_deleted"
	EventUnreadChanged        = "unread_changed"
	EventSessionStarted       = "session_started"
	EventSessionEnded         = "session_ended"
)

// Stream names
const (
	StreamSync = "stream:sync"
)

// Consumer group name for stream watchers
const (
	ConsumerGroupWatchers = "sync_watchers"
)

// Unread counters carried by EventUnreadChanged
const (
	CounterMessages      = "messages"
	CounterNotifications = "notifications"
)

// SyncEvent is a summary of something the daemon applied to its state, or a
// toast it raised. Every event shares this structure.
type SyncEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Session   string `json:"session,omitempty"`

	// Toast
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`

	// Message / notification / comment references
	ConversationID model.ID `json:"conversation_id,omitempty"`
	MessageID      model.ID `json:"message_id,omitempty"`
	SenderID       model.ID `json:"sender_id,omitempty"`
	NotificationID model.ID `json:"notification_id,omitempty"`
	PostID         model.ID `json:"post_id,omitempty"`
	CommentID      model.ID `json:"comment_id,omitempty"`

	// Unread counter (EventUnreadChanged)
	Counter string `json:"counter,omitempty"`
	Unread  int    `json:"unread,omitempty"`

	// Session lifecycle
	UserID model.ID `json:"user_id,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

func newEvent(eventType string) SyncEvent {
	return SyncEvent{Type: eventType, Timestamp: time.Now().Unix()}
}

// NewToastEvent creates a transient user-facing alert.
func NewToastEvent(title, body string) SyncEvent {
	e := newEvent(EventToast)
	e.Title = title
	e.Body = body
	return e
}

// NewMessageReceivedEvent summarizes an applied new_message push.
func NewMessageReceivedEvent(msg *model.Message) SyncEvent {
	e := newEvent(EventMessageReceived)
	e.ConversationID = msg.ConversationID
	e.MessageID = msg.ID
	e.SenderID = msg.SenderID
	return e
}

// NewNotificationReceivedEvent summarizes an applied new_notification push.
func NewNotificationReceivedEvent(n *model.Notification) SyncEvent {
	e := newEvent(EventNotificationReceived)
	e.NotificationID = n.ID
	e.SenderID = n.SenderID
	e.Body = n.Content
	if n.PostID != nil {
		e.PostID = *n.PostID
	}
	return e
}

// NewCommentAddedEvent summarizes an applied comment_added push.
func NewCommentAddedEvent(c *model.Comment) SyncEvent {
	e := newEvent(EventCommentAdded)
	e.PostID = c.PostID
	e.CommentID = c.ID
	return e
}

// NewCommentDeletedEvent summarizes an applied comment_deleted push.
func NewCommentDeletedEvent(postID, commentID model.ID) SyncEvent {
	e := newEvent(EventCommentDeleted)
	e.PostID = postID
	e.CommentID = commentID
	return e
}

// NewUnreadChangedEvent reports a new value of one unread counter.
func NewUnreadChangedEvent(counter string, unread int) SyncEvent {
	e := newEvent(EventUnreadChanged)
	e.Counter = counter
	e.Unread = unread
	return e
}

// NewSessionStartedEvent is published after login or restore.
func NewSessionStartedEvent(userID model.ID) SyncEvent {
	e := newEvent(EventSessionStarted)
	e.UserID = userID
	return e
}

// NewSessionEndedEvent is published on logout or forced expiry.
func NewSessionEndedEvent(userID model.ID, reason string) SyncEvent {
	e := newEvent(EventSessionEnded)
	e.UserID = userID
	e.Reason = reason
	return e
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e SyncEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseSyncEvent parses a SyncEvent from Redis stream message values.
func ParseSyncEvent(values map[string]interface{}) (SyncEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return SyncEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event SyncEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return SyncEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
