package worker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"socialsync/internal/logger"
	"socialsync/internal/queue"
)

// Stats is a running summary of the events a Handler has seen.
type Stats struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"byType"`
	// Unread holds the latest value per unread counter ("messages", "notifications").
	Unread map[string]int `json:"unread"`
}

// Handler renders sync events as one line each and keeps running stats.
// It is shared by all workers of a Manager.
type Handler struct {
	out     io.Writer
	session string

	mu    sync.Mutex
	stats Stats
}

// NewHandler creates a handler writing to out. If session is non-empty,
// events from other daemon sessions are counted but not printed.
func NewHandler(out io.Writer, session string) *Handler {
	return &Handler{
		out:     out,
		session: session,
		stats: Stats{
			ByType: make(map[string]int),
			Unread: make(map[string]int),
		},
	}
}

// HandleEvent routes an event to the appropriate renderer based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.SyncEvent) error {
	var line string

	switch event.Type {
	case queue.EventToast:
		line = h.renderToast(event)
	case queue.EventMessageReceived:
		line = fmt.Sprintf("message %s in conversation %s from %s",
			event.MessageID, event.ConversationID, event.SenderID)
	case queue.EventNotificationReceived:
		line = h.renderNotification(event)
	case queue.EventCommentAdded:
		line = fmt.Sprintf("comment %s added on post %s", event.CommentID, event.PostID)
	case queue.EventCommentDeleted:
		line = fmt.Sprintf("comment %s deleted on post %s", event.CommentID, event.PostID)
	case queue.EventUnreadChanged:
		line = fmt.Sprintf("unread %s = %d", event.Counter, event.Unread)
	case queue.EventSessionStarted:
		line = fmt.Sprintf("session started for user %s", event.UserID)
	case queue.EventSessionEnded:
		line = fmt.Sprintf("session ended for user %s (%s)", event.UserID, event.Reason)
	default:
		logger.Warnf("[Watcher] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.Total++
	h.stats.ByType[event.Type]++
	if event.Type == queue.EventUnreadChanged {
		h.stats.Unread[event.Counter] = event.Unread
	}

	if h.session != "" && event.Session != h.session {
		return nil
	}
	ts := time.Unix(event.Timestamp, 0).Format("15:04:05")
	if _, err := fmt.Fprintf(h.out, "%s [%s] %s\n", ts, event.Type, line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (h *Handler) renderToast(event queue.SyncEvent) string {
	if event.Body == "" {
		return event.Title
	}
	return event.Title + ": " + event.Body
}

func (h *Handler) renderNotification(event queue.SyncEvent) string {
	line := fmt.Sprintf("notification %s", event.NotificationID)
	if event.Body != "" {
		line += ": " + event.Body
	}
	if event.PostID != "" {
		line += fmt.Sprintf(" (post %s)", event.PostID)
	}
	return line
}

// Stats returns a copy of the running stats.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	cp := Stats{
		Total:  h.stats.Total,
		ByType: make(map[string]int, len(h.stats.ByType)),
		Unread: make(map[string]int, len(h.stats.Unread)),
	}
	for k, v := range h.stats.ByType {
		cp.ByType[k] = v
	}
	for k, v := range h.stats.Unread {
		cp.Unread[k] = v
	}
	return cp
}
