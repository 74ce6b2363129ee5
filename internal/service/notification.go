package service

import (
	"context"
	"encoding/json"

	"socialsync/internal/logger"
	"socialsync/internal/model"
	"socialsync/internal/queue"
	"socialsync/internal/store"
)

// Notifications channel events.
const (
	EventNewNotification = "new_notification"
	EventUnreadCount     = "unread_count"
)

// DefaultNotificationPageSize is the notification page size when none is configured.
const DefaultNotificationPageSize = 20

// NotificationService handles notification intents and inbound pushes.
// Message-type notifications are never stored; they surface as a toast.
type NotificationService struct {
	api      NotificationAPI
	store    *store.Notifications
	sink     EventSink
	pageSize int
}

func NewNotificationService(api NotificationAPI, st *store.Notifications, sink EventSink, pageSize int) *NotificationService {
	if pageSize <= 0 {
		pageSize = DefaultNotificationPageSize
	}
	return &NotificationService{
		api:      api,
		store:    st,
		sink:     sink,
		pageSize: pageSize,
	}
}

// Load fetches the first page, replacing the list and the unread counter.
func (s *NotificationService) Load(ctx context.Context) error {
	if err := s.store.BeginLoad(); err != nil {
		return err
	}

	resp, err := s.api.ListNotifications(ctx, s.pageSize, 0)
	if err != nil {
		logger.Warnf("[NotificationService] Load FAILED: err=%v", err)
		s.store.Fail(err)
		return err
	}

	s.store.Replace(resp)
	logger.Infof("[NotificationService] Load OK: count=%d unread=%d hasMore=%v",
		len(resp.Notifications), resp.UnreadCount, resp.HasMore)
	s.publishUnread()
	return nil
}

// LoadMore fetches the next page at the current offset. Ids already in the
// list are skipped; the number actually added is returned.
func (s *NotificationService) LoadMore(ctx context.Context) (int, error) {
	offset, err := s.store.BeginLoadMore()
	if err != nil {
		return 0, err
	}

	resp, err := s.api.ListNotifications(ctx, s.pageSize, offset)
	if err != nil {
		logger.Warnf("[NotificationService] LoadMore FAILED: offset=%d err=%v", offset, err)
		s.store.Fail(err)
		return 0, err
	}

	added := s.store.AppendPage(resp)
	logger.Debugf("[NotificationService] LoadMore OK: offset=%d added=%d hasMore=%v", offset, added, resp.HasMore)
	return added, nil
}

// MarkRead flips one notification locally, then tells the server. Server
// failures are logged and not retried.
func (s *NotificationService) MarkRead(ctx context.Context, id model.ID) error {
	changed, err := s.store.MarkRead(id)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.publishUnread()

	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		logger.Warnf("[NotificationService] MarkRead FAILED: id=%s err=%v", id, err)
	}
	return nil
}

// MarkAllRead flips every notification and zeroes the counter.
func (s *NotificationService) MarkAllRead(ctx context.Context) {
	s.store.MarkAllRead()
	s.publishUnread()

	if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		logger.Warnf("[NotificationService] MarkAllRead FAILED: err=%v", err)
	}
}

// Reset drops all notification state (logout).
func (s *NotificationService) Reset() {
	s.store.Reset()
}

func (s *NotificationService) publishUnread() {
	if s.sink == nil {
		return
	}
	s.sink.Publish(context.Background(), queue.NewUnreadChangedEvent(queue.CounterNotifications, s.store.UnreadCount()))
}

// =============================================================================
// Inbound events
// =============================================================================

// HandleNewNotification applies a new_notification push.
func (s *NotificationService) HandleNewNotification(data json.RawMessage) {
	var n model.Notification
	if err := json.Unmarshal(data, &n); err != nil || n.ID == "" {
		logger.Warnf("[NotificationService] Dropping malformed new_notification: err=%v", err)
		return
	}

	if n.Type == model.NotificationTypeMessage {
		if s.sink != nil {
			s.sink.Publish(context.Background(), queue.NewToastEvent(buildTitle(&n), n.Content))
		}
		return
	}

	isNew := s.store.Upsert(n)
	logger.Debugf("[NotificationService] new_notification: id=%s type=%s new=%v", n.ID, n.Type, isNew)

	if !isNew || s.sink == nil {
		s.publishUnread()
		return
	}
	s.sink.Publish(context.Background(), queue.NewNotificationReceivedEvent(&n))
	s.sink.Publish(context.Background(), queue.NewToastEvent(buildTitle(&n), n.Content))
	s.publishUnread()
}

// HandleUnreadCount applies a server-pushed unread_count.
func (s *NotificationService) HandleUnreadCount(data json.RawMessage) {
	var ev model.UnreadCountEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warnf("[NotificationService] Dropping malformed unread_count: err=%v", err)
		return
	}
	s.store.SetUnreadCount(ev.Count)
	s.publishUnread()
}

// buildTitle creates the toast title for a notification.
func buildTitle(n *model.Notification) string {
	actor := "Someone"
	if n.Sender != nil {
		actor = displayName(n.Sender)
	}

	switch n.Type {
	case model.NotificationTypeFollow:
		return actor + " started following you"
	case model.NotificationTypeLike:
		return actor + " liked your post"
	case model.NotificationTypeComment:
		return actor + " commented on your post"
	case model.NotificationTypeMessage:
		return "New message from " + actor
	default:
		return "New notification"
	}
}
