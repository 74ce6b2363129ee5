package store

import (
	"sync"

	"socialsync/internal/model"
)

// NotificationsView is a point-in-time copy of the notification state.
type NotificationsView struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
	Total         int                  `json:"total"`
	HasMore       bool                 `json:"hasMore"`
	Loading       bool                 `json:"loading"`
	LoadingMore   bool                 `json:"loadingMore"`
	Error         string               `json:"error,omitempty"`
}

// Notifications is the paginated, id-unique notification list. Message-type
// notifications are never stored.
type Notifications struct {
	mu sync.Mutex

	items       []model.Notification
	ids         map[model.ID]struct{}
	unread      int
	total       int
	offset      int
	hasMore     bool
	loading     bool
	loadingMore bool
	err         string
}

func NewNotifications() *Notifications {
	return &Notifications{ids: make(map[model.ID]struct{})}
}

func storable(n *model.Notification) bool {
	return n.Type != model.NotificationTypeMessage
}

// BeginLoad flags a first-page fetch.
func (s *Notifications) BeginLoad() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return model.ErrLoadInProgress
	}
	s.loading = true
	return nil
}

// Replace installs the first page.
func (s *Notifications) Replace(resp *model.NotificationListResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.ids = make(map[model.ID]struct{})
	for _, n := range resp.Notifications {
		s.appendLocked(n)
	}
	s.offset = len(resp.Notifications)
	s.hasMore = resp.HasMore
	s.unread = max(0, resp.UnreadCount)
	s.total = resp.Total
	s.loading = false
	s.err = ""
}

// BeginLoadMore validates and flags a continuation fetch, returning the
// offset to fetch from.
func (s *Notifications) BeginLoadMore() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading || s.loadingMore {
		return 0, model.ErrLoadInProgress
	}
	if !s.hasMore {
		return 0, model.ErrNothingMore
	}
	s.loadingMore = true
	return s.offset, nil
}

// AppendPage adds a continuation page, skipping ids already present.
func (s *Notifications) AppendPage(resp *model.NotificationListResponse) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, n := range resp.Notifications {
		if s.appendLocked(n) {
			added++
		}
	}
	s.offset += len(resp.Notifications)
	s.hasMore = resp.HasMore
	if resp.Total > 0 {
		s.total = resp.Total
	}
	s.loadingMore = false
	s.err = ""
	return added
}

// Fail clears the loading flags and records the error. Data is kept.
func (s *Notifications) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.loadingMore = false
	s.err = err.Error()
}

func (s *Notifications) appendLocked(n model.Notification) bool {
	if !storable(&n) {
		return false
	}
	if _, dup := s.ids[n.ID]; dup {
		return false
	}
	s.ids[n.ID] = struct{}{}
	s.items = append(s.items, n)
	return true
}

// Upsert applies a pushed notification. A new id is prepended and counted;
// a known id is replaced in place. It reports whether the id was new.
func (s *Notifications) Upsert(n model.Notification) bool {
	if !storable(&n) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[n.ID]; ok {
		for i := range s.items {
			if s.items[i].ID != n.ID {
				continue
			}
			switch {
			case s.items[i].IsRead && !n.IsRead:
				s.unread++
			case !s.items[i].IsRead && n.IsRead:
				s.unread = max(0, s.unread-1)
			}
			s.items[i] = n
			break
		}
		return false
	}

	s.ids[n.ID] = struct{}{}
	s.items = append([]model.Notification{n}, s.items...)
	s.total++
	if !n.IsRead {
		s.unread++
	}
	return true
}

// MarkRead flips one notification to read and decrements the unread count
// if it was unread. The change is local and is not rolled back if the server
// call fails.
func (s *Notifications) MarkRead(id model.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if s.items[i].IsRead {
			return false, nil
		}
		s.items[i].IsRead = true
		s.unread = max(0, s.unread-1)
		return true, nil
	}
	return false, model.ErrNotificationNotFound
}

// MarkAllRead flips every notification and zeroes the unread count.
func (s *Notifications) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		s.items[i].IsRead = true
	}
	s.unread = 0
}

// SetUnreadCount applies the server-pushed unread_count.
func (s *Notifications) SetUnreadCount(n int) {
	s.mu.Lock()
	s.unread = max(0, n)
	s.mu.Unlock()
}

func (s *Notifications) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// View returns a copy of the notification state.
func (s *Notifications) View() NotificationsView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NotificationsView{
		Notifications: append([]model.Notification{}, s.items...),
		UnreadCount:   s.unread,
		Total:         s.total,
		HasMore:       s.hasMore,
		Loading:       s.loading,
		LoadingMore:   s.loadingMore,
		Error:         s.err,
	}
}

// Reset drops all state (logout).
func (s *Notifications) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.ids = make(map[model.ID]struct{})
	s.unread, s.total, s.offset = 0, 0, 0
	s.hasMore, s.loading, s.loadingMore = false, false, false
	s.err = ""
}
