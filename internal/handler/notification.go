package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"socialsync/internal/httputil"
	"socialsync/internal/model"
	"socialsync/internal/service"
	"socialsync/internal/store"
)

type NotificationHandler struct {
	notifService *service.NotificationService
	store        *store.Notifications
}

func NewNotificationHandler(notifService *service.NotificationService, st *store.Notifications) *NotificationHandler {
	return &NotificationHandler{
		notifService: notifService,
		store:        st,
	}
}

// List handles GET /notifications
// ?refresh=true replaces the list with the first page from the backend.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if err := h.notifService.Load(r.Context()); err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, h.store.View())
}

// LoadMore handles POST /notifications/more
func (h *NotificationHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	added, err := h.notifService.LoadMore(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Added int `json:"added"`
		store.NotificationsView
	}{added, h.store.View()})
}

// UnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"count": h.store.UnreadCount()})
}

// MarkRead handles POST /notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifService.MarkRead(r.Context(), model.ID(chi.URLParam(r, "id"))); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.notifService.MarkAllRead(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
