package handler

import (
	"net/http"
	"strconv"

	"socialsync/internal/httputil"
	"socialsync/internal/model"
	"socialsync/internal/service"
	"socialsync/internal/session"
)

// StatusHandler serves health, the recent-events log and the theme
// preference. None of these need a signed-in user.
type StatusHandler struct {
	session *session.Session
	prefs   *service.PreferencesService
}

func NewStatusHandler(s *session.Session, prefs *service.PreferencesService) *StatusHandler {
	return &StatusHandler{session: s, prefs: prefs}
}

type themeRequest struct {
	Theme string `json:"theme"`
}

// Health handles GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	msgs, notifs := h.session.Connected()
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":                 "ok",
		"signedIn":               h.session.Active(),
		"messagesConnected":      msgs,
		"notificationsConnected": notifs,
	})
}

// Events handles GET /events?since=N
// Returns toasts and inbound-event summaries newer than sequence N.
func (h *StatusHandler) Events(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			httputil.WriteBadRequest(w, "Invalid since parameter")
			return
		}
		since = parsed
	}

	log := h.session.Events()
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": log.Since(since),
		"last":   log.Last(),
	})
}

// GetTheme handles GET /preferences/theme
func (h *StatusHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.prefs.Theme(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, "Failed to read theme")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, themeRequest{Theme: theme})
}

// SetTheme handles PUT /preferences/theme
func (h *StatusHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if !model.ValidTheme(req.Theme) {
		httputil.WriteBadRequest(w, "theme must be light, dark or system")
		return
	}
	if err := h.prefs.SetTheme(r.Context(), req.Theme); err != nil {
		httputil.WriteInternalError(w, "Failed to save theme")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}
