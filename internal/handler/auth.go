package handler

import (
	"net/http"
	"strings"

	"socialsync/internal/httputil"
	"socialsync/internal/logger"
	"socialsync/internal/model"
	"socialsync/internal/session"
)

// AuthHandler groups sign-in endpoints. They drive the session lifecycle:
// signing in connects the channels, signing out closes them.
type AuthHandler struct {
	session *session.Session
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(s *session.Session) *AuthHandler {
	return &AuthHandler{session: s}
}

// meResponse is what the local API reveals about the session. Tokens never
// leave the daemon.
type meResponse struct {
	User                   *model.User `json:"user"`
	UserID                 model.ID    `json:"userId"`
	SessionID              string      `json:"sessionId"`
	MessagesConnected      bool        `json:"messagesConnected"`
	NotificationsConnected bool        `json:"notificationsConnected"`
}

func (h *AuthHandler) me() meResponse {
	msgs, notifs := h.session.Connected()
	resp := meResponse{
		UserID:                 h.session.UserID(),
		SessionID:              h.session.ID(),
		MessagesConnected:      msgs,
		NotificationsConnected: notifs,
	}
	if current := h.session.Auth.Current(); current != nil {
		resp.User = current.User
	}
	return resp
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if _, err := h.session.Login(r.Context(), req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.me())
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if _, err := h.session.Register(r.Context(), req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.me())
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	logger.Infof("[AuthHandler] Logout OK")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.me())
}
