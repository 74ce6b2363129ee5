package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"socialsync/internal/handler"
	"socialsync/internal/httputil"
	"socialsync/internal/session"
	syncmw "socialsync/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	Session             *session.Session
	AuthHandler         *handler.AuthHandler
	ConversationHandler *handler.ConversationHandler
	NotificationHandler *handler.NotificationHandler
	CommentHandler      *handler.CommentHandler
	StatusHandler       *handler.StatusHandler
	LocalAPIToken       string
}

// NewRouterConfig builds every handler from the session.
func NewRouterConfig(s *session.Session, localToken string) RouterConfig {
	return RouterConfig{
		Session:             s,
		AuthHandler:         handler.NewAuthHandler(s),
		ConversationHandler: handler.NewConversationHandler(s.Messages, s.Conversations),
		NotificationHandler: handler.NewNotificationHandler(s.Notifications, s.NotificationStore),
		CommentHandler:      handler.NewCommentHandler(s.Comments, s.CommentStore),
		StatusHandler:       handler.NewStatusHandler(s, s.Preferences),
		LocalAPIToken:       localToken,
	}
}

// NewRouter creates the local API router
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(syncmw.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(syncmw.LocalToken(cfg.LocalAPIToken))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "Route not found")
	})

	r.Get("/health", cfg.StatusHandler.Health)
	r.Get("/events", cfg.StatusHandler.Events)
	r.Get("/preferences/theme", cfg.StatusHandler.GetTheme)
	r.Put("/preferences/theme", cfg.StatusHandler.SetTheme)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
	})

	// Everything below needs a signed-in user
	r.Group(func(r chi.Router) {
		r.Use(syncmw.RequireSession(cfg.Session))

		r.Get("/me", cfg.AuthHandler.Me)
		r.Post("/auth/logout", cfg.AuthHandler.Logout)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", cfg.ConversationHandler.List)
			r.Get("/active/messages", cfg.ConversationHandler.Messages)
			r.Delete("/active", cfg.ConversationHandler.Close)
			r.Post("/{id}/select", cfg.ConversationHandler.Select)
			r.Post("/{id}/messages", cfg.ConversationHandler.Send)
			r.Post("/{id}/messages/more", cfg.ConversationHandler.LoadMore)
			r.Post("/{id}/typing", cfg.ConversationHandler.Typing)
			r.Post("/{id}/read", cfg.ConversationHandler.MarkRead)
		})
		r.Post("/messages", cfg.ConversationHandler.SendToRecipient)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.List)
			r.Get("/unread-count", cfg.NotificationHandler.UnreadCount)
			r.Post("/more", cfg.NotificationHandler.LoadMore)
			r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
			r.Post("/{id}/read", cfg.NotificationHandler.MarkRead)
		})

		r.Route("/posts/{id}/comments", func(r chi.Router) {
			r.Get("/", cfg.CommentHandler.List)
			r.Post("/", cfg.CommentHandler.Create)
			r.Delete("/", cfg.CommentHandler.Close)
			r.Post("/open", cfg.CommentHandler.Open)
			r.Post("/more", cfg.CommentHandler.LoadMore)
			r.Post("/{commentId}/like", cfg.CommentHandler.Like)
			r.Post("/{commentId}/replies", cfg.CommentHandler.Replies)
			r.Post("/{commentId}/replies/toggle", cfg.CommentHandler.ToggleReplies)
		})
	})

	return r
}
