// Package session is the app context: it owns the REST client, both
// real-time channels, the stores and the coordinators, and ties their
// lifetimes to authentication. Channels connect when a session starts and are
// closed only on logout or expiry.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"socialsync/internal/api"
	"socialsync/internal/config"
	"socialsync/internal/logger"
	"socialsync/internal/model"
	"socialsync/internal/persist"
	"socialsync/internal/queue"
	"socialsync/internal/realtime"
	"socialsync/internal/service"
	"socialsync/internal/store"
)

const (
	// refreshSkew refreshes a restored access token that expires within this window.
	refreshSkew = 30 * time.Second

	publishTimeout = 2 * time.Second
)

// Session end reasons.
const (
	ReasonLogout   = "logout"
	ReasonExpired  = "expired"
	ReasonReplaced = "replaced"
)

// Options holds everything New needs besides the config.
type Options struct {
	Config *config.Config
	State  persist.Store

	// Publisher mirrors sync events to a Redis stream. Optional.
	Publisher queue.Publisher

	EventLogSize int
}

// Session is the explicit app context. It implements service.Identity and
// service.EventSink for the coordinators it builds.
type Session struct {
	cfg       *config.Config
	id        string
	client    *api.Client
	msgSock   *realtime.Client
	notifSock *realtime.Client
	events    *EventLog
	publisher queue.Publisher

	Conversations     *store.Conversations
	NotificationStore *store.Notifications
	CommentStore      *store.Comments

	Auth          *service.AuthService
	Preferences   *service.PreferencesService
	Messages      *service.MessageService
	Notifications *service.NotificationService
	Comments      *service.CommentService
	typist        *service.Typist

	mu     sync.Mutex
	active bool
}

// New builds the session graph. Nothing touches the network until Start,
// Login or Register.
func New(opts Options) *Session {
	cfg := opts.Config
	s := &Session{
		cfg:       cfg,
		id:        uuid.NewString(),
		client:    api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout),
		events:    NewEventLog(opts.EventLogSize),
		publisher: opts.Publisher,

		Conversations:     store.NewConversations(),
		NotificationStore: store.NewNotifications(),
		CommentStore:      store.NewComments(),
	}

	token := func() string { return s.client.Tokens().AccessToken }
	s.msgSock = realtime.New(realtime.Options{
		Name:              "messages",
		URL:               cfg.MessagesSocketURL,
		Token:             token,
		ReconnectAttempts: cfg.SocketReconnectAttempts,
		ReconnectDelay:    cfg.SocketReconnectDelay,
	})
	s.notifSock = realtime.New(realtime.Options{
		Name:              "notifications",
		URL:               cfg.NotificationsSocketURL,
		Token:             token,
		ReconnectAttempts: cfg.SocketReconnectAttempts,
		ReconnectDelay:    cfg.SocketReconnectDelay,
	})

	s.Auth = service.NewAuthService(s.client, s.client, opts.State)
	s.Preferences = service.NewPreferencesService(opts.State)
	s.typist = service.NewTypist(s.msgSock, cfg.TypingIdle)
	s.Messages = service.NewMessageService(s.client, s.Conversations, s.msgSock, s.typist, s, s, cfg.MessagePageSize)
	s.Notifications = service.NewNotificationService(s.client, s.NotificationStore, s, cfg.NotificationPageSize)
	s.Comments = service.NewCommentService(s.client, s.CommentStore, s.notifSock, s, cfg.CommentPageSize)

	s.client.OnTokensRefreshed(func(pair model.TokenPair) {
		s.Auth.UpdateTokens(context.Background(), pair)
	})
	s.client.OnSessionExpired(s.expire)

	s.registerHandlers()
	return s
}

func (s *Session) registerHandlers() {
	s.msgSock.On(service.EventNewMessage, s.Messages.HandleNewMessage)
	s.msgSock.On(service.EventMessagesRead, s.Messages.HandleMessagesRead)
	s.msgSock.On(service.EventUserTyping, s.Messages.HandleUserTyping)
	s.msgSock.OnConnect(s.Messages.Rejoin)

	s.notifSock.On(service.EventNewNotification, s.Notifications.HandleNewNotification)
	s.notifSock.On(service.EventUnreadCount, s.Notifications.HandleUnreadCount)
	s.notifSock.On(service.EventNewMessageNotification, s.Messages.HandleMessageNotification)
	s.notifSock.On(service.EventCommentAdded, s.Comments.HandleCommentAdded)
	s.notifSock.On(service.EventCommentDeleted, s.Comments.HandleCommentDeleted)
	s.notifSock.OnConnect(s.Comments.Rejoin)
}

// ID returns this process's session id. Messages sent from here carry it so
// their echoes can be told apart from other sessions of the same user.
func (s *Session) ID() string { return s.id }

// SessionID implements service.Identity.
func (s *Session) SessionID() string { return s.id }

// UserID implements service.Identity.
func (s *Session) UserID() model.ID { return s.Auth.UserID() }

// Publish implements service.EventSink. Events are kept in the in-memory log
// and mirrored to the sync stream when a publisher is configured.
func (s *Session) Publish(ctx context.Context, ev queue.SyncEvent) {
	ev.Session = s.id
	s.events.Add(ev)

	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := s.publisher.Publish(ctx, s.cfg.SyncStream, ev); err != nil {
		logger.Warnf("[Session] Mirror event FAILED: type=%s err=%v", ev.Type, err)
	}
}

// Events exposes the recent-events log.
func (s *Session) Events() *EventLog { return s.events }

// Active reports whether a session is running (authenticated and connected).
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Connected reports the state of both channels.
func (s *Session) Connected() (messages, notifications bool) {
	return s.msgSock.Connected(), s.notifSock.Connected()
}

// Start restores a persisted session if there is one. Returns
// model.ErrNotAuthenticated when there is nothing to restore.
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.Auth.Restore(ctx); err != nil {
		return err
	}
	if err := s.client.EnsureFresh(ctx, refreshSkew); err != nil {
		logger.Warnf("[Session] Restored token refresh FAILED: err=%v", err)
		if !s.Auth.IsAuthenticated() {
			return model.ErrSessionExpired
		}
	}
	s.begin(ctx)
	return nil
}

// Login authenticates and starts the session. Signing in over an active
// session ends it first, so channels and synced state never outlive the
// user they belong to. A failed sign-in leaves the current session alone.
func (s *Session) Login(ctx context.Context, req model.LoginRequest) (*model.AuthState, error) {
	prev, wasActive := s.UserID(), s.Active()
	state, err := s.Auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	s.restart(ctx, prev, wasActive)
	return state, nil
}

// Register creates an account and starts the session, ending any active one.
func (s *Session) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthState, error) {
	prev, wasActive := s.UserID(), s.Active()
	state, err := s.Auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	s.restart(ctx, prev, wasActive)
	return state, nil
}

func (s *Session) restart(ctx context.Context, prev model.ID, wasActive bool) {
	if wasActive {
		s.end(prev, ReasonReplaced)
	}
	s.begin(ctx)
}

// Logout closes the channels, drops all synced state and forgets the tokens.
func (s *Session) Logout(ctx context.Context) error {
	userID := s.UserID()
	if err := s.Auth.Logout(ctx); err != nil {
		return err
	}
	s.end(userID, ReasonLogout)
	return nil
}

// Close shuts the channels down without logging out, e.g. on process exit.
func (s *Session) Close() {
	s.typist.StopAll()
	_ = s.msgSock.Close()
	_ = s.notifSock.Close()
}

// begin connects both channels and runs the initial fetches. Connect
// failures are logged; the daemon stays usable over REST.
func (s *Session) begin(ctx context.Context) {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()

	if err := s.msgSock.Connect(ctx); err != nil {
		logger.Warnf("[Session] Messages channel unavailable: err=%v", err)
	}
	if err := s.notifSock.Connect(ctx); err != nil {
		logger.Warnf("[Session] Notifications channel unavailable: err=%v", err)
	}

	if err := s.Messages.LoadConversations(ctx); err != nil {
		logger.Warnf("[Session] Initial conversations fetch FAILED: err=%v", err)
	}
	if err := s.Notifications.Load(ctx); err != nil {
		logger.Warnf("[Session] Initial notifications fetch FAILED: err=%v", err)
	}

	userID := s.UserID()
	s.Publish(ctx, queue.NewSessionStartedEvent(userID))
	logger.Infof("[Session] Started: user=%s session=%s", userID, s.id)
}

func (s *Session) end(userID model.ID, reason string) {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	s.mu.Unlock()

	s.Close()
	s.Messages.Reset()
	s.Notifications.Reset()
	s.Comments.Reset()

	if wasActive {
		s.Publish(context.Background(), queue.NewSessionEndedEvent(userID, reason))
	}
	logger.Infof("[Session] Ended: user=%s reason=%s", userID, reason)
}

// expire runs when a token refresh fails: the user is logged out locally and
// told why.
func (s *Session) expire() {
	if !s.Active() {
		s.Auth.Expire(context.Background())
		return
	}
	userID := s.UserID()
	s.Auth.Expire(context.Background())
	s.end(userID, ReasonExpired)
	s.Publish(context.Background(), queue.NewToastEvent("Session expired", model.ErrSessionExpired.Error()))
}
