package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"socialsync/internal/api"
	"socialsync/internal/logger"
	"socialsync/internal/model"
	"socialsync/internal/persist"
)

// AuthService owns the authenticated session: it logs in and out against the
// backend, installs tokens on the REST client and persists the auth slice.
type AuthService struct {
	api    AuthAPI
	tokens TokenHolder
	state  persist.Store

	mu      sync.RWMutex
	current *model.AuthState
}

func NewAuthService(authAPI AuthAPI, tokens TokenHolder, state persist.Store) *AuthService {
	return &AuthService{
		api:    authAPI,
		tokens: tokens,
		state:  state,
	}
}

// Login authenticates with username and password.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.AuthState, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, model.ErrUsernameRequired
	}
	if req.Password == "" {
		return nil, model.ErrPasswordRequired
	}

	resp, err := s.api.Login(ctx, req)
	if err != nil {
		logger.Warnf("[AuthService] Login FAILED: username=%s err=%v", req.Username, err)
		return nil, err
	}
	return s.install(ctx, resp)
}

// Register creates an account and starts a session with it.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthState, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, model.ErrUsernameRequired
	}
	if req.Password == "" {
		return nil, model.ErrPasswordRequired
	}

	resp, err := s.api.Register(ctx, req)
	if err != nil {
		logger.Warnf("[AuthService] Register FAILED: username=%s err=%v", req.Username, err)
		return nil, err
	}
	return s.install(ctx, resp)
}

func (s *AuthService) install(ctx context.Context, resp *model.AuthResponse) (*model.AuthState, error) {
	if resp.AccessToken == "" {
		return nil, errors.New("auth response missing access token")
	}

	state := &model.AuthState{
		User:         resp.User,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		SavedAt:      time.Now().UTC(),
	}
	s.tokens.SetTokens(model.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})

	s.mu.Lock()
	s.current = state
	s.mu.Unlock()

	s.save(ctx, state)
	logger.Infof("[AuthService] Session started: user=%s", s.UserID())
	return s.Current(), nil
}

// Restore loads a persisted session, if any, and installs its tokens.
func (s *AuthService) Restore(ctx context.Context) (*model.AuthState, error) {
	state, err := s.state.LoadAuth(ctx)
	if errors.Is(err, persist.ErrNotFound) {
		return nil, model.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load auth: %w", err)
	}
	if !state.IsAuthenticated() {
		return nil, model.ErrNotAuthenticated
	}

	s.tokens.SetTokens(model.TokenPair{AccessToken: state.AccessToken, RefreshToken: state.RefreshToken})
	s.mu.Lock()
	s.current = state
	s.mu.Unlock()

	logger.Infof("[AuthService] Session restored: user=%s saved=%s", s.UserID(), state.SavedAt.Format(time.RFC3339))
	return s.Current(), nil
}

// Logout revokes the refresh token (best-effort) and forgets the session.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current == nil {
		return model.ErrNotAuthenticated
	}

	if refresh := s.tokens.Tokens().RefreshToken; refresh != "" {
		if err := s.api.Logout(ctx, refresh); err != nil {
			logger.Warnf("[AuthService] Logout revoke FAILED: err=%v", err)
		}
	}

	s.forget(ctx)
	logger.Infof("[AuthService] Logged out")
	return nil
}

// Expire forgets the session after a failed token refresh. Tokens are already
// cleared by the REST client.
func (s *AuthService) Expire(ctx context.Context) {
	s.forget(ctx)
	logger.Warnf("[AuthService] Session expired")
}

func (s *AuthService) forget(ctx context.Context) {
	s.tokens.ClearTokens()
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.state.ClearAuth(ctx); err != nil {
		logger.Warnf("[AuthService] ClearAuth FAILED: err=%v", err)
	}
}

// UpdateTokens records a refreshed token pair and persists it.
func (s *AuthService) UpdateTokens(ctx context.Context, pair model.TokenPair) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current.AccessToken = pair.AccessToken
	s.current.RefreshToken = pair.RefreshToken
	s.current.SavedAt = time.Now().UTC()
	state := *s.current
	s.mu.Unlock()

	s.save(ctx, &state)
}

func (s *AuthService) save(ctx context.Context, state *model.AuthState) {
	if err := s.state.SaveAuth(ctx, state); err != nil {
		logger.Warnf("[AuthService] SaveAuth FAILED: err=%v", err)
	}
}

// Current returns a copy of the session, or nil when logged out.
func (s *AuthService) Current() *model.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// IsAuthenticated reports whether a session is active.
func (s *AuthService) IsAuthenticated() bool {
	return s.Current().IsAuthenticated()
}

// UserID returns the current user's id, taken from the user record or, when
// the backend did not send one, from the access token claims.
func (s *AuthService) UserID() model.ID {
	current := s.Current()
	if current == nil {
		return ""
	}
	if current.User != nil && current.User.ID != "" {
		return current.User.ID
	}
	id, err := api.UserIDFromToken(current.AccessToken)
	if err != nil {
		return ""
	}
	return id
}
