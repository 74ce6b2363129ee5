package service

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"socialsync/internal/model"
	"socialsync/internal/persist"
)

func newAuthFixture(t *testing.T, api *fakeAuthAPI) (*AuthService, *fakeTokens, persist.Store) {
	t.Helper()
	fs, err := persist.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tokens := &fakeTokens{}
	return NewAuthService(api, tokens, fs), tokens, fs
}

func okAuth(req model.LoginRequest) *model.AuthResponse {
	return &model.AuthResponse{
		User:         &model.User{ID: "7", Username: req.Username},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
}

// =============================================================================
// LOGIN / REGISTER
// =============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	api := &fakeAuthAPI{
		loginFn: func(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
			return okAuth(req), nil
		},
	}
	svc, tokens, fs := newAuthFixture(t, api)
	ctx := context.Background()

	state, err := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if state.User.Username != "alice" {
		t.Errorf("username = %q, want %q", state.User.Username, "alice")
	}
	if got := tokens.Tokens().AccessToken; got != "access-1" {
		t.Errorf("installed access token = %q, want access-1", got)
	}
	if svc.UserID() != "7" {
		t.Errorf("UserID = %q, want 7", svc.UserID())
	}

	saved, err := fs.LoadAuth(ctx)
	if err != nil {
		t.Fatalf("LoadAuth: %v", err)
	}
	if saved.RefreshToken != "refresh-1" {
		t.Errorf("persisted refresh token = %q, want refresh-1", saved.RefreshToken)
	}
}

func TestAuthService_Login_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  model.LoginRequest
	}{
		{"empty username", model.LoginRequest{Password: "pw"}},
		{"blank username", model.LoginRequest{Username: "   ", Password: "pw"}},
		{"empty password", model.LoginRequest{Username: "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			api := &fakeAuthAPI{
				loginFn: func(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
					called = true
					return okAuth(req), nil
				},
			}
			svc, _, _ := newAuthFixture(t, api)

			if _, err := svc.Login(context.Background(), tt.req); err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if called {
				t.Error("backend should not be called when validation fails")
			}
			if svc.IsAuthenticated() {
				t.Error("should not be authenticated")
			}
		})
	}
}

func TestAuthService_Login_BackendError(t *testing.T) {
	backendErr := errors.New("invalid credentials")
	api := &fakeAuthAPI{
		loginFn: func(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
			return nil, backendErr
		},
	}
	svc, tokens, _ := newAuthFixture(t, api)

	_, err := svc.Login(context.Background(), model.LoginRequest{Username: "alice", Password: "bad"})
	if !errors.Is(err, backendErr) {
		t.Errorf("error = %v, want %v", err, backendErr)
	}
	if tokens.Tokens().AccessToken != "" {
		t.Error("tokens should not be installed on failure")
	}
}

func TestAuthService_Register_Success(t *testing.T) {
	api := &fakeAuthAPI{
		registerFn: func(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
			return okAuth(model.LoginRequest{Username: req.Username}), nil
		},
	}
	svc, _, _ := newAuthFixture(t, api)

	state, err := svc.Register(context.Background(), model.RegisterRequest{Username: "bob", Password: "pw"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !state.IsAuthenticated() {
		t.Error("expected an authenticated session after register")
	}
}

// =============================================================================
// RESTORE / LOGOUT / EXPIRE
// =============================================================================

func TestAuthService_RestoreAfterRestart(t *testing.T) {
	dir := t.TempDir()
	fs, err := persist.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	api := &fakeAuthAPI{
		loginFn: func(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
			return okAuth(req), nil
		},
	}
	ctx := context.Background()
	if _, err := NewAuthService(api, &fakeTokens{}, fs).Login(ctx, model.LoginRequest{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	fs2, err := persist.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tokens := &fakeTokens{}
	svc := NewAuthService(api, tokens, fs2)
	state, err := svc.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if state.User.ID != "7" {
		t.Errorf("restored user = %q, want 7", state.User.ID)
	}
	if tokens.Tokens().RefreshToken != "refresh-1" {
		t.Error("restored tokens should be installed")
	}
}

func TestAuthService_RestoreWithoutSession(t *testing.T) {
	svc, _, _ := newAuthFixture(t, &fakeAuthAPI{})

	if _, err := svc.Restore(context.Background()); !errors.Is(err, model.ErrNotAuthenticated) {
		t.Errorf("error = %v, want %v", err, model.ErrNotAuthenticated)
	}
}

func TestAuthService_LogoutIsBestEffort(t *testing.T) {
	var revoked string
	api := &fakeAuthAPI{
		loginFn: func(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
			return okAuth(req), nil
		},
		logoutFn: func(ctx context.Context, refreshToken string) error {
			revoked = refreshToken
			return errors.New("network down")
		},
	}
	svc, tokens, fs := newAuthFixture(t, api)
	ctx := context.Background()
	if _, err := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := fs.SaveTheme(ctx, model.ThemeDark); err != nil {
		t.Fatalf("SaveTheme: %v", err)
	}

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("Logout should succeed even when revoke fails: %v", err)
	}
	if revoked != "refresh-1" {
		t.Errorf("revoked = %q, want refresh-1", revoked)
	}
	if tokens.Tokens().AccessToken != "" {
		t.Error("tokens should be cleared")
	}
	if _, err := fs.LoadAuth(ctx); !errors.Is(err, persist.ErrNotFound) {
		t.Errorf("persisted auth should be gone, got %v", err)
	}
	if theme, _ := fs.LoadTheme(ctx); theme != model.ThemeDark {
		t.Errorf("theme = %q, should survive logout", theme)
	}

	if err := svc.Logout(ctx); !errors.Is(err, model.ErrNotAuthenticated) {
		t.Errorf("second logout error = %v, want %v", err, model.ErrNotAuthenticated)
	}
}

func TestAuthService_UpdateTokensPersists(t *testing.T) {
	api := &fakeAuthAPI{
		loginFn: func(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
			return okAuth(req), nil
		},
	}
	svc, _, fs := newAuthFixture(t, api)
	ctx := context.Background()
	if _, err := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	svc.UpdateTokens(ctx, model.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"})

	saved, err := fs.LoadAuth(ctx)
	if err != nil {
		t.Fatalf("LoadAuth: %v", err)
	}
	if saved.AccessToken != "access-2" || saved.RefreshToken != "refresh-2" {
		t.Errorf("persisted tokens = %q/%q, want access-2/refresh-2", saved.AccessToken, saved.RefreshToken)
	}

	svc.Expire(ctx)
	if svc.IsAuthenticated() {
		t.Error("should not be authenticated after expiry")
	}
	if _, err := fs.LoadAuth(ctx); !errors.Is(err, persist.ErrNotFound) {
		t.Errorf("persisted auth should be cleared on expiry, got %v", err)
	}
}

func TestAuthService_UserIDFromTokenClaims(t *testing.T) {
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42}).SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	api := &fakeAuthAPI{
		loginFn: func(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
			return &model.AuthResponse{AccessToken: access, RefreshToken: "r"}, nil
		},
	}
	svc, _, _ := newAuthFixture(t, api)

	if _, err := svc.Login(context.Background(), model.LoginRequest{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if svc.UserID() != "42" {
		t.Errorf("UserID = %q, want 42", svc.UserID())
	}
}

// =============================================================================
// THEME
// =============================================================================

func TestPreferencesService_Theme(t *testing.T) {
	fs, err := persist.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	svc := NewPreferencesService(fs)
	ctx := context.Background()

	if theme, _ := svc.Theme(ctx); theme != model.ThemeSystem {
		t.Errorf("default theme = %q, want %q", theme, model.ThemeSystem)
	}
	if err := svc.SetTheme(ctx, "purple"); !errors.Is(err, model.ErrInvalidTheme) {
		t.Errorf("error = %v, want %v", err, model.ErrInvalidTheme)
	}
	if err := svc.SetTheme(ctx, model.ThemeLight); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if theme, _ := svc.Theme(ctx); theme != model.ThemeLight {
		t.Errorf("theme = %q, want %q", theme, model.ThemeLight)
	}
}
