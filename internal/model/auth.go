package model

import (
	"time"
)

// TokenPair represents both tokens returned after login/refresh
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by POST /auth/login and POST /auth/register.
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshRequest is the request body for POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest is the request body for POST /auth/logout
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthState is the persisted authentication slice. It is the only piece of
// client state (besides the theme preference) that survives a restart.
type AuthState struct {
	User         *User     `json:"user"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	SavedAt      time.Time `json:"savedAt"`
}

// IsAuthenticated returns true if the state carries an access token.
func (a *AuthState) IsAuthenticated() bool {
	return a != nil && a.AccessToken != ""
}

// Theme preference values, persisted separately from the auth slice.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// ValidTheme reports whether t is an accepted theme value.
func ValidTheme(t string) bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}
