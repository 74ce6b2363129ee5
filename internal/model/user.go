package model

import (
	"time"
)

// User is the authenticated account as returned by the backend.
type User struct {
	ID          ID        `json:"id"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"displayName,omitempty"`
	AvatarURL   *string   `json:"avatarUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// UserSummary is the minimal user info embedded in messages, comments and notifications.
type UserSummary struct {
	ID        ID      `json:"id"`
	Username  string  `json:"username"`
	Name      string  `json:"name,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// RegisterRequest represents the data needed to register a new user
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
