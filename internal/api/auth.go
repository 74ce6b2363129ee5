package api

import (
	"context"
	"net/http"

	"socialsync/internal/model"
)

// Login handles POST /auth/login. Tokens are not installed on the client;
// the session decides what to do with them.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register handles POST /auth/register.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout handles POST /auth/logout, revoking the refresh token server-side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, model.LogoutRequest{RefreshToken: refreshToken}, nil)
}
