package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"socialsync/internal/model"
)

// The client never holds the signing secret, so tokens are parsed without
// verification. The server remains the authority; these helpers only read
// claims for local decisions (who am I, should I refresh early).

func parseClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// UserIDFromToken reads the user id from the "user_id" claim, falling back to "sub".
func UserIDFromToken(token string) (model.ID, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return "", err
	}

	switch v := claims["user_id"].(type) {
	case float64:
		return model.IDFromInt(int64(v)), nil
	case string:
		if v != "" {
			return model.ID(v), nil
		}
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return model.ID(sub), nil
	}
	return "", fmt.Errorf("token has no user id claim")
}

// TokenExpiry returns the "exp" claim. ok is false when the token cannot be
// parsed or carries no expiry.
func TokenExpiry(token string) (time.Time, bool) {
	claims, err := parseClaims(token)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
