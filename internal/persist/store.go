// Package persist stores the small slice of client state that survives a
// restart: the auth slice (user and tokens) and the theme preference. The two
// are keyed separately so clearing one never touches the other.
package persist

import (
	"context"
	"errors"

	"socialsync/internal/model"
)

// ErrNotFound is returned when nothing has been saved under a key.
var ErrNotFound = errors.New("persist: not found")

// Store defines the interface for persisted client state.
type Store interface {
	// LoadAuth returns the saved auth slice, or ErrNotFound.
	LoadAuth(ctx context.Context) (*model.AuthState, error)

	SaveAuth(ctx context.Context, state *model.AuthState) error

	// ClearAuth removes the auth slice. Clearing a missing slice is not an error.
	ClearAuth(ctx context.Context) error

	// LoadTheme returns the saved theme, or ErrNotFound.
	LoadTheme(ctx context.Context) (string, error)

	SaveTheme(ctx context.Context, theme string) error
}
