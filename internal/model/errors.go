package model

import "errors"

var (
	// ErrNotAuthenticated is returned when an operation needs a session and there is none.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired is returned after a failed token refresh forced a logout.
	ErrSessionExpired = errors.New("session expired, please log in again")

	// ErrNoActiveConversation is returned by message operations when no conversation is selected.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrConversationChanged is returned when a response arrived for a conversation
	// that is no longer selected. The response is dropped.
	ErrConversationChanged = errors.New("conversation no longer selected")

	// ErrLoadInProgress is returned when a pagination fetch is already running.
	ErrLoadInProgress = errors.New("load already in progress")

	// ErrNothingMore is returned when pagination is exhausted.
	ErrNothingMore = errors.New("no more items")

	// ErrCommentNotFound is returned when a comment is not in the store.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrThreadNotLoaded is returned when a reply thread operation needs a loaded thread.
	ErrThreadNotLoaded = errors.New("reply thread not loaded")

	// ErrNotificationNotFound is returned when a notification is not in the store.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrUsernameRequired and ErrPasswordRequired are returned by login and register validation.
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")

	// ErrInvalidTheme is returned for unknown theme preference values.
	ErrInvalidTheme = errors.New("invalid theme")
)
