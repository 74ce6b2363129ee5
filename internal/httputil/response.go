package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"socialsync/internal/api"
	"socialsync/internal/logger"
	"socialsync/internal/model"
)

// Error codes returned by the local API
const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeSessionExpired = "SESSION_EXPIRED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeUpstream       = "UPSTREAM_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Warnf("[HTTP] Encode response FAILED: err=%v", err)
		}
	}
}

// WriteError writes an error response:
// {"error": {"code": "ERROR_CODE", "message": "Human readable message"}}
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request error
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// WriteUnauthorized writes a 401 Unauthorized error
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// WriteNotFound writes a 404 Not Found error
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// WriteConflict writes a 409 Conflict error
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, ErrCodeConflict, message)
}

// WriteInternalError writes a 500 Internal Server Error
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// DecodeJSON decodes the request body into v, writing a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// WriteServiceError maps coordinator and backend errors to responses.
// Pagination refusals are conflicts; backend failures are passed through as
// 502 with the backend's message.
func WriteServiceError(w http.ResponseWriter, err error) {
	var statusErr *api.StatusError

	switch {
	case errors.Is(err, model.ErrSessionExpired):
		WriteError(w, http.StatusUnauthorized, ErrCodeSessionExpired, err.Error())
	case errors.Is(err, model.ErrNotAuthenticated):
		WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, model.ErrContentRequired),
		errors.Is(err, model.ErrContentTooLong),
		errors.Is(err, model.ErrInvalidTheme),
		errors.Is(err, model.ErrUsernameRequired),
		errors.Is(err, model.ErrPasswordRequired):
		WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrNoActiveConversation),
		errors.Is(err, model.ErrConversationChanged),
		errors.Is(err, model.ErrLoadInProgress),
		errors.Is(err, model.ErrNothingMore),
		errors.Is(err, model.ErrThreadNotLoaded):
		WriteConflict(w, err.Error())
	case errors.Is(err, model.ErrCommentNotFound),
		errors.Is(err, model.ErrNotificationNotFound):
		WriteNotFound(w, err.Error())
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusUnauthorized {
			WriteUnauthorized(w, statusErr.Error())
			return
		}
		code := statusErr.Code
		if code == "" {
			code = ErrCodeUpstream
		}
		WriteError(w, http.StatusBadGateway, code, statusErr.Error())
	default:
		logger.Errorf("[HTTP] Unhandled error: %v", err)
		WriteError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	}
}
