package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"socialsync/internal/logger"
	"socialsync/internal/model"
)

// StatusError is returned for non-2xx responses. Code and Message are taken
// from the backend's {"error": {"code", "message"}} envelope when present.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == status
}

// Client is the REST client for the social backend. It attaches the bearer
// access token to every request and, on a 401 from a non-auth endpoint,
// refreshes the token once and retries. Concurrent 401s share one refresh call.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.RWMutex
	tokens model.TokenPair

	refreshGroup singleflight.Group

	onRefreshed func(model.TokenPair)
	onExpired   func()
}

// NewClient creates a new API client for the given base URL (e.g. "https://host/api").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetTokens installs the token pair used for subsequent requests.
func (c *Client) SetTokens(pair model.TokenPair) {
	c.mu.Lock()
	c.tokens = pair
	c.mu.Unlock()
}

// Tokens returns the current token pair.
func (c *Client) Tokens() model.TokenPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// ClearTokens drops both tokens (logout).
func (c *Client) ClearTokens() {
	c.SetTokens(model.TokenPair{})
}

// OnTokensRefreshed registers a callback invoked after every successful refresh,
// used to persist the new pair.
func (c *Client) OnTokensRefreshed(fn func(model.TokenPair)) {
	c.onRefreshed = fn
}

// OnSessionExpired registers a callback invoked once per failed refresh.
func (c *Client) OnSessionExpired(fn func()) {
	c.onExpired = fn
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}

// do performs a JSON request. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	used := c.Tokens().AccessToken
	err := c.send(ctx, method, path, query, payload, used, out)
	if err == nil || isAuthPath(path) || !IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	logger.Infof("[APIClient] 401 on %s %s, refreshing token", method, path)

	fresh, rerr := c.refresh(ctx, used)
	if rerr != nil {
		return rerr
	}

	// One retry only. A second 401 is returned as-is.
	return c.send(ctx, method, path, query, payload, fresh, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, token string, out interface{}) error {
	startTime := time.Now()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warnf("[APIClient] %s %s FAILED: err=%v", method, path, err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Debugf("[APIClient] %s %s status=%d duration=%v", method, path, resp.StatusCode, time.Since(startTime))
		return parseStatusError(resp.StatusCode, respBody)
	}

	logger.Debugf("[APIClient] %s %s OK: status=%d duration=%v", method, path, resp.StatusCode, time.Since(startTime))

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func parseStatusError(status int, body []byte) error {
	se := &StatusError{StatusCode: status}

	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != nil {
			se.Code = envelope.Error.Code
			se.Message = envelope.Error.Message
		} else {
			se.Message = envelope.Message
		}
	}
	if se.Message == "" {
		se.Message = http.StatusText(status)
	}
	return se
}

// refresh exchanges the refresh token for a new pair. stale is the access
// token the failed request carried: if the current token differs, another
// caller already refreshed and the current token is returned directly.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	current := c.Tokens()
	if current.AccessToken != "" && current.AccessToken != stale {
		return current.AccessToken, nil
	}
	if current.RefreshToken == "" {
		c.expire()
		return "", model.ErrSessionExpired
	}

	v, err, shared := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		if latest := c.Tokens().AccessToken; latest != "" && latest != stale {
			return latest, nil
		}

		// Not tied to the first caller's context: other callers wait on this result.
		pair, err := c.postRefresh(context.WithoutCancel(ctx), current.RefreshToken)
		if err != nil {
			logger.Warnf("[APIClient] Refresh FAILED: err=%v", err)
			c.expire()
			return "", fmt.Errorf("%w: %v", model.ErrSessionExpired, err)
		}

		c.SetTokens(pair)
		if c.onRefreshed != nil {
			c.onRefreshed(pair)
		}
		logger.Infof("[APIClient] Refresh OK")
		return pair.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		logger.Debugf("[APIClient] Refresh result shared with concurrent request")
	}
	return v.(string), nil
}

func (c *Client) postRefresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	payload, err := json.Marshal(model.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return model.TokenPair{}, err
	}

	var pair model.TokenPair
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", nil, payload, "", &pair); err != nil {
		return model.TokenPair{}, err
	}
	if pair.AccessToken == "" {
		return model.TokenPair{}, errors.New("refresh response missing access token")
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

func (c *Client) expire() {
	c.ClearTokens()
	if c.onExpired != nil {
		c.onExpired()
	}
}

// EnsureFresh refreshes the access token ahead of time when it has expired or
// is about to. Used when restoring a persisted session.
func (c *Client) EnsureFresh(ctx context.Context, skew time.Duration) error {
	tokens := c.Tokens()
	if tokens.AccessToken == "" {
		return model.ErrNotAuthenticated
	}

	exp, ok := TokenExpiry(tokens.AccessToken)
	if !ok || time.Until(exp) > skew {
		return nil
	}

	_, err := c.refresh(ctx, tokens.AccessToken)
	return err
}
