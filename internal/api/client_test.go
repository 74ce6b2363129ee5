package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialsync/internal/model"
)

// =============================================================================
// Fake backend
// =============================================================================

// fakeBackend accepts exactly one access token. Every other token gets a 401.
type fakeBackend struct {
	mu           sync.Mutex
	validToken   string
	nextToken    string
	refreshCalls int32
	refreshDelay time.Duration
	refreshFails bool
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshCalls, 1)
		time.Sleep(b.refreshDelay)

		var req model.RefreshRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if b.refreshFails || req.RefreshToken != "refresh-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"TOKEN_INVALID","message":"bad refresh token"}}`))
			return
		}

		b.mu.Lock()
		b.validToken = b.nextToken
		b.mu.Unlock()

		_ = json.NewEncoder(w).Encode(model.TokenPair{AccessToken: b.nextToken, RefreshToken: "refresh-2"})
	})

	mux.HandleFunc("/messages/conversations", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		valid := b.validToken
		b.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"TOKEN_EXPIRED","message":"Access token has expired"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"conversations":[{"id":1,"unreadCount":2},{"id":"2","unreadCount":0}]}`))
	})

	return mux
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// =============================================================================
// Tests
// =============================================================================

func TestClient_AttachesBearerToken(t *testing.T) {
	backend := &fakeBackend{validToken: "access-1"}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.SetTokens(model.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	convs, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, model.ID("1"), convs[0].ID)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Equal(t, int32(0), atomic.LoadInt32(&backend.refreshCalls))
}

func TestClient_RefreshesOnceAndRetries(t *testing.T) {
	backend := &fakeBackend{validToken: "other", nextToken: "access-2"}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.SetTokens(model.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	var persisted model.TokenPair
	c.OnTokensRefreshed(func(p model.TokenPair) { persisted = p })

	convs, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Len(t, convs, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.refreshCalls))
	assert.Equal(t, "access-2", c.Tokens().AccessToken)
	assert.Equal(t, "refresh-2", persisted.RefreshToken)
}

func TestClient_ConcurrentUnauthorizedCoalesceIntoOneRefresh(t *testing.T) {
	backend := &fakeBackend{validToken: "other", nextToken: "access-2", refreshDelay: 50 * time.Millisecond}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	c.SetTokens(model.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListConversations(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.refreshCalls))
}

func TestClient_RefreshFailureExpiresSession(t *testing.T) {
	backend := &fakeBackend{validToken: "other", refreshFails: true}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.SetTokens(model.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	expired := 0
	c.OnSessionExpired(func() { expired++ })

	_, err := c.ListConversations(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSessionExpired)
	assert.Equal(t, 1, expired)
	assert.Empty(t, c.Tokens().AccessToken)
}

func TestClient_AuthEndpointsDoNotRefresh(t *testing.T) {
	var refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			atomic.AddInt32(&refreshCalls, 1)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid credentials"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.SetTokens(model.TokenPair{AccessToken: "a", RefreshToken: "r"})

	_, err := c.Login(context.Background(), model.LoginRequest{Username: "u", Password: "p"})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", se.Code)
	assert.Equal(t, "Invalid credentials", se.Message)
	assert.Equal(t, int32(0), atomic.LoadInt32(&refreshCalls))
}

func TestClient_QueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/post/9/comments/42/replies", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"comments":[{"id":43,"postId":9,"rootId":42,"text":"hi"}],"nextCursor":"def","hasMore":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	cursor := "abc"
	resp, err := c.ListReplies(context.Background(), "9", "42", 3, &cursor)
	require.NoError(t, err)
	require.Len(t, resp.Comments, 1)
	assert.True(t, resp.Comments[0].IsReply())
	assert.Equal(t, "def", *resp.NextCursor)
}

func TestUserIDFromToken(t *testing.T) {
	numeric := signedToken(t, jwt.MapClaims{"user_id": 17})
	id, err := UserIDFromToken(numeric)
	require.NoError(t, err)
	assert.Equal(t, model.ID("17"), id)

	sub := signedToken(t, jwt.MapClaims{"sub": "u-99"})
	id, err = UserIDFromToken(sub)
	require.NoError(t, err)
	assert.Equal(t, model.ID("u-99"), id)

	_, err = UserIDFromToken("not-a-token")
	assert.Error(t, err)
}

func TestEnsureFresh_RefreshesExpiredToken(t *testing.T) {
	expiredToken := signedToken(t, jwt.MapClaims{"user_id": 1, "exp": time.Now().Add(-time.Minute).Unix()})

	backend := &fakeBackend{validToken: "other", nextToken: "access-2"}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.SetTokens(model.TokenPair{AccessToken: expiredToken, RefreshToken: "refresh-1"})

	require.NoError(t, c.EnsureFresh(context.Background(), 30*time.Second))
	assert.Equal(t, "access-2", c.Tokens().AccessToken)

	freshToken := signedToken(t, jwt.MapClaims{"user_id": 1, "exp": time.Now().Add(time.Hour).Unix()})
	c.SetTokens(model.TokenPair{AccessToken: freshToken, RefreshToken: "refresh-2"})
	require.NoError(t, c.EnsureFresh(context.Background(), 30*time.Second))
	assert.True(t, strings.HasPrefix(c.Tokens().AccessToken, "ey"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.refreshCalls))
}
