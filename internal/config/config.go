package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL             string
	MessagesSocketURL      string
	NotificationsSocketURL string

	ListenAddr string
	StateDir   string

	// LocalAPIToken, when set, must be presented as a bearer token on every
	// local API request.
	LocalAPIToken string

	// RedisURL is optional. When set, client state is persisted to Redis and
	// sync events are mirrored to SyncStream.
	RedisURL   string
	SyncStream string
	// Profile namespaces the Redis state hash, so several daemons can share one Redis.
	Profile    string

	HTTPTimeout time.Duration

	SocketReconnectAttempts int
	SocketReconnectDelay    time.Duration

	TypingIdle time.Duration

	MessagePageSize      int
	NotificationPageSize int
	CommentPageSize      int

	LogLevel string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	apiBaseURL := strings.TrimSuffix(getEnv("API_BASE_URL", "http://localhost:8080/api"), "/")

	stateDir := os.Getenv("STATE_DIR")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		stateDir = filepath.Join(home, ".socialsync")
	}

	return &Config{
		APIBaseURL:             apiBaseURL,
		MessagesSocketURL:      getEnv("MESSAGES_SOCKET_URL", socketURL(apiBaseURL, "/ws/messages")),
		NotificationsSocketURL: getEnv("NOTIFICATIONS_SOCKET_URL", socketURL(apiBaseURL, "/ws/notifications")),

		ListenAddr:    getEnv("LISTEN_ADDR", "127.0.0.1:7070"),
		StateDir:      stateDir,
		LocalAPIToken: os.Getenv("LOCAL_API_TOKEN"),

		RedisURL:   os.Getenv("REDIS_URL"),
		SyncStream: getEnv("SYNC_STREAM", "stream:sync"),
		Profile:    getEnv("PROFILE", "default"),

		HTTPTimeout: time.Duration(getPositiveInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,

		SocketReconnectAttempts: getPositiveInt("SOCKET_RECONNECT_ATTEMPTS", 5),
		SocketReconnectDelay:    time.Duration(getPositiveInt("SOCKET_RECONNECT_DELAY_MS", 1000)) * time.Millisecond,

		TypingIdle: time.Duration(getPositiveInt("TYPING_IDLE_MS", 3000)) * time.Millisecond,

		MessagePageSize:      getPositiveInt("MESSAGE_PAGE_SIZE", 30),
		NotificationPageSize: getPositiveInt("NOTIFICATION_PAGE_SIZE", 20),
		CommentPageSize:      getPositiveInt("COMMENT_PAGE_SIZE", 10),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getPositiveInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// socketURL derives a ws(s):// URL from the REST base URL.
func socketURL(base, path string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + path
}
