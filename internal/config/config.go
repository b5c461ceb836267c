package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variables read by New.
const (
	EnvServerURL      = "VRPANEL_SERVER_URL"
	EnvSocketURL      = "VRPANEL_SOCKET_URL"
	EnvReconnectDelay = "VRPANEL_RECONNECT_DELAY"
	EnvDialTimeout    = "VRPANEL_DIAL_TIMEOUT"
	EnvHTTPTimeout    = "VRPANEL_HTTP_TIMEOUT"
	EnvWSDriver       = "VRPANEL_WS_DRIVER"
	EnvCoverCacheDir  = "VRPANEL_COVER_CACHE_DIR"
)

// Defaults applied when the environment leaves a setting empty.
const (
	DefaultServerURL      = "http://localhost:3001"
	DefaultReconnectDelay = 3 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultHTTPTimeout    = 15 * time.Second
	DefaultWSDriver       = "coder"
)

// Config holds all configuration for the panel client.
type Config struct {
	// ServerURL is the appliance's HTTP origin, e.g. http://192.168.1.108:3001.
	ServerURL string `validate:"required,url"`
	// SocketURL is the state socket; derived from ServerURL when unset.
	SocketURL      string        `validate:"required,url"`
	ReconnectDelay time.Duration `validate:"gt=0"`
	DialTimeout    time.Duration `validate:"gt=0"`
	HTTPTimeout    time.Duration `validate:"gt=0"`
	WSDriver       string        `validate:"oneof=coder gorilla"`
	CoverCacheDir  string        `validate:"required"`
}

// New loads configuration from a .env file (if present) and the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerURL:     getenv(EnvServerURL, DefaultServerURL),
		SocketURL:     os.Getenv(EnvSocketURL),
		WSDriver:      getenv(EnvWSDriver, DefaultWSDriver),
		CoverCacheDir: getenv(EnvCoverCacheDir, defaultCoverCacheDir()),
	}

	var err error
	if cfg.ReconnectDelay, err = durationEnv(EnvReconnectDelay, DefaultReconnectDelay); err != nil {
		return nil, err
	}
	if cfg.DialTimeout, err = durationEnv(EnvDialTimeout, DefaultDialTimeout); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = durationEnv(EnvHTTPTimeout, DefaultHTTPTimeout); err != nil {
		return nil, err
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize derives SocketURL when it is empty and validates the result. Call
// it again after overriding fields.
func (c *Config) Finalize() error {
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.SocketURL == "" && c.ServerURL != "" {
		socketURL, err := SocketURLFor(c.ServerURL)
		if err != nil {
			return err
		}
		c.SocketURL = socketURL
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// APIURL returns the base of the appliance's HTTP API.
func (c *Config) APIURL() string {
	return c.ServerURL + "/api"
}

// SocketURLFor maps an http(s) origin to its ws(s) state socket URL.
func SocketURLFor(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url %q must use http or https", serverURL)
	}
	u.Path = path.Join("/", u.Path, "api", "sock")
	return u.String(), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func defaultCoverCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vrpanel", "covers")
	}
	return filepath.Join(dir, "vrpanel", "covers")
}
