package chatkit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls how the SDK connects.
type Config struct {
	URL         string // websocket endpoint
	RESTBaseURL string // history/REST endpoint, e.g. "https://api.example.com/v1"
	Token       string // JWT for hello
	UserID      string // local user identity, from the app's auth layer

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration

	// Reconnect behavior after an unexpected disconnect. Joined chats are
	// re-subscribed automatically on success.
	AutoReconnect     bool
	ReconnectInterval time.Duration
	MaxReconnectDelay time.Duration
	MaxReconnectTries int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReconnectInterval: 2 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		MaxReconnectTries: 10,
	}
}

type fileConfig struct {
	URL         string `yaml:"url"`
	RESTBaseURL string `yaml:"rest_base_url"`
	Token       string `yaml:"token"`
	UserID      string `yaml:"user_id"`

	HandshakeTimeout string `yaml:"handshake_timeout"`
	ReadTimeout      string `yaml:"read_timeout"`
	WriteTimeout     string `yaml:"write_timeout"`

	AutoReconnect     bool   `yaml:"auto_reconnect"`
	ReconnectInterval string `yaml:"reconnect_interval"`
	MaxReconnectDelay string `yaml:"max_reconnect_delay"`
	MaxReconnectTries *int   `yaml:"max_reconnect_tries"`
}

// LoadConfig reads a YAML config file on top of DefaultConfig. Durations are
// Go duration strings ("10s", "1m30s"). Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, WrapError(ErrorInvalidConfig, "read config file", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return cfg, WrapError(ErrorInvalidConfig, "parse config file", err)
	}

	cfg.URL = fc.URL
	cfg.RESTBaseURL = fc.RESTBaseURL
	cfg.Token = fc.Token
	cfg.UserID = fc.UserID
	cfg.AutoReconnect = fc.AutoReconnect
	if fc.MaxReconnectTries != nil {
		cfg.MaxReconnectTries = *fc.MaxReconnectTries
	}

	durs := []struct {
		raw string
		dst *time.Duration
	}{
		{fc.HandshakeTimeout, &cfg.HandshakeTimeout},
		{fc.ReadTimeout, &cfg.ReadTimeout},
		{fc.WriteTimeout, &cfg.WriteTimeout},
		{fc.ReconnectInterval, &cfg.ReconnectInterval},
		{fc.MaxReconnectDelay, &cfg.MaxReconnectDelay},
	}
	for _, d := range durs {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, WrapError(ErrorInvalidConfig, fmt.Sprintf("bad duration %q", d.raw), err)
		}
		*d.dst = v
	}
	return cfg, nil
}
