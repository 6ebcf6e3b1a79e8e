package chatkit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
url: wss://chat.example.com/ws
rest_base_url: https://api.example.com/v1
token: tok-abc
user_id: user-1
read_timeout: 0s
write_timeout: 5s
auto_reconnect: true
reconnect_interval: 1s
max_reconnect_tries: 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://chat.example.com/ws", cfg.URL)
	assert.Equal(t, "https://api.example.com/v1", cfg.RESTBaseURL)
	assert.Equal(t, "user-1", cfg.UserID)
	assert.Equal(t, time.Duration(0), cfg.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.True(t, cfg.AutoReconnect)
	assert.Equal(t, time.Second, cfg.ReconnectInterval)
	assert.Equal(t, 3, cfg.MaxReconnectTries)
	// untouched fields keep defaults
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 30*time.Second, cfg.MaxReconnectDelay)
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfig(t, "read_timeout: soon\n")
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, NewError(ErrorInvalidConfig, ""))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, NewError(ErrorInvalidConfig, ""))
}
