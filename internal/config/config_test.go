package config

import (
	"os"
	"path/filepath"
	"testing"

	"prochat/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validConfig = `{
	"api": {
		"base_url": "https://api.example.com",
		"auth_token": "secret-token"
	},
	"realtime": {
		"url": "wss://rt.example.com"
	},
	"user": {
		"id": "pro-1"
	}
}`

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "wss://rt.example.com", cfg.Realtime.URL)
	assert.Equal(t, "pro-1", cfg.User.ID)
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, constants.DefaultAPITimeoutSec, cfg.API.TimeoutSec)
	assert.Equal(t, constants.DefaultMessagePageLimit, cfg.Chat.MessagePageLimit)
	assert.Equal(t, constants.DefaultBudgetReloadDelayMs, cfg.Chat.BudgetReloadMs)
	assert.Equal(t, constants.DefaultReconnectInitialDelayMs, cfg.Realtime.ReconnectInitialMs)
	assert.Equal(t, constants.DefaultReconnectMaxDelayMs, cfg.Realtime.ReconnectMaxDelayMs)
	assert.Equal(t, constants.DefaultReconnectMaxAttempts, cfg.Realtime.ReconnectMaxAttempts)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
}

func TestLoadConfig_ExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, `{
		"api": {"base_url": "https://api.example.com", "timeoutSec": 5},
		"realtime": {"url": "wss://rt.example.com", "reconnectMaxAttempts": 10},
		"user": {"id": "pro-1"},
		"chat": {"messagePageLimit": 25},
		"server": {"port": 9000}
	}`)

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.API.TimeoutSec)
	assert.Equal(t, 10, cfg.Realtime.ReconnectMaxAttempts)
	assert.Equal(t, 25, cfg.Chat.MessagePageLimit)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadConfig_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected error
	}{
		{
			name:     "missing API URL",
			content:  `{"realtime": {"url": "wss://rt"}, "user": {"id": "pro-1"}}`,
			expected: ErrMissingAPIURL,
		},
		{
			name:     "missing realtime URL",
			content:  `{"api": {"base_url": "https://api"}, "user": {"id": "pro-1"}}`,
			expected: ErrMissingRealtimeURL,
		},
		{
			name:     "missing user id",
			content:  `{"api": {"base_url": "https://api"}, "realtime": {"url": "wss://rt"}}`,
			expected: ErrMissingUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			assert.Equal(t, tt.expected, err)
		})
	}
}

func TestLoadConfig_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeConfig(t, `{"api": {`)
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("path traversal rejected", func(t *testing.T) {
		_, err := LoadConfig("../../etc/passwd")
		assert.Error(t, err)
	})
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, validConfig)

	t.Setenv("PROCHAT_API_URL", "https://override.example.com")
	t.Setenv("PROCHAT_AUTH_TOKEN", "env-token")
	t.Setenv("PROCHAT_USER_ID", "pro-env")
	t.Setenv("PROCHAT_PORT", "9191")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.API.BaseURL)
	assert.Equal(t, "env-token", cfg.API.AuthToken)
	assert.Equal(t, "pro-env", cfg.User.ID)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadConfig_BadPortEnvIgnored(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("PROCHAT_PORT", "not-a-number")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
}
