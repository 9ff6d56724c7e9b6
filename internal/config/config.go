package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"prochat/internal/constants"
	"prochat/internal/models"
	"prochat/internal/security"
)

var (
	ErrMissingAPIURL      = models.ConfigError{Message: "missing marketplace API base URL"}
	ErrMissingRealtimeURL = models.ConfigError{Message: "missing real-time channel URL"}
	ErrMissingUserID      = models.ConfigError{Message: "missing professional user id"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.API.BaseURL == "" {
		return ErrMissingAPIURL
	}
	if c.Realtime.URL == "" {
		return ErrMissingRealtimeURL
	}
	if c.User.ID == "" {
		return ErrMissingUserID
	}

	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = constants.DefaultAPITimeoutSec
	}
	if c.Chat.MessagePageLimit <= 0 {
		c.Chat.MessagePageLimit = constants.DefaultMessagePageLimit
	}
	if c.Chat.BudgetReloadMs <= 0 {
		c.Chat.BudgetReloadMs = constants.DefaultBudgetReloadDelayMs
	}
	if c.Realtime.ReconnectInitialMs <= 0 {
		c.Realtime.ReconnectInitialMs = constants.DefaultReconnectInitialDelayMs
	}
	if c.Realtime.ReconnectMaxDelayMs <= 0 {
		c.Realtime.ReconnectMaxDelayMs = constants.DefaultReconnectMaxDelayMs
	}
	if c.Realtime.ReconnectMaxAttempts <= 0 {
		c.Realtime.ReconnectMaxAttempts = constants.DefaultReconnectMaxAttempts
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}

	if c.Storage.Path != "" {
		if err := security.ValidateFilePath(c.Storage.Path); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid storage path: %v", err)}
		}
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("PROCHAT_API_URL"); url != "" {
		c.API.BaseURL = url
	}
	if url := os.Getenv("PROCHAT_REALTIME_URL"); url != "" {
		c.Realtime.URL = url
	}

	// The auth token belongs in the environment, not in a config file on disk.
	if token := os.Getenv("PROCHAT_AUTH_TOKEN"); token != "" {
		c.API.AuthToken = token
	}

	if id := os.Getenv("PROCHAT_USER_ID"); id != "" {
		c.User.ID = id
	}
	if path := os.Getenv("PROCHAT_DB_PATH"); path != "" {
		c.Storage.Path = path
	}
	if port := os.Getenv("PROCHAT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}
