package models

// Config holds the application configuration
type Config struct {
	API      APIConfig      `json:"api"`
	Realtime RealtimeConfig `json:"realtime"`
	Storage  StorageConfig  `json:"storage"`
	Chat     ChatConfig     `json:"chat"`
	Server   ServerConfig   `json:"server"`
	User     UserConfig     `json:"user"`
	LogLevel string         `json:"log_level"`
}

// APIConfig holds marketplace backend related configuration
type APIConfig struct {
	BaseURL    string `json:"base_url"`
	AuthToken  string `json:"auth_token,omitempty"`
	TimeoutSec int    `json:"timeoutSec"`
}

// RealtimeConfig holds real-time channel related configuration
type RealtimeConfig struct {
	URL                  string `json:"url"`
	ReconnectInitialMs   int    `json:"reconnectInitialMs"`
	ReconnectMaxDelayMs  int    `json:"reconnectMaxDelayMs"`
	ReconnectMaxAttempts int    `json:"reconnectMaxAttempts"`
}

// StorageConfig holds the local cache database configuration
type StorageConfig struct {
	Path string `json:"path"`
}

// ChatConfig holds chat session tuning knobs
type ChatConfig struct {
	MessagePageLimit  int  `json:"messagePageLimit"`
	BudgetReloadMs    int  `json:"budgetReloadMs"`
	GateSendsOnBudget bool `json:"gateSendsOnBudget"`
}

// ServerConfig holds the local health/metrics endpoint configuration
type ServerConfig struct {
	Port int `json:"port"`
}

// UserConfig identifies the signed-in professional
type UserConfig struct {
	ID string `json:"id"`
}

// ConfigError represents a configuration validation failure
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
