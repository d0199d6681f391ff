package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Security SecurityConfig `json:"security"`
	Qvantum  QvantumConfig  `json:"qvantum"`
	Polling  PollingConfig  `json:"polling"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	APIKey string `json:"api_key"`
}

// QvantumConfig contains Qvantum cloud account and endpoint settings.
// Endpoint overrides are for testing against a local stub; production
// deployments leave them empty and get the cloud defaults.
type QvantumConfig struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	APIKey      string `json:"api_key"`
	APIURL      string `json:"api_url"`
	AuthURL     string `json:"auth_url"`
	RefreshURL  string `json:"refresh_url"`
	DisableFast bool   `json:"disable_fast"`
}

// PollingConfig contains the two poll cadences
type PollingConfig struct {
	NormalInterval Duration `json:"normal_interval"`
	FastInterval   Duration `json:"fast_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Duration wraps time.Duration so JSON configs can say "30s" or "5s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const (
	defaultNormalInterval = 30 * time.Second
	defaultFastInterval   = 5 * time.Second
)

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}

	if c.Security.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	if c.Qvantum.Username == "" || c.Qvantum.Password == "" || c.Qvantum.APIKey == "" {
		return fmt.Errorf("%w: Qvantum credentials are required", ErrInvalidConfig)
	}

	if c.Polling.NormalInterval <= 0 {
		c.Polling.NormalInterval = Duration(defaultNormalInterval)
	}
	if c.Polling.FastInterval <= 0 {
		c.Polling.FastInterval = Duration(defaultFastInterval)
	}
	if c.Polling.FastInterval > c.Polling.NormalInterval {
		return fmt.Errorf("%w: fast interval must not exceed normal interval", ErrInvalidConfig)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}

// Load loads configuration from a JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("HEATBRIDGE_HOST", "0.0.0.0"),
			Port: getEnvInt("HEATBRIDGE_PORT", 8080),
		},
		Database: DatabaseConfig{
			Path: getEnv("HEATBRIDGE_DB_PATH", "./heatbridge.db"),
		},
		Security: SecurityConfig{
			APIKey: getEnv("HEATBRIDGE_API_KEY", ""),
		},
		Qvantum: QvantumConfig{
			Username:    getEnv("HEATBRIDGE_QVANTUM_USERNAME", ""),
			Password:    getEnv("HEATBRIDGE_QVANTUM_PASSWORD", ""),
			APIKey:      getEnv("HEATBRIDGE_QVANTUM_API_KEY", ""),
			APIURL:      getEnv("HEATBRIDGE_QVANTUM_API_URL", ""),
			AuthURL:     getEnv("HEATBRIDGE_QVANTUM_AUTH_URL", ""),
			RefreshURL:  getEnv("HEATBRIDGE_QVANTUM_REFRESH_URL", ""),
			DisableFast: getEnvBool("HEATBRIDGE_DISABLE_FAST_POLLING", false),
		},
		Polling: PollingConfig{
			NormalInterval: Duration(getEnvDuration("HEATBRIDGE_NORMAL_INTERVAL", defaultNormalInterval)),
			FastInterval:   Duration(getEnvDuration("HEATBRIDGE_FAST_INTERVAL", defaultFastInterval)),
		},
		Logging: LoggingConfig{
			Level:  getEnv("HEATBRIDGE_LOG_LEVEL", "info"),
			Format: getEnv("HEATBRIDGE_LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		fmt.Sscanf(value, "%d", &intVal)
		return intVal
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
