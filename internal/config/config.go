package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

// ErrInvalidEncryptionKey indicates the configured encryption key is not 32 bytes of hex
var ErrInvalidEncryptionKey = errors.New("encryption key must be 64 hex characters (32 bytes)")

// Config holds the application configuration
type Config struct {
	DatabasePath string `json:"database_path"`
	APIPort      string `json:"api_port"`
	LogLevel     string `json:"log_level"`
	FrontendURL  string `json:"frontend_url"`
	CORSOrigins  string `json:"cors_origins"` // comma separated, * for all; empty falls back to FrontendURL

	// Google OAuth
	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`
	GoogleCallbackURL  string `json:"google_callback_url"`

	// Independent signing secrets so compromise of one cannot mint the other token kind
	JWTAccessSecret  string `json:"jwt_access_secret"`
	JWTRefreshSecret string `json:"jwt_refresh_secret"`

	// AES-256-GCM key for the stored Google refresh token, hex encoded
	EncryptionKey string `json:"encryption_key"`

	// Gmail sync window
	DefaultFetchLimit int `json:"default_fetch_limit"`
	MaxFetchLimit     int `json:"max_fetch_limit"`

	// Pagination bounds
	DefaultPageLimit int `json:"default_page_limit"`
	MaxPageLimit     int `json:"max_page_limit"`
}

// Default configuration values
const (
	DefaultDatabasePath = "data/mailmate.db"
	DefaultAPIPort      = "8080"
	DefaultLogLevel     = "INFO"
	DefaultFrontendURL  = "http://localhost:3000"
	DefaultCORSOrigins  = ""
	DefaultCallbackURL  = "http://localhost:8080/api/auth/google/callback"

	DefaultFetchLimitValue = 50
	DefaultMaxFetchLimit   = 200
	DefaultPageLimitValue  = 20
	DefaultMaxPageLimit    = 100
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:      DefaultDatabasePath,
		APIPort:           DefaultAPIPort,
		LogLevel:          DefaultLogLevel,
		FrontendURL:       DefaultFrontendURL,
		CORSOrigins:       DefaultCORSOrigins,
		GoogleCallbackURL: DefaultCallbackURL,
		DefaultFetchLimit: DefaultFetchLimitValue,
		MaxFetchLimit:     DefaultMaxFetchLimit,
		DefaultPageLimit:  DefaultPageLimitValue,
		MaxPageLimit:      DefaultMaxPageLimit,
	}

	// Config file is optional
	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json if present
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		filepath.Join(filepath.Dir(c.DatabasePath), "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return json.Unmarshal(data, c)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("MAILMATE_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("MAILMATE_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("MAILMATE_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("MAILMATE_FRONTEND_URL"); val != "" {
		c.FrontendURL = val
	}
	if val := os.Getenv("MAILMATE_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv("GOOGLE_CLIENT_ID"); val != "" {
		c.GoogleClientID = val
	}
	if val := os.Getenv("GOOGLE_CLIENT_SECRET"); val != "" {
		c.GoogleClientSecret = val
	}
	if val := os.Getenv("GOOGLE_CALLBACK_URL"); val != "" {
		c.GoogleCallbackURL = val
	}
	if val := os.Getenv("MAILMATE_JWT_ACCESS_SECRET"); val != "" {
		c.JWTAccessSecret = val
	}
	if val := os.Getenv("MAILMATE_JWT_REFRESH_SECRET"); val != "" {
		c.JWTRefreshSecret = val
	}
	if val := os.Getenv("MAILMATE_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
	}
	if val := os.Getenv("MAILMATE_DEFAULT_FETCH_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.DefaultFetchLimit = n
		}
	}
	if val := os.Getenv("MAILMATE_MAX_FETCH_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.MaxFetchLimit = n
		}
	}
	if val := os.Getenv("MAILMATE_DEFAULT_PAGE_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.DefaultPageLimit = n
		}
	}
	if val := os.Getenv("MAILMATE_MAX_PAGE_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.MaxPageLimit = n
		}
	}
}

// GetEncryptionKey decodes the configured hex key and enforces the AES-256 key length
func (c *Config) GetEncryptionKey() ([]byte, error) {
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, ErrInvalidEncryptionKey
	}
	if len(key) != 32 {
		return nil, ErrInvalidEncryptionKey
	}
	return key, nil
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
