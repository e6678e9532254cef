package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for HubLink
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	HubSpot     HubSpotConfig `toml:"hubspot"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds paths for the two storage areas.
type StorageConfig struct {
	Tokens AreaConfig `toml:"tokens"` // OAuth token records (BadgerHold)
	Local  AreaConfig `toml:"local"`  // Local opportunities and companies (BadgerHold)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// HubSpotConfig holds OAuth client credentials and API settings for HubSpot.
type HubSpotConfig struct {
	ClientID       string   `toml:"client_id"`
	ClientSecret   string   `toml:"client_secret"`
	RedirectURI    string   `toml:"redirect_uri"`
	CallbackScheme string   `toml:"callback_scheme"` // custom URI scheme the app callback uses
	CallbackHost   string   `toml:"callback_host"`
	Scopes         []string `toml:"scopes"`
	AuthorizeURL   string   `toml:"authorize_url"`
	TokenURL       string   `toml:"token_url"`
	BaseURL        string   `toml:"base_url"`
	RateLimit      int      `toml:"rate_limit"`
	Timeout        string   `toml:"timeout"`
}

// GetTimeout parses and returns the HTTP timeout duration
func (c *HubSpotConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"`
	FilePath string `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Tokens: AreaConfig{Path: "data/tokens"},
			Local:  AreaConfig{Path: "data/local"},
		},
		HubSpot: HubSpotConfig{
			RedirectURI:    "https://www.salesdiver.net/hubspot/oauth/callback",
			CallbackScheme: "salesdiver",
			CallbackHost:   "hubspot",
			Scopes: []string{
				"crm.objects.deals.read",
				"crm.objects.deals.write",
				"crm.objects.companies.read",
				"crm.objects.contacts.read",
			},
			AuthorizeURL: "https://app.hubspot.com/oauth/authorize",
			TokenURL:     "https://api.hubapi.com/oauth/v1/token",
			BaseURL:      "https://api.hubapi.com",
			RateLimit:    5,
			Timeout:      "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("HUBLINK_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("HUBLINK_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("HUBLINK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("HUBLINK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("HUBLINK_HUBSPOT_CLIENT_ID"); v != "" {
		config.HubSpot.ClientID = v
	}
	if v := os.Getenv("HUBLINK_HUBSPOT_CLIENT_SECRET"); v != "" {
		config.HubSpot.ClientSecret = v
	}
	if v := os.Getenv("HUBLINK_HUBSPOT_REDIRECT_URI"); v != "" {
		config.HubSpot.RedirectURI = v
	}
	if v := os.Getenv("HUBLINK_HUBSPOT_SCOPES"); v != "" {
		config.HubSpot.Scopes = strings.Fields(v)
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
