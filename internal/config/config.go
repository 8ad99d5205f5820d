package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig        `yaml:"app"`
	Database      DatabaseConfig   `yaml:"database"`
	Redis         RedisConfig      `yaml:"redis"`
	Backup        BackupConfig     `yaml:"backup"`
	Monitoring    MonitoringConfig `yaml:"monitoring"`
	Logging       LoggingConfig    `yaml:"logging"`
	API           APIConfig        `yaml:"api"`
	Scheduling    SchedulingConfig `yaml:"scheduling"`
	Google        GoogleConfig     `yaml:"google"`
	Exports       ExportConfig     `yaml:"exports"`
	TemplatesFile string           `yaml:"templates_file"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey binds a key to a caller. ProfessionalID, when set, scopes
// the key to one professional's agenda.
type APIClientKey struct {
	Key            string   `yaml:"key"`
	Name           string   `yaml:"name"`
	ProfessionalID string   `yaml:"professional_id"`
	Permissions    []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SchedulingConfig tunes the confirmation retry loop and slot generation.
type SchedulingConfig struct {
	MaxTxRetries           int `yaml:"max_tx_retries"`
	RetryBaseMs            int `yaml:"retry_base_ms"`
	SlotCacheTTLSec        int `yaml:"slot_cache_ttl_sec"`
	BookingHorizonDays     int `yaml:"booking_horizon_days"`
	ClientRequestLimit     int `yaml:"client_request_limit"`
	ClientRequestWindowSec int `yaml:"client_request_window_sec"`
}

type GoogleConfig struct {
	CredentialsFile     string `yaml:"credentials_file"`
	AgendaSpreadsheetID string `yaml:"agenda_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing so secrets stay out of YAML.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Auth.Enabled {
		seen := make(map[string]bool)
		for _, key := range c.API.Auth.APIKeys {
			if key.Key == "" {
				return fmt.Errorf("api key for %q is empty", key.Name)
			}
			if seen[key.Key] {
				return fmt.Errorf("duplicate api key for %q", key.Name)
			}
			seen[key.Key] = true
		}
	}

	if c.Scheduling.BookingHorizonDays < 0 {
		return errors.New("scheduling.booking_horizon_days must not be negative")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}

	if c.Scheduling.MaxTxRetries == 0 {
		c.Scheduling.MaxTxRetries = 3
	}
	if c.Scheduling.RetryBaseMs == 0 {
		c.Scheduling.RetryBaseMs = 25
	}
	if c.Scheduling.SlotCacheTTLSec == 0 {
		c.Scheduling.SlotCacheTTLSec = 60
	}
	if c.Scheduling.BookingHorizonDays == 0 {
		c.Scheduling.BookingHorizonDays = 90
	}
	if c.Scheduling.ClientRequestLimit == 0 {
		c.Scheduling.ClientRequestLimit = 10
	}
	if c.Scheduling.ClientRequestWindowSec == 0 {
		c.Scheduling.ClientRequestWindowSec = 3600
	}
}
