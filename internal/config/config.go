package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is injected at build time via ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Jikan   JikanConfig   `mapstructure:"jikan" yaml:"jikan"`
	Browse  BrowseConfig  `mapstructure:"browse" yaml:"browse"`
	Health  HealthConfig  `mapstructure:"health" yaml:"health"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// RequestsPerMinute caps REST catalog calls per client IP (0 disables).
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	// TailSize is the number of recent warnings kept for /api/v1/logs.
	TailSize int `mapstructure:"tail_size" yaml:"tail_size"`
}

// JikanConfig holds Jikan API client configuration.
type JikanConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Timeout is the per-request timeout in seconds.
	Timeout int `mapstructure:"timeout" yaml:"timeout"`
	// RequestsPerSecond and Burst shape the outbound token bucket.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
	// RequestsPerMinute caps requests inside a rolling one-minute window.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	// Mock serves a canned catalog instead of calling the network.
	Mock bool `mapstructure:"mock" yaml:"mock"`
}

// BrowseConfig holds the debounce delays used by browse sessions.
type BrowseConfig struct {
	FilterDelay time.Duration `mapstructure:"filter_delay" yaml:"filter_delay"`
	TextDelay   time.Duration `mapstructure:"text_delay" yaml:"text_delay"`
}

// HealthConfig holds configuration for the periodic upstream probe.
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Cron    string `mapstructure:"cron" yaml:"cron"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8080,
			RequestsPerMinute: 120,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
			TailSize:   200,
		},
		Jikan: JikanConfig{
			BaseURL:           "https://api.jikan.moe/v4",
			Timeout:           10,
			RequestsPerSecond: 3,
			Burst:             3,
			RequestsPerMinute: 60,
		},
		Browse: BrowseConfig{
			FilterDelay: 500 * time.Millisecond,
			TextDelay:   800 * time.Millisecond,
		},
		Health: HealthConfig{
			Enabled: true,
			Cron:    "*/15 * * * *",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// A missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.animescout")
	}

	v.SetEnvPrefix("ANIMESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the browse controller cannot run with.
func (c *Config) Validate() error {
	if c.Jikan.BaseURL == "" {
		return errors.New("jikan.base_url must not be empty")
	}
	if c.Browse.FilterDelay <= 0 || c.Browse.TextDelay <= 0 {
		return fmt.Errorf("browse delays must be positive (filter=%s, text=%s)", c.Browse.FilterDelay, c.Browse.TextDelay)
	}
	if c.Jikan.RequestsPerSecond <= 0 {
		return fmt.Errorf("jikan.requests_per_second must be positive, got %v", c.Jikan.RequestsPerSecond)
	}
	return nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.tail_size", d.Logging.TailSize)

	v.SetDefault("jikan.base_url", d.Jikan.BaseURL)
	v.SetDefault("jikan.timeout", d.Jikan.Timeout)
	v.SetDefault("jikan.requests_per_second", d.Jikan.RequestsPerSecond)
	v.SetDefault("jikan.burst", d.Jikan.Burst)
	v.SetDefault("jikan.requests_per_minute", d.Jikan.RequestsPerMinute)
	v.SetDefault("jikan.mock", d.Jikan.Mock)

	v.SetDefault("browse.filter_delay", d.Browse.FilterDelay)
	v.SetDefault("browse.text_delay", d.Browse.TextDelay)

	v.SetDefault("health.enabled", d.Health.Enabled)
	v.SetDefault("health.cron", d.Health.Cron)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// YAML renders the effective configuration in config file form.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}
