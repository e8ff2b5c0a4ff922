// Package config loads and validates the service configuration.
package config

import (
	"fmt"
	"time"
)

// Config holds the full configuration of the service.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Upstream Upstream `mapstructure:"upstream"`
	Redis    Redis    `mapstructure:"redis"`
	S3       S3       `mapstructure:"s3"`
	Refresh  Refresh  `mapstructure:"refresh"`
	Schedule Schedule `mapstructure:"schedule"`

	// Tickers is the fixed, ordered list of symbols whose logos are cached.
	Tickers []string `mapstructure:"tickers"`

	LogFormat string `mapstructure:"logFormat"`
	Debug     bool   `mapstructure:"debug"`
	Quiet     bool   `mapstructure:"quiet"`
}

// Server configures the HTTP serving layer.
type Server struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	BasePath   string `mapstructure:"basePath"`
	AdminToken string `mapstructure:"adminToken"`
}

// Upstream configures the market-data reference API client.
type Upstream struct {
	BaseURL string        `mapstructure:"baseURL"`
	APIKey  string        `mapstructure:"apiKey"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Redis configures the metadata key-value store.
type Redis struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
}

// S3 configures the blob store (AWS S3 or any S3-compatible service).
type S3 struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"useSSL"`
}

// Refresh configures the logo refresh cycle.
type Refresh struct {
	// TTL is how long a stored logo is considered fresh.
	TTL time.Duration `mapstructure:"ttl"`
	// Debounce collapses overlapping tick triggers into one effective tick.
	Debounce time.Duration `mapstructure:"debounce"`
	// RetryFallback is the backoff used when a 429 carries no usable
	// retry-after signal.
	RetryFallback time.Duration `mapstructure:"retryFallback"`
	// PerItemInterval is the nominal pacing between items, used to size the
	// cycle window.
	PerItemInterval time.Duration `mapstructure:"perItemInterval"`
	// CycleBuffer is extra slack added to the cycle window.
	CycleBuffer time.Duration `mapstructure:"cycleBuffer"`
}

// Schedule holds the cron expressions for the two external triggers.
type Schedule struct {
	Daily  string `mapstructure:"daily"`
	Minute string `mapstructure:"minute"`
}

// Validate checks invariants that cannot be defaulted away.
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return fmt.Errorf("config: tickers list must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Refresh.TTL <= 0 {
		return fmt.Errorf("config: refresh.ttl must be positive")
	}
	if c.Refresh.PerItemInterval <= 0 {
		return fmt.Errorf("config: refresh.perItemInterval must be positive")
	}
	return nil
}

// CycleWindow returns the length of a full cycle window for n items.
func (c *Config) CycleWindow(n int) time.Duration {
	return time.Duration(n)*c.Refresh.PerItemInterval + c.Refresh.CycleBuffer
}
