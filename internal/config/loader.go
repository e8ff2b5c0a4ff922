package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variable overrides, e.g.
// LOGOCACHE_UPSTREAM_APIKEY maps to upstream.apiKey.
const envPrefix = "LOGOCACHE"

// Loader reads and merges configuration from defaults, an optional YAML
// config file, and environment variables.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// LoaderOption is a functional option for a Loader.
type LoaderOption func(*Loader)

// WithConfigFile sets an explicit configuration file path.
func WithConfigFile(configFile string) LoaderOption {
	return func(l *Loader) {
		l.configFile = configFile
	}
}

// Load builds a Config with the given options.
func Load(opts ...LoaderOption) (*Config, error) {
	loader := &Loader{v: viper.New()}
	for _, opt := range opts {
		opt(loader)
	}
	return loader.Load()
}

// Load reads configuration and returns the resulting Config.
func (l *Loader) Load() (*Config, error) {
	// A .env file in the working directory is applied first so that env
	// overrides below can come from it.
	_ = godotenv.Load()

	l.setDefaults()

	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.readConfigFile(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Ticker symbols are canonically upper-case everywhere (store keys,
	// object keys, routes).
	for i, t := range cfg.Tickers {
		cfg.Tickers[i] = strings.ToUpper(strings.TrimSpace(t))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) readConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %q: %w", l.configFile, err)
		}
		return nil
	}

	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")
	l.v.AddConfigPath(".")
	l.v.AddConfigPath(defaultConfigDir())

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Defaults plus env are a complete configuration.
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func defaultConfigDir() string {
	if dir := os.Getenv("LOGOCACHE_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(xdg.ConfigHome, "logocache")
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("server.host", "127.0.0.1")
	l.v.SetDefault("server.port", 8090)
	l.v.SetDefault("server.basePath", "")
	// Registered with empty defaults so environment overrides are picked up
	// by Unmarshal.
	l.v.SetDefault("server.adminToken", "")

	l.v.SetDefault("upstream.baseURL", "https://api.massive.com")
	l.v.SetDefault("upstream.apiKey", "")
	l.v.SetDefault("upstream.timeout", "30s")

	l.v.SetDefault("redis.url", "")
	l.v.SetDefault("redis.host", "127.0.0.1")
	l.v.SetDefault("redis.port", 6379)
	l.v.SetDefault("redis.password", "")
	l.v.SetDefault("redis.db", 0)

	l.v.SetDefault("s3.endpoint", "")
	l.v.SetDefault("s3.accessKey", "")
	l.v.SetDefault("s3.secretKey", "")
	l.v.SetDefault("s3.bucket", "logos-cache")
	l.v.SetDefault("s3.region", "")
	l.v.SetDefault("s3.useSSL", true)

	l.v.SetDefault("tickers", []string{"META", "AAPL", "AMZN", "MSFT", "GOOGL", "TSLA", "NVDA"})

	l.v.SetDefault("refresh.ttl", "24h")
	l.v.SetDefault("refresh.debounce", "55s")
	l.v.SetDefault("refresh.retryFallback", "60s")
	l.v.SetDefault("refresh.perItemInterval", "1m")
	l.v.SetDefault("refresh.cycleBuffer", "10m")

	l.v.SetDefault("schedule.daily", "0 0 * * *")
	l.v.SetDefault("schedule.minute", "* * * * *")

	l.v.SetDefault("logFormat", "text")
}
