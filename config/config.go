package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tcgvault/backend/internal/domain"
)

// MaxBatchSize is the largest accepted database.batch_size
const MaxBatchSize = 500

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Search   SearchConfig   `mapstructure:"search"`
	Import   ImportConfig   `mapstructure:"import"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SearchConfig holds card search service configuration
type SearchConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// ImportConfig holds import engine configuration
type ImportConfig struct {
	RowDelay     time.Duration `mapstructure:"row_delay"`
	SearchLimit  int           `mapstructure:"search_limit"`
	DefaultGame  string        `mapstructure:"default_game"`
	MaxFileBytes int64         `mapstructure:"max_file_bytes"`
	RunTTL       time.Duration `mapstructure:"run_ttl"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // "memory"
	TTL  time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig holds collection storage configuration.
// An empty URL disables persistence.
type DatabaseConfig struct {
	URL       string `mapstructure:"url"`
	BatchSize int    `mapstructure:"batch_size"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tcgvault/")

	// TCGVAULT_SEARCH_BASE_URL -> search.base_url
	v.SetEnvPrefix("TCGVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile reads ./.env when present. Variables already set in the
// environment win over the file.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading .env file: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values.
// Every key needs a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Search defaults
	v.SetDefault("search.base_url", "http://localhost:4000/api")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.timeout", "15s")
	v.SetDefault("search.requests_per_second", 10)
	v.SetDefault("search.burst", 1)
	v.SetDefault("search.max_retries", 3)

	// Import defaults
	v.SetDefault("import.row_delay", "150ms")
	v.SetDefault("import.search_limit", 5)
	v.SetDefault("import.default_game", string(domain.GameMagic))
	v.SetDefault("import.max_file_bytes", 5<<20)
	v.SetDefault("import.run_ttl", "1h")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "24h")

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.batch_size", MaxBatchSize)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Search.BaseURL == "" {
		return fmt.Errorf("search base URL is required (set TCGVAULT_SEARCH_BASE_URL)")
	}

	if _, err := domain.ParseGame(config.Import.DefaultGame); err != nil {
		return fmt.Errorf("import.default_game: %w", err)
	}

	if config.Import.RowDelay <= 0 {
		return fmt.Errorf("import.row_delay must be positive, got: %s", config.Import.RowDelay)
	}

	if config.Import.SearchLimit <= 0 {
		return fmt.Errorf("import.search_limit must be positive, got: %d", config.Import.SearchLimit)
	}

	if config.Import.MaxFileBytes <= 0 {
		return fmt.Errorf("import.max_file_bytes must be positive, got: %d", config.Import.MaxFileBytes)
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}

	if config.Database.BatchSize < 1 || config.Database.BatchSize > MaxBatchSize {
		return fmt.Errorf("database.batch_size must be between 1 and %d, got: %d", MaxBatchSize, config.Database.BatchSize)
	}

	if f := strings.ToLower(config.Log.Format); f != "json" && f != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", config.Log.Format)
	}

	return nil
}

// PersistenceEnabled reports whether a collection database is configured
func (c *Config) PersistenceEnabled() bool {
	return c.Database.URL != ""
}
