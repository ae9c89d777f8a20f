package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	PoolMin        int
	PoolMax        int
	// Schema becomes the search_path of every pooled connection, so
	// migrations create their tables where the engine looks for them.
	Schema         string
	MigrateOnStart bool
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// EngineConfig tunes the deal persistence engine.
type EngineConfig struct {
	// Schema is the database schema holding the deal tables.
	Schema string
	// SchemaMode is "introspect" or "registry".
	SchemaMode      string
	SchemaCacheTTL  time.Duration
	SchemaCacheSize int
	TxTimeout       time.Duration
	MaxRetries      int
	NumericMax      float64
	// AggregateConcurrency bounds parallel dimension reads per deal.
	AggregateConcurrency int
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "dealdesk")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("SCHEMA_MODE", "introspect")
	v.SetDefault("SCHEMA_CACHE_TTL", "5m")
	v.SetDefault("SCHEMA_CACHE_SIZE", 64)
	v.SetDefault("ENGINE_TX_TIMEOUT", "10s")
	v.SetDefault("ENGINE_MAX_RETRIES", 3)
	v.SetDefault("NUMERIC_MAX", 9999999999999.99)
	v.SetDefault("AGGREGATE_CONCURRENCY", 4)

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetString("DB_PORT"),
			Name:           v.GetString("DB_NAME"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			SSLMode:        v.GetString("DB_SSLMODE"),
			PoolMin:        v.GetInt("DB_POOL_MIN"),
			PoolMax:        v.GetInt("DB_POOL_MAX"),
			Schema:         v.GetString("DB_SCHEMA"),
			MigrateOnStart: v.GetBool("MIGRATE_ON_START"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Engine: EngineConfig{
			Schema:               v.GetString("DB_SCHEMA"),
			SchemaMode:           strings.ToLower(v.GetString("SCHEMA_MODE")),
			SchemaCacheTTL:       v.GetDuration("SCHEMA_CACHE_TTL"),
			SchemaCacheSize:      v.GetInt("SCHEMA_CACHE_SIZE"),
			TxTimeout:            v.GetDuration("ENGINE_TX_TIMEOUT"),
			MaxRetries:           v.GetInt("ENGINE_MAX_RETRIES"),
			NumericMax:           v.GetFloat64("NUMERIC_MAX"),
			AggregateConcurrency: v.GetInt("AGGREGATE_CONCURRENCY"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return c.Engine.Validate()
}

// Validate checks the engine settings.
func (e EngineConfig) Validate() error {
	switch e.SchemaMode {
	case "introspect", "registry":
	default:
		return fmt.Errorf("SCHEMA_MODE must be introspect or registry, got %q", e.SchemaMode)
	}
	if e.Schema == "" {
		return fmt.Errorf("DB_SCHEMA is required")
	}
	if e.SchemaCacheTTL < 0 {
		return fmt.Errorf("SCHEMA_CACHE_TTL must be non-negative")
	}
	if e.SchemaCacheTTL > 0 && e.SchemaCacheSize < 1 {
		return fmt.Errorf("SCHEMA_CACHE_SIZE must be at least 1 when caching is enabled")
	}
	if e.TxTimeout <= 0 {
		return fmt.Errorf("ENGINE_TX_TIMEOUT must be positive")
	}
	if e.MaxRetries < 0 {
		return fmt.Errorf("ENGINE_MAX_RETRIES must be non-negative")
	}
	if e.NumericMax <= 0 {
		return fmt.Errorf("NUMERIC_MAX must be positive")
	}
	if e.AggregateConcurrency < 1 {
		return fmt.Errorf("AGGREGATE_CONCURRENCY must be at least 1")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
