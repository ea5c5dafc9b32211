package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Token signing
	Auth AuthConfig

	// Site identity used in links and spam checks
	Site SiteConfig

	// Comment moderation
	Moderation ModerationConfig

	// Remote spam check
	Akismet AkismetConfig

	// Notification publishing
	Notify NotifyConfig

	// Level count cache
	Redis RedisConfig

	// Import configuration
	Import ImportConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL            string
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
}

// AuthConfig holds token settings
type AuthConfig struct {
	JWTKey   string
	TokenTTL time.Duration
}

// SiteConfig holds site identity
type SiteConfig struct {
	Name        string
	URL         string
	AuthorEmail string
}

// ModerationConfig holds comment moderation settings
type ModerationConfig struct {
	Audit          bool
	ForceLogin     bool
	ForbiddenWords []string
	RateWindow     int // seconds, 0 disables the limiter
	RateMax        int
	Levels         string
}

// AkismetConfig holds the remote spam check settings
type AkismetConfig struct {
	Key      string
	Endpoint string
	Timeout  time.Duration
}

// Enabled reports whether the remote check should be called
func (c *AkismetConfig) Enabled() bool {
	return c.Key != "" && c.Key != "false"
}

// NotifyConfig holds the message broker settings
type NotifyConfig struct {
	AMQPURL  string
	Exchange string
	Queue    string
}

// RedisConfig holds the level count cache settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ImportConfig holds import job settings
type ImportConfig struct {
	BatchSize     int
	MaxUploadSize int64 // in bytes
	UploadDir     string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables, falling back to the
// file named by CONFIG_FILE and then to defaults
func Load() (*Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            src.getString("PORT", "8360"),
			ReadTimeout:     src.getDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    src.getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: src.getDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:            src.getString("DATABASE_URL", ""),
			Host:           src.getString("DB_HOST", "localhost"),
			Port:           src.getString("DB_PORT", "5432"),
			User:           src.getString("DB_USER", "postgres"),
			Password:       src.getString("DB_PASSWORD", "postgres"),
			Name:           src.getString("DB_NAME", "comments"),
			SSLMode:        src.getString("DB_SSLMODE", "disable"),
			MaxOpenConns:   src.getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   src.getInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    src.getDuration("DB_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath: src.getString("MIGRATIONS_PATH", "./migrations"),
		},
		Auth: AuthConfig{
			JWTKey:   src.getString("JWT_KEY", ""),
			TokenTTL: src.getDuration("JWT_TTL", 24*time.Hour),
		},
		Site: SiteConfig{
			Name:        src.getString("SITE_NAME", "Comments"),
			URL:         src.getString("SITE_URL", "http://localhost:8360"),
			AuthorEmail: src.getString("AUTHOR_EMAIL", ""),
		},
		Moderation: ModerationConfig{
			Audit:          src.getBool("COMMENT_AUDIT", false),
			ForceLogin:     src.getString("LOGIN", "") == "force",
			ForbiddenWords: splitList(src.getString("FORBIDDEN_WORDS", "")),
			RateWindow:     src.getInt("IPQPS", 60),
			RateMax:        src.getInt("IPQPS_MAX", 1),
			Levels:         src.getString("LEVELS", ""),
		},
		Akismet: AkismetConfig{
			Key:      src.getString("AKISMET_KEY", ""),
			Endpoint: src.getString("AKISMET_ENDPOINT", "https://rest.akismet.com/1.1"),
			Timeout:  src.getDuration("AKISMET_TIMEOUT", 5*time.Second),
		},
		Notify: NotifyConfig{
			AMQPURL:  src.getString("AMQP_URL", ""),
			Exchange: src.getString("AMQP_EXCHANGE", "comment.notifications"),
			Queue:    src.getString("AMQP_QUEUE", "comment.notifications.queue"),
		},
		Redis: RedisConfig{
			Addr:     src.getString("REDIS_ADDR", ""),
			Password: src.getString("REDIS_PASSWORD", ""),
			DB:       src.getInt("REDIS_DB", 0),
			TTL:      src.getDuration("LEVEL_CACHE_TTL", 10*time.Minute),
		},
		Import: ImportConfig{
			BatchSize:     src.getInt("IMPORT_BATCH_SIZE", 1000),
			MaxUploadSize: src.getInt64("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB
			UploadDir:     src.getString("UPLOAD_DIR", "./data/uploads"),
		},
		Log: LogConfig{
			Level:  src.getString("LOG_LEVEL", "info"),
			Format: src.getString("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Auth.JWTKey == "" {
		return fmt.Errorf("JWT_KEY is required")
	}
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return fmt.Errorf("DATABASE_URL or DB_HOST and DB_NAME are required")
	}
	if c.Moderation.RateWindow < 0 || c.Moderation.RateMax < 0 {
		return fmt.Errorf("IPQPS and IPQPS_MAX must not be negative")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// source resolves a key from the environment first, then from the optional config file
type source struct {
	file *viper.Viper
}

func newSource(path string) (*source, error) {
	if path == "" {
		return &source{}, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &source{file: v}, nil
}

func (s *source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	// viper keys are case-insensitive, so JWT_KEY matches jwt_key in a yaml file
	if s.file != nil && s.file.IsSet(key) {
		return s.file.GetString(key)
	}
	return ""
}

// Helper functions for value parsing

func (s *source) getString(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s *source) getInt(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (s *source) getInt64(key string, defaultValue int64) int64 {
	if value := s.lookup(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (s *source) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := s.lookup(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (s *source) getBool(key string, defaultValue bool) bool {
	if value := s.lookup(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
