// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Sentry     SentryConfig     `json:"sentry"`
	WhatsApp   WhatsAppConfig   `json:"whatsapp"`
	OpenAI     OpenAIConfig     `json:"openai"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Lyrics     LyricsConfig     `json:"lyrics"`
	Media      MediaConfig      `json:"media"`
	Sequences  SequencesConfig  `json:"sequences"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

// DSN renders the libpq connection string shared by gorm and the WhatsApp session store
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableMetrics     bool          `json:"enable_metrics"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	EnableCaller    bool `json:"enable_caller"`
	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool   `json:"enabled"`
	RedisURL    string `json:"redis_url"`
	RedisDB     int    `json:"redis_db"`
	RedisPrefix string `json:"redis_prefix"`
	Password    string `json:"-"`
}

type SentryConfig struct {
	DSN              string  `json:"-"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}

type WhatsAppConfig struct {
	Enabled bool `json:"enabled"`
	// PrintQR renders pairing codes on the terminal
	PrintQR           bool          `json:"print_qr"`
	ReconnectInterval time.Duration `json:"reconnect_interval"`
	SendTimeout       time.Duration `json:"send_timeout"`
	StoreLogLevel     string        `json:"store_log_level"`
}

type OpenAIConfig struct {
	APIKey  string        `json:"-"`
	BaseURL string        `json:"base_url"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

type SchedulerConfig struct {
	SequencesEnabled bool          `json:"sequences_enabled"`
	LyricsEnabled    bool          `json:"lyrics_enabled"`
	SequenceInterval time.Duration `json:"sequence_interval"`
	GenerateInterval time.Duration `json:"generate_interval"`
	SendInterval     time.Duration `json:"send_interval"`
	PassTimeout      time.Duration `json:"pass_timeout"`
	LeaseTTL         time.Duration `json:"lease_ttl"`
	DiscoveryPage    int           `json:"discovery_page"`
	LogFilePath      string        `json:"log_file_path"`
}

type LyricsConfig struct {
	Cooldown time.Duration `json:"cooldown"`
	VideoURL string        `json:"video_url"`
	PromoURL string        `json:"promo_url"`
}

type MediaConfig struct {
	Dir           string `json:"dir"`
	PublicBaseURL string `json:"public_base_url"`
	MaxBytes      int64  `json:"max_bytes"`
}

type SequencesConfig struct {
	SeedFile string `json:"seed_file"`
}

type DeploymentConfig struct {
	Domain      string `json:"domain"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "leadflow"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 3000),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 16*1024*1024), // 16MB
			EnableMetrics:     getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "https://cantalab.com"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 600),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "logs/leadflow.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableCaller:    getEnvBool("LOG_ENABLE_CALLER", false),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", false),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "leadflow:"),
			Password:    getEnvString("REDIS_PASSWORD", ""),
		},
		Sentry: SentryConfig{
			DSN:              getEnvString("SENTRY_DSN", ""),
			Environment:      getEnvString("SENTRY_ENVIRONMENT", getEnvString("APP_ENV", "production")),
			TracesSampleRate: getEnvFloat("SENTRY_TRACES_SAMPLE_RATE", 0),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:           getEnvBool("WHATSAPP_ENABLED", true),
			PrintQR:           getEnvBool("WHATSAPP_PRINT_QR", true),
			ReconnectInterval: getEnvDuration("WHATSAPP_RECONNECT_INTERVAL", 5*time.Second),
			SendTimeout:       getEnvDuration("WHATSAPP_SEND_TIMEOUT", 10*time.Second),
			StoreLogLevel:     getEnvString("WHATSAPP_LOG_LEVEL", "warn"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnvString("OPENAI_API_KEY", ""),
			BaseURL: getEnvString("OPENAI_BASE_URL", ""),
			Model:   getEnvString("OPENAI_MODEL", "gpt-4o"),
			Timeout: getEnvDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Scheduler: SchedulerConfig{
			SequencesEnabled: getEnvBool("SCHEDULER_SEQUENCES_ENABLED", true),
			LyricsEnabled:    getEnvBool("SCHEDULER_LYRICS_ENABLED", true),
			SequenceInterval: getEnvDuration("SCHEDULER_SEQUENCE_INTERVAL", 1*time.Minute),
			GenerateInterval: getEnvDuration("SCHEDULER_GENERATE_INTERVAL", 1*time.Minute),
			SendInterval:     getEnvDuration("SCHEDULER_SEND_INTERVAL", 1*time.Minute),
			PassTimeout:      getEnvDuration("SCHEDULER_PASS_TIMEOUT", 5*time.Minute),
			LeaseTTL:         getEnvDuration("SCHEDULER_LEASE_TTL", 10*time.Minute),
			DiscoveryPage:    getEnvInt("SCHEDULER_DISCOVERY_PAGE", 0),
			LogFilePath:      getEnvString("SCHEDULER_LOG_FILE", "logs/scheduler.log"),
		},
		Lyrics: LyricsConfig{
			Cooldown: getEnvDuration("LYRICS_COOLDOWN", 15*time.Minute),
			VideoURL: getEnvString("LYRICS_VIDEO_URL", "https://cantalab.com/wp-content/uploads/2025/04/WhatsApp-Video-2025-04-23-at-8.01.51-PM.mp4"),
			PromoURL: getEnvString("LYRICS_PROMO_URL", "https://cantalab.com/carrito-cantalab/?billing_id={{R}}"),
		},
		Media: MediaConfig{
			Dir:           getEnvString("MEDIA_DIR", "media"),
			PublicBaseURL: getEnvString("MEDIA_PUBLIC_BASE_URL", "http://localhost:3000/media"),
			MaxBytes:      int64(getEnvInt("MEDIA_MAX_BYTES", 64*1024*1024)),
		},
		Sequences: SequencesConfig{
			SeedFile: getEnvString("SEQUENCES_SEED_FILE", ""),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "cantalab.com"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads variables from path without overriding ones already set.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
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

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errs = append(errs, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errs = append(errs, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errs = append(errs, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// The lyric pipeline cannot run without a generator
	if cfg.OpenAI.APIKey == "" {
		errs = append(errs, "OPENAI_API_KEY is required")
	}
	if cfg.OpenAI.Timeout <= 0 {
		errs = append(errs, "OPENAI_TIMEOUT must be positive")
	}

	// Validate scheduler configuration
	if cfg.Scheduler.SequenceInterval <= 0 {
		errs = append(errs, "SCHEDULER_SEQUENCE_INTERVAL must be positive")
	}
	if cfg.Scheduler.GenerateInterval <= 0 {
		errs = append(errs, "SCHEDULER_GENERATE_INTERVAL must be positive")
	}
	if cfg.Scheduler.SendInterval <= 0 {
		errs = append(errs, "SCHEDULER_SEND_INTERVAL must be positive")
	}
	if cfg.Scheduler.PassTimeout <= 0 {
		errs = append(errs, "SCHEDULER_PASS_TIMEOUT must be positive")
	}
	if cfg.Scheduler.LeaseTTL < cfg.Scheduler.PassTimeout {
		errs = append(errs, "SCHEDULER_LEASE_TTL must not be shorter than SCHEDULER_PASS_TIMEOUT")
	}
	if cfg.WhatsApp.SendTimeout <= 0 {
		errs = append(errs, "WHATSAPP_SEND_TIMEOUT must be positive")
	}
	if cfg.Lyrics.Cooldown < 0 {
		errs = append(errs, "LYRICS_COOLDOWN must not be negative")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	switch cfg.Logging.Output {
	case "stdout", "file", "both":
	default:
		errs = append(errs, "LOG_OUTPUT must be one of: stdout, file, both")
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errs = append(errs, "LOG_FILE_PATH is required when logging to a file")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errs = append(errs, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if cfg.Media.Dir == "" {
		errs = append(errs, "MEDIA_DIR is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
