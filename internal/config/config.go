package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Game      GameConfig      `yaml:"game"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port" env:"PORT"`
	Host string `yaml:"host"`
	// TrustedProxies lists the IPs or CIDRs whose forwarding headers are
	// believed. Everyone else is identified by the socket address.
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`
}

// DatabaseConfig holds database configuration. An empty URL and host selects
// the in-memory backend.
type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Migrate  bool   `yaml:"migrate"`
}

// StorageConfig selects where uploaded images live.
type StorageConfig struct {
	Driver   string    `yaml:"driver" env:"STORAGE_DRIVER"` // local or s3
	LocalDir string    `yaml:"local_dir" env:"UPLOAD_DIR"`
	S3       AWSConfig `yaml:"s3"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// RedisConfig enables the shared sweep lease when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET"`
	Expiry time.Duration `yaml:"expiry"`
}

// GameConfig holds session lifecycle settings
type GameConfig struct {
	PhaseDuration         time.Duration `yaml:"phase_duration"`
	AutoAdvance           bool          `yaml:"auto_advance"`
	EnforceCreatorAdvance bool          `yaml:"enforce_creator_advance"`
	MaxUploadBytes        int64         `yaml:"max_upload_bytes"`
}

// RetentionConfig holds cleanup job settings
type RetentionConfig struct {
	GameDays         int    `yaml:"game_days" env:"GAME_RETENTION_DAYS"`
	AuditLogDays     int    `yaml:"audit_log_days" env:"AUDIT_LOG_RETENTION_DAYS"`
	Schedule         string `yaml:"schedule" env:"CLEANUP_SCHEDULE"`
	Timezone         string `yaml:"timezone" env:"TZ"`
	StorageWarnBytes int64  `yaml:"storage_warn_bytes"`
	RunOnStart       bool   `yaml:"run_on_start"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 5000, Host: "0.0.0.0"},
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
			Migrate: true,
		},
		Storage: StorageConfig{
			Driver:   "local",
			LocalDir: "uploads",
			S3:       AWSConfig{Region: "us-east-1"},
		},
		Redis: RedisConfig{LeaseTTL: 30 * time.Minute},
		JWT:   JWTConfig{Expiry: time.Hour},
		Game: GameConfig{
			PhaseDuration:  10 * time.Minute,
			MaxUploadBytes: 10 << 20,
		},
		Retention: RetentionConfig{
			GameDays:         30,
			AuditLogDays:     90,
			Schedule:         "0 0 * * *",
			Timezone:         "Europe/Berlin",
			StorageWarnBytes: 1 << 30,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then
// applies environment overrides from the env tags. A missing file is not an
// error; a malformed environment value is.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.Game.PhaseDuration <= 0 {
		return fmt.Errorf("game.phase_duration must be positive")
	}
	if c.Retention.GameDays <= 0 {
		return fmt.Errorf("retention.game_days must be positive, got %d", c.Retention.GameDays)
	}
	if c.Retention.AuditLogDays <= 0 {
		return fmt.Errorf("retention.audit_log_days must be positive, got %d", c.Retention.AuditLogDays)
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local driver")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// UsesDatabase reports whether a Postgres connection is configured.
func (c *DatabaseConfig) UsesDatabase() bool {
	return c.URL != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URLForm returns the connection string as a postgres:// URL, which the
// migration runner requires.
func (c *DatabaseConfig) URLForm() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
