package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config captures the runtime configuration for the vidtube backend service.
// It is built once at start-up and passed by value to every component.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Tokens    TokenConfig     `koanf:"tokens"`
	Storage   StorageConfig   `koanf:"storage"`
	Media     MediaConfig     `koanf:"media"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type ServerConfig struct {
	Port              int           `koanf:"port"`
	CORSOrigin        string        `koanf:"cors_origin"`
	CookieSecure      bool          `koanf:"cookie_secure"`
	LogLevel          string        `koanf:"log_level"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	// TrustProxy honors X-Forwarded-For when keying per-client limits. Enable
	// only behind a reverse proxy that overwrites the header.
	TrustProxy bool `koanf:"trust_proxy"`
}

type DatabaseConfig struct {
	URL           string `koanf:"url"`
	Name          string `koanf:"name"`
	MigrationsDir string `koanf:"migrations_dir"`
	SeedsDir      string `koanf:"seeds_dir"`
}

// TokenConfig holds the signing material for access and refresh tokens.
type TokenConfig struct {
	AccessSecret  string        `koanf:"access_secret"`
	AccessExpiry  time.Duration `koanf:"access_expiry"`
	RefreshSecret string        `koanf:"refresh_secret"`
	RefreshExpiry time.Duration `koanf:"refresh_expiry"`
}

// StorageConfig selects and configures the remote object store.
type StorageConfig struct {
	Driver    string `koanf:"driver"`
	Bucket    string `koanf:"bucket"`
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	PublicURL string `koanf:"public_url"`
	UseSSL    bool   `koanf:"use_ssl"`
}

type MediaConfig struct {
	UploadDir      string        `koanf:"upload_dir"`
	MaxUploadBytes int64         `koanf:"max_upload_bytes"`
	FFProbePath    string        `koanf:"ffprobe_path"`
	FFProbeTimeout time.Duration `koanf:"ffprobe_timeout"`
	CleanupWorkers int           `koanf:"cleanup_workers"`
	CleanupQueue   int           `koanf:"cleanup_queue"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

const (
	StorageDriverS3    = "s3"
	StorageDriverMinio = "minio"
)

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		errs = append(errs, errors.New("database url is required"))
	}
	if c.Tokens.AccessSecret == "" {
		errs = append(errs, errors.New("access token secret is required"))
	}
	if c.Tokens.RefreshSecret == "" {
		errs = append(errs, errors.New("refresh token secret is required"))
	}
	if c.Tokens.AccessSecret != "" && c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.Tokens.AccessExpiry <= 0 {
		errs = append(errs, errors.New("access token expiry must be positive"))
	}
	if c.Tokens.RefreshExpiry <= 0 {
		errs = append(errs, errors.New("refresh token expiry must be positive"))
	}
	switch c.Storage.Driver {
	case StorageDriverS3, StorageDriverMinio:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		errs = append(errs, errors.New("storage bucket is required"))
	}
	if c.Media.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}

	return errors.Join(errs...)
}
