package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"gopan-drive/internal/logger"
	"gopan-drive/internal/quota"
)

// EnvPrefix prefixes environment overrides, e.g. GOPAN_JWT_SECRET.
const EnvPrefix = "GOPAN"

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Preview  PreviewConfig  `mapstructure:"preview"`
	Log      logger.Config  `mapstructure:"log"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Share    ShareConfig    `mapstructure:"share"`
	AI       AIConfig       `mapstructure:"ai"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	SeedFile string         `mapstructure:"seed_file"` // snapshot loaded into every new drive
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Metrics bool   `mapstructure:"metrics"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MinIOConfig holds MinIO configuration. Purged file content is removed from
// the bucket when enabled.
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration string `mapstructure:"expiration"` // Duration as string (e.g., "24h", "1h30m")
}

// PreviewConfig holds preview service configuration
type PreviewConfig struct {
	KKFileView KKFileViewConfig `mapstructure:"kkfileview"`
}

// KKFileViewConfig holds kkFileView service configuration
type KKFileViewConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"` // e.g., "http://localhost:8012"
}

// QuotaConfig holds the tier table. Limits accept byte counts or strings
// such as "10GiB".
type QuotaConfig struct {
	Tiers []quota.Plan `mapstructure:"tiers"`
}

// UploadConfig controls the simulated transfer driver.
type UploadConfig struct {
	Tick     string `mapstructure:"tick"` // e.g. "100ms"; "0" disables the driver
	Step     int    `mapstructure:"step"` // percent per tick
	Precheck bool   `mapstructure:"precheck"`
}

// ShareConfig holds share link settings.
type ShareConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// AIConfig holds the file analysis backend.
type AIConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	Endpoint      string `mapstructure:"endpoint"`
	Timeout       string `mapstructure:"timeout"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
}

// PaymentConfig holds the simulated checkout.
type PaymentConfig struct {
	Delay string `mapstructure:"delay"`
}

// GetExpiration returns the parsed duration
func (j *JWTConfig) GetExpiration() time.Duration {
	return parseDuration(j.Expiration, 24*time.Hour)
}

// TickInterval returns the parsed tick, zero when disabled.
func (u UploadConfig) TickInterval() time.Duration {
	return parseDuration(u.Tick, 0)
}

// TimeoutDuration returns the parsed AI request timeout.
func (a AIConfig) TimeoutDuration() time.Duration {
	return parseDuration(a.Timeout, 30*time.Second)
}

// DelayDuration returns the simulated payment delay.
func (p PaymentConfig) DelayDuration() time.Duration {
	return parseDuration(p.Delay, 0)
}

// Policy builds the quota policy from the tier table.
func (q QuotaConfig) Policy() (*quota.Policy, error) {
	return quota.NewPolicy(q.Tiers)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics", true)
	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "gopan")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("preview.kkfileview.enabled", false)
	v.SetDefault("preview.kkfileview.base_url", "http://localhost:8012")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("upload.tick", "100ms")
	v.SetDefault("upload.step", 10)
	v.SetDefault("upload.precheck", false)
	v.SetDefault("share.base_url", "http://localhost:8080")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.endpoint", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("ai.rate_per_minute", 30)
	v.SetDefault("payment.delay", "1500ms")
	v.SetDefault("seed_file", "")
}

// Load reads configuration from path. An empty path looks for Config.json
// next to the executable, then in the working directory, and falls back to
// defaults when neither exists. Environment variables prefixed with GOPAN_
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		byteSizeHook,
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required (jwt.secret or GOPAN_JWT_SECRET)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Upload.Step < 0 || c.Upload.Step > 100 {
		return fmt.Errorf("upload step must be between 0 and 100, got %d", c.Upload.Step)
	}
	if _, err := c.Quota.Policy(); err != nil {
		return err
	}
	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.BucketName == "") {
		return errors.New("minio endpoint and bucket_name are required when minio is enabled")
	}
	return nil
}

func findConfigFile() string {
	if exePath, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exePath), "Config.json")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if _, err := os.Stat("Config.json"); err == nil {
		return "Config.json"
	}
	return ""
}

// byteSizeHook lets int64 fields be written as "10GiB" or "2 TB".
func byteSizeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int64 {
		return data, nil
	}
	n, err := humanize.ParseBytes(data.(string))
	if err != nil {
		return nil, fmt.Errorf("invalid byte size %q: %w", data, err)
	}
	return int64(n), nil
}
