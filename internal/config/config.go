// Package config loads and validates storekit configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/storekit/storekit/pkg/errors"
)

// Config is the complete toolkit configuration.
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Remote  RemoteConfig  `yaml:"remote"`
	Backup  BackupConfig  `yaml:"backup"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// CacheConfig configures the offline cache manager.
type CacheConfig struct {
	// Dir is the storage root for blobs and the index snapshot.
	Dir string `yaml:"dir"`
	// MaxSize is a human-readable size ("512MB", "10GB") that triggers
	// size-bound eviction.
	MaxSize string `yaml:"max_size"`
	// MaxAge is the default TTL applied when a write specifies none.
	MaxAge time.Duration `yaml:"max_age"`

	Compression CompressionConfig `yaml:"compression"`
	Encryption  EncryptionConfig  `yaml:"encryption"`
}

// CompressionConfig configures the codec compression stage.
type CompressionConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Algorithm string `yaml:"algorithm"` // gzip or brotli
	Level     int    `yaml:"level"`
}

// EncryptionConfig configures the codec encryption stage.
type EncryptionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Key     string `yaml:"key"`
}

// RemoteConfig configures the content API client for the canonical data file.
type RemoteConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	DataFile string        `yaml:"data_file"`
	Timeout  time.Duration `yaml:"timeout"`
}

// BackupConfig configures local backups of the canonical data file.
type BackupConfig struct {
	Dir    string `yaml:"dir"`
	Retain int    `yaml:"retain"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // DEBUG, INFO, WARN, ERROR
	Format string `yaml:"format"` // text or json
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// placeholderKey is the sample value shipped in example configs; it is
// rejected by Validate so real deployments must set their own secret.
const placeholderKey = "change-me"

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir:     ".storekit/cache",
			MaxSize: "256MB",
			MaxAge:  24 * time.Hour,
			Compression: CompressionConfig{
				Enabled:   true,
				Algorithm: "gzip",
				Level:     6,
			},
			Encryption: EncryptionConfig{
				Enabled: false,
				Key:     "",
			},
		},
		Remote: RemoteConfig{
			BaseURL:  "",
			Token:    "",
			DataFile: "data/records.json",
			Timeout:  30 * time.Second,
		},
		Backup: BackupConfig{
			Dir:    ".storekit/backups",
			Retain: 10,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// LoadFromFile merges settings from a YAML file into c.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Newf(errors.ErrCodeConfigLoad, "failed to read config file %s", filename).WithCause(err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Newf(errors.ErrCodeConfigLoad, "failed to parse config file %s", filename).WithCause(err)
	}
	return nil
}

// LoadFromEnv merges settings from STOREKIT_* environment variables into c.
func (c *Config) LoadFromEnv() {
	if val := os.Getenv("STOREKIT_CACHE_DIR"); val != "" {
		c.Cache.Dir = val
	}
	if val := os.Getenv("STOREKIT_MAX_CACHE_SIZE"); val != "" {
		c.Cache.MaxSize = val
	}
	if val := os.Getenv("STOREKIT_MAX_CACHE_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.MaxAge = d
		}
	}
	if val := os.Getenv("STOREKIT_COMPRESSION_ENABLED"); val != "" {
		c.Cache.Compression.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("STOREKIT_COMPRESSION_ALGORITHM"); val != "" {
		c.Cache.Compression.Algorithm = val
	}
	if val := os.Getenv("STOREKIT_ENCRYPTION_ENABLED"); val != "" {
		c.Cache.Encryption.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("STOREKIT_ENCRYPTION_KEY"); val != "" {
		c.Cache.Encryption.Key = val
	}
	if val := os.Getenv("STOREKIT_REMOTE_URL"); val != "" {
		c.Remote.BaseURL = val
	}
	if val := os.Getenv("STOREKIT_REMOTE_TOKEN"); val != "" {
		c.Remote.Token = val
	}
	if val := os.Getenv("STOREKIT_DATA_FILE"); val != "" {
		c.Remote.DataFile = val
	}
	if val := os.Getenv("STOREKIT_LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("STOREKIT_LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
	if val := os.Getenv("STOREKIT_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}
}

// MaxCacheSizeBytes parses the configured cache size limit.
func (c *Config) MaxCacheSizeBytes() (int64, error) {
	return ParseSize(c.Cache.MaxSize)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Cache.Dir == "" {
		return errors.New(errors.ErrCodeConfigValidation, "cache.dir must not be empty")
	}

	size, err := ParseSize(c.Cache.MaxSize)
	if err != nil {
		return errors.Newf(errors.ErrCodeConfigValidation, "cache.max_size %q is not a valid size", c.Cache.MaxSize).WithCause(err)
	}
	if size <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, "cache.max_size must be greater than 0")
	}

	if c.Cache.MaxAge <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, "cache.max_age must be greater than 0")
	}

	switch c.Cache.Compression.Algorithm {
	case "gzip", "brotli":
	default:
		return errors.Newf(errors.ErrCodeConfigValidation,
			"cache.compression.algorithm %q is not supported (gzip, brotli)", c.Cache.Compression.Algorithm)
	}
	if c.Cache.Compression.Level < 1 || c.Cache.Compression.Level > 9 {
		return errors.New(errors.ErrCodeConfigValidation, "cache.compression.level must be between 1 and 9")
	}

	if c.Cache.Encryption.Enabled {
		if c.Cache.Encryption.Key == "" {
			return errors.New(errors.ErrCodeConfigValidation, "cache.encryption.key is required when encryption is enabled")
		}
		if c.Cache.Encryption.Key == placeholderKey {
			return errors.New(errors.ErrCodeConfigValidation, "cache.encryption.key must be changed from the sample value")
		}
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.Log.Level, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return errors.Newf(errors.ErrCodeConfigValidation, "invalid log.level: %s (must be one of: %s)",
			c.Log.Level, strings.Join(validLogLevels, ", "))
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.Newf(errors.ErrCodeConfigValidation, "invalid log.format: %s (must be text or json)", c.Log.Format)
	}

	if c.Backup.Retain < 1 {
		return errors.New(errors.ErrCodeConfigValidation, "backup.retain must be at least 1")
	}

	return nil
}

// ParseSize converts a human-readable size such as "512MB" or "10GB" to bytes.
// A bare number is interpreted as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	multipliers := []struct {
		suffix string
		factor int64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}

	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			num := strings.TrimSpace(strings.TrimSuffix(s, m.suffix))
			val, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", s, err)
			}
			return int64(val * float64(m.factor)), nil
		}
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return val, nil
}
