// Command storekit is the maintenance CLI for the JSON data store: it
// exposes the offline cache operations and the backup/validate/sync tasks.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/storekit/storekit/internal/cache"
	"github.com/storekit/storekit/internal/config"
	"github.com/storekit/storekit/internal/remote"
	"github.com/storekit/storekit/pkg/retry"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "storekit",
		Short: "Maintenance toolkit for the JSON data store",
		Long:  "storekit manages the offline cache and runs backup, validation and sync tasks against the remote data store",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(
		cacheCmd(),
		backupCmd(),
		validateCmd(),
		syncCmd(),
		metricsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig assembles configuration from defaults, an optional .env
// file, the YAML config file, and environment overrides.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := config.Default()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("storekit.yaml"); err == nil {
		if err := cfg.LoadFromFile("storekit.yaml"); err != nil {
			return nil, err
		}
	}
	cfg.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.Log.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func newCache(cfg *config.Config, logger *slog.Logger, rec cache.Recorder) (*cache.Manager, error) {
	maxSize, err := cfg.MaxCacheSizeBytes()
	if err != nil {
		return nil, err
	}
	return cache.New(cache.Config{
		Dir:                  cfg.Cache.Dir,
		MaxSize:              maxSize,
		DefaultTTL:           cfg.Cache.MaxAge,
		Compression:          cfg.Cache.Compression.Enabled,
		CompressionAlgorithm: cfg.Cache.Compression.Algorithm,
		CompressionLevel:     cfg.Cache.Compression.Level,
		Encryption:           cfg.Cache.Encryption.Enabled,
		EncryptionKey:        cfg.Cache.Encryption.Key,
		Logger:               logger,
		Recorder:             rec,
	})
}

func newRemote(cfg *config.Config, logger *slog.Logger) (*remote.Client, error) {
	return remote.NewClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Token:   cfg.Remote.Token,
		Timeout: cfg.Remote.Timeout,
		Retry:   retry.DefaultConfig(),
		Logger:  logger,
	})
}
