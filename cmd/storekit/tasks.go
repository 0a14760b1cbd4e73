package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/storekit/storekit/internal/maintain"
	"github.com/storekit/storekit/internal/metrics"
)

// dataFileCacheKey is the offline cache entry holding the synced copy of
// the canonical data file.
const dataFileCacheKey = "remote:data-file"

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Fetch the data file and store a timestamped local copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			client, err := newRemote(cfg, logger)
			if err != nil {
				return err
			}

			result, err := maintain.Backup(cmd.Context(), client, cfg.Remote.DataFile,
				cfg.Backup.Dir, cfg.Backup.Retain, logger)
			if err != nil {
				return err
			}
			fmt.Printf("backup written to %s (%d bytes, revision %s)\n", result.Path, result.Bytes, result.Revision)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the remote data file is well-formed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			client, err := newRemote(cfg, logger)
			if err != nil {
				return err
			}

			result, err := maintain.Validate(cmd.Context(), client, cfg.Remote.DataFile)
			if err != nil {
				return err
			}
			if !result.Valid() {
				for _, key := range result.Malformed {
					fmt.Fprintf(os.Stderr, "malformed record: %s\n", key)
				}
				return fmt.Errorf("%d of %d records are malformed", len(result.Malformed), result.Records)
			}
			fmt.Printf("%d records OK (revision %s)\n", result.Records, result.Revision)
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the offline cache copy of the data file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			client, err := newRemote(cfg, logger)
			if err != nil {
				return err
			}
			m, err := newCache(cfg, logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			result, err := maintain.Sync(cmd.Context(), client, m, cfg.Remote.DataFile,
				dataFileCacheKey, ttl, logger)
			if err != nil {
				return err
			}
			if result.Changed {
				fmt.Printf("synced %d bytes (revision %s)\n", result.Bytes, result.Revision)
			} else {
				fmt.Printf("already up to date (revision %s)\n", result.Revision)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "cache lifetime for the synced copy (default: configured max age)")
	return cmd
}

func metricsCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve cache metrics on the configured Prometheus endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			if port == 0 {
				port = cfg.Metrics.Port
			}
			collector, err := metrics.NewCollector(metrics.Config{
				Enabled: true,
				Port:    port,
				Path:    cfg.Metrics.Path,
			}, logger)
			if err != nil {
				return err
			}

			m, err := newCache(cfg, logger, collector)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			if err := collector.Start(); err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return collector.Stop(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: configured metrics port)")
	return cmd
}
