package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/storekit/storekit/internal/cache"
	"github.com/storekit/storekit/internal/config"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Operate on the offline cache",
	}
	cmd.AddCommand(
		cacheSetCmd(),
		cacheGetCmd(),
		cacheHasCmd(),
		cacheDelCmd(),
		cacheStatsCmd(),
		cacheCleanupCmd(),
		cacheClearCmd(),
	)
	return cmd
}

// withCache builds the cache manager and hands it to fn, closing it after.
func withCache(fn func(m *cache.Manager, cfg *config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	m, err := newCache(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return fn(m, cfg)
}

func cacheSetCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a text value in the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(m *cache.Manager, cfg *config.Config) error {
				entry, err := m.SetString(args[0], args[1], ttl)
				if err != nil {
					return err
				}
				fmt.Printf("stored %s (%d bytes, compressed=%t, encrypted=%t, expires %s)\n",
					entry.Key, entry.SizeBytes, entry.Compressed, entry.Encrypted,
					entry.ExpiresAt().Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "entry lifetime (default: configured max age)")
	return cmd
}

func cacheGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a value from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(m *cache.Manager, cfg *config.Config) error {
				value, found, err := m.GetString(args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Println(value)
				return nil
			})
		},
	}
}

func cacheHasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "has <key>",
		Short: "Check whether a fresh entry exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(m *cache.Manager, cfg *config.Config) error {
				found, err := m.Has(args[0])
				if err != nil {
					return err
				}
				fmt.Println(found)
				return nil
			})
		},
	}
}

func cacheDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>",
		Short: "Remove an entry from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(m *cache.Manager, cfg *config.Config) error {
				removed, err := m.Delete(args[0])
				if err != nil {
					return err
				}
				if removed {
					fmt.Printf("removed %s\n", args[0])
				} else {
					fmt.Printf("nothing to remove for %s\n", args[0])
				}
				return nil
			})
		},
	}
}

func cacheStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(m *cache.Manager, cfg *config.Config) error {
				stats := m.Stats()
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(stats)
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "entries\t%d\n", stats.TotalFiles)
				fmt.Fprintf(w, "size\t%d / %d bytes (%.1f%%)\n", stats.TotalSize, stats.Capacity, stats.Utilization*100)
				fmt.Fprintf(w, "hits\t%d\n", stats.Hits)
				fmt.Fprintf(w, "misses\t%d\n", stats.Misses)
				fmt.Fprintf(w, "hit rate\t%.1f%%\n", stats.HitRate*100)
				fmt.Fprintf(w, "evictions\t%d\n", stats.Evictions)
				if !stats.LastCleanupAt.IsZero() {
					fmt.Fprintf(w, "last cleanup\t%s\n", stats.LastCleanupAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	return cmd
}

func cacheCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run the expiry and size-bound sweeps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(m *cache.Manager, cfg *config.Config) error {
				removed, err := m.Cleanup()
				if err != nil {
					return err
				}
				fmt.Printf("removed %d entries\n", removed)
				return nil
			})
		},
	}
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(m *cache.Manager, cfg *config.Config) error {
				removed, err := m.Clear()
				if err != nil {
					return err
				}
				fmt.Printf("cleared %d entries\n", removed)
				return nil
			})
		},
	}
}
