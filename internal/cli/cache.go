package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veille/internal/cache"
)

var olderThan time.Duration

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := cache.Open(cfg.Cache, logger)
		defer func() { _ = store.Close() }()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("cache stats: %w", err)
		}

		fmt.Printf("Backend:  %s\n", stats.Backend)
		fmt.Printf("Rows:     %d\n", stats.Rows)
		fmt.Printf("Queries:  %d\n", stats.Queries)
		if !stats.Newest.IsZero() {
			fmt.Printf("Newest:   %s\n", stats.Newest.Format(time.RFC3339))
			fmt.Printf("Oldest:   %s\n", stats.Oldest.Format(time.RFC3339))
		}
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached batches older than a duration",
	Long: `Purge removes cached batches fetched before now minus --older-than.

Example:
  veille cache purge --older-than 720h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := cache.Open(cfg.Cache, logger)
		defer func() { _ = store.Close() }()

		removed, err := store.Purge(cmd.Context(), time.Now().Add(-olderThan))
		if err != nil {
			return fmt.Errorf("cache purge: %w", err)
		}

		fmt.Printf("✓ Removed %d cached rows older than %v\n", removed, olderThan)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)

	cachePurgeCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age cutoff")
}
