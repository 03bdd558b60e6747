package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/repository/sqlite"
	"detectserver/internal/service/storage"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "artifactctl",
		Short:         "Maintenance for detection server artifacts and the prediction journal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newArtifactsCommand())
	cmd.AddCommand(newJournalCommand())
	return cmd
}

func newArtifactsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Annotated image operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newArtifactsPruneCommand())
	return cmd
}

func newArtifactsPruneCommand() *cobra.Command {
	var (
		dir       string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete annotated images older than a given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir != "" {
				cfg.ArtifactDirectory = dir
			}

			store := storage.NewArtifactStore(cfg, logger.NewDiscard())
			removed, err := store.Prune(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Removed %d artifact(s) older than %v from %s\n", removed, olderThan, store.Dir())
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Artifact directory (defaults to ARTIFACT_DIR)")
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Minimum age of removed artifacts")
	return cmd
}

func newJournalCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Prediction journal queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Journal database (defaults to DB_PATH)")
	cmd.AddCommand(newJournalStatsCommand(&dbPath))
	cmd.AddCommand(newJournalRecentCommand(&dbPath))
	cmd.AddCommand(newJournalClearCommand(&dbPath))
	return cmd
}

// openJournal opens the database named by --db or DB_PATH.
func openJournal(dbPath string) (*sqlite.DB, error) {
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		dbPath = cfg.DatabasePath
	}
	if dbPath == "" {
		return nil, fmt.Errorf("no journal configured: pass --db or set DB_PATH")
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("journal %s: %w", filepath.Clean(dbPath), err)
	}
	return sqlite.New(dbPath)
}

func newJournalStatsCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print prediction totals by outcome, model and label",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openJournal(*dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := sqlite.NewPredictionRepository(db).GetStats()
			if err != nil {
				return err
			}
			return writeJSON(cmd, stats)
		},
	}
}

// maxRecentLimit caps journal recent, as the HTTP listing does.
const maxRecentLimit = 500

func newJournalRecentCommand(dbPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print the newest journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}
			if limit > maxRecentLimit {
				limit = maxRecentLimit
			}

			db, err := openJournal(*dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := sqlite.NewPredictionRepository(db).GetRecent(limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd, records)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries")
	return cmd
}

func newJournalClearCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every journal entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openJournal(*dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqlite.NewPredictionRepository(db).DeleteAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Journal cleared")
			return nil
		},
	}
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
