package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/repository/jsonfile"
	"muzzlewatch/internal/repository/sqlite"
	"muzzlewatch/internal/service/stats"
)

func main() {
	var historyPath, dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy a JSON detection history into the SQLite backend",
		Long: `Reads every record from the JSON history document and inserts it into the
SQLite database, keeping record ids and timestamps. Records written without
an id get one derived from their timestamp and file names. Records already
present in the database are skipped, so the migration can be run repeatedly.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			log := logger.Discard()

			fmt.Fprintf(out, "Migrating history from %s to database %s\n", historyPath, dbPath)

			if _, err := os.Stat(historyPath); err != nil {
				return fmt.Errorf("history file not found: %w", err)
			}
			store, err := jsonfile.Open(historyPath, log)
			if err != nil {
				return err
			}
			records, err := store.Load()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No records found to migrate")
				return nil
			}

			db, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			repo := sqlite.NewHistoryRepository(db, log)
			defer repo.Close()

			fmt.Fprintf(out, "Inserting %d records into database...\n", len(records))
			imported, err := repo.Import(records)
			if err != nil {
				return fmt.Errorf("failed to import records: %w", err)
			}

			fmt.Fprintf(out, "Migrated %d records\n", imported)
			if skipped := len(records) - imported; skipped > 0 {
				fmt.Fprintf(out, "Skipped %d records already in the database\n", skipped)
			}

			total, err := repo.Count()
			if err == nil {
				g := stats.Aggregate(repo.ReadRecent(0))
				fmt.Fprintf(out, "\nDatabase statistics:\n")
				fmt.Fprintf(out, "   Records: %d\n", total)
				fmt.Fprintf(out, "   Dogs: %d (with muzzle %d, without %d)\n", g.TotalDogs, g.WithMuzzle, g.WithoutMuzzle)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "history.json", "JSON history document")
	cmd.Flags().StringVar(&dbPath, "db", "data/history.db", "Database path")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
