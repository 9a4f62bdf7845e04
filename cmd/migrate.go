package cmd

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"sjsage522/pricetracker/internal/storage"
	"sjsage522/pricetracker/migrations"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status|version|reset]",
	Short:     "Manage database schema migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status", "version", "reset"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, _, err := storage.OpenDB(ctx, cfg.StorageOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := migrations.NewProvider(db, cfg.DBDriver)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch args[0] {
	case "up":
		results, err := provider.Up(ctx)
		printResults(cmd, results)
		return err
	case "down":
		result, err := provider.Down(ctx)
		if result != nil {
			printResults(cmd, []*goose.MigrationResult{result})
		}
		return err
	case "reset":
		results, err := provider.DownTo(ctx, 0)
		printResults(cmd, results)
		return err
	case "version":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "version %d\n", version)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-24s %s\n", applied, s.Source.Path)
		}
	}
	return nil
}

func printResults(cmd *cobra.Command, results []*goose.MigrationResult) {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no migrations to run")
		return
	}
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%-4s %s (%s)\n", r.Direction, r.Source.Path, r.Duration)
	}
}
