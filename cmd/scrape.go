package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sjsage522/pricetracker/internal/search"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/services/coordinator"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [query]",
	Short: "Crawl a product URL or the results of a search query",
	Args:  cobra.ExactArgs(1),
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().String("method", "url", "Search method: url, google")
	scrapeCmd.Flags().Int("pages", 1, "Result pages to request from the search provider")
	scrapeCmd.Flags().Int("per-page", 10, "Results per page, at most 10")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	methodName, _ := cmd.Flags().GetString("method")
	pages, _ := cmd.Flags().GetInt("pages")
	perPage, _ := cmd.Flags().GetInt("per-page")

	method, err := search.ParseMethod(methodName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	batch, err := services.Coordinator.Run(ctx, args[0], method, pages, perPage)
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	return waitBatch(ctx, batch)
}

// waitBatch logs progress until batch finishes, then prints its stats.
// An interrupt cancels the batch and lets in-flight URLs drain.
func waitBatch(ctx context.Context, batch *coordinator.Batch) error {
	log := logger.Default
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for waiting := true; waiting; {
		select {
		case <-batch.Done():
			waiting = false
		case <-ticker.C:
			done, estimated := batch.Progress()
			log.Info().Int("done", done).Int("estimated", estimated).Msg("Crawling")
		case <-ctx.Done():
			log.Info().Msg("Interrupted, waiting for in-flight pages")
			batch.Cancel()
			drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrain)
			err := batch.Wait(drainCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("batch did not drain: %w", err)
			}
			waiting = false
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(batch.Stats())
}
