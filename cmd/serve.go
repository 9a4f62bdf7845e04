package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sjsage522/pricetracker/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh scheduler until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("run-now", false, "Start a refresh immediately instead of after the first interval")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Default
	runNow, _ := cmd.Flags().GetBool("run-now")

	log.Info().
		Str("environment", cfg.Environment).
		Dur("refresh_interval", cfg.RefreshInterval).
		Msg("Starting application")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	sched := services.Scheduler(cfg, runNow)

	schedulerDone := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(schedulerDone)
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	log.Info().Dur("drain", cfg.ShutdownDrain).Msg("Shutting down gracefully...")
	if err := sched.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Refresh interrupted before draining")
	}
	cancel()
	<-schedulerDone

	return nil
}
