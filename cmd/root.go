package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sjsage522/pricetracker/config"
	"sjsage522/pricetracker/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pricetracker",
	Short: "Price tracker - product crawler, price history and drop alerts",
	Long:  "Crawls retailer product pages, keeps a deduplicated product catalog with price history and emails trackers when prices drop.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: sqlite, postgres")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite database file")
	rootCmd.PersistentFlags().Bool("respect-robots", true, "Respect robots.txt rules")
}

func initConfig(cmd *cobra.Command) error {
	// a missing .env file is fine
	_ = godotenv.Load()

	logger.Init()

	cfg = config.LoadConfig()

	// Override from flags
	if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		cfg.DBPath = v
	}
	if cmd.Flags().Changed("respect-robots") {
		cfg.RespectRobots, _ = cmd.Flags().GetBool("respect-robots")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
