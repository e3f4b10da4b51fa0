// Command aas runs the food order shop: the JSON API, the HTML pages and the
// account maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Surfinbird-star/aas2/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "aas",
	Short:         "Food order shop server",
	SilenceUsage:  true,
	SilenceErrors: true,
	// Running without a subcommand serves.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $CONFIG_PATH or ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(promoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the logger.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	_, closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}
