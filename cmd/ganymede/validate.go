package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the server.

Validation checks the listen address, daily limit, reset timezone, flush
schedule, counter backend selection, and telemetry settings. Environment
variable overrides (GANYMEDE_*) are applied before validation, so the
result reflects what "ganymede run" would actually use.

Examples:
  # Validate the default config file
  ganymede validate

  # Validate a specific file
  ganymede validate --config /etc/ganymede/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  Daily limit:    %d\n", cfg.Quota.DailyLimit)
	fmt.Printf("  Reset timezone: %s\n", cfg.Quota.ResetTimezone)
	fmt.Printf("  Counter:        %s\n", cfg.Counter.Backend)
	if cfg.Queue.Path != "" {
		fmt.Printf("  Queue file:     %s\n", cfg.Queue.Path)
	} else {
		fmt.Println("  Queue file:     (in-memory, not durable)")
	}
	return nil
}
