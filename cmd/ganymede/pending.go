package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/quota/queue"
)

var pendingFlags struct {
	format string
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List queued pending records",
	Long: `List the records waiting in the local pending queue.

Pending records are queries that were performed but whose recording call
failed; they wait in the queue file until a background flush delivers or
abandons them. This command reads the queue file directly and is meant
for inspection while the server is stopped.

Examples:
  # List pending records
  ganymede pending

  # Machine-readable output
  ganymede pending --format json`,
	RunE: listPending,
}

func init() {
	rootCmd.AddCommand(pendingCmd)

	pendingCmd.Flags().StringVar(&pendingFlags.format, "format", "text", "output format: text, json")
}

func listPending(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if cfg.Queue.Path == "" {
		fmt.Println("queue.path not configured, nothing to inspect")
		return nil
	}

	store, err := queue.NewFileStore(cfg.Queue.Path)
	if err != nil {
		return cli.NewCommandError("pending", fmt.Errorf("failed to open queue store: %w", err))
	}

	records := queue.New(store).Load()

	formatter, err := cli.NewFormatter(cli.OutputFormat(pendingFlags.format))
	if err != nil {
		return cli.NewCommandError("pending", err)
	}

	if pendingFlags.format == "json" {
		return formatter.FormatTo(os.Stdout, records)
	}

	if len(records) == 0 {
		fmt.Println("Pending queue is empty.")
		return nil
	}

	fmt.Printf("Pending records: %d\n\n", len(records))
	for _, record := range records {
		fmt.Printf("  %s  user=%s  attempts=%d  captured=%s\n",
			record.ID, record.UserID, record.Attempts,
			record.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
