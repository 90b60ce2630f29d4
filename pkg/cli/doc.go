/*
Package cli provides command-line interface utilities for Ganymede.

The cli package includes output formatters, typed command errors, and signal
handling helpers used by the ganymede command.

Output Formatting:

Commands that print structured data support text and JSON output:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, data); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
