/*
Package cli provides command-line interface utilities for the truncator
command.

Output Formatting:

Sweep results, batch results and table resolutions can be rendered as text,
JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Errors and Exit Codes:

Commands return ConfigError for configuration problems and CommandError for
failures while running. ExitCode maps either to a process exit status.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
