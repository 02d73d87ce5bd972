package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/truncator/pkg/cli"
)

var sweepTypeFlags struct {
	typeName string
	dryRun   bool
	format   string
	policy   policyFlags
}

var sweepTypeCmd = &cobra.Command{
	Use:   "sweep-type",
	Short: "Prune the version history of every record of a type",
	Long: `Sweep every record whose ClassName is the given type, one record at a time.

A failing record does not stop the batch. Failures are reported at the end
and the command exits non-zero.

Examples:
  # Sweep every Page
  truncator sweep-type --type Page

  # Preview as CSV
  truncator sweep-type --type Page --dry-run --format csv`,
	RunE: runSweepType,
}

func init() {
	rootCmd.AddCommand(sweepTypeCmd)

	sweepTypeCmd.Flags().StringVarP(&sweepTypeFlags.typeName, "type", "t", "", "record type (required)")
	sweepTypeCmd.Flags().BoolVar(&sweepTypeFlags.dryRun, "dry-run", false, "select versions without deleting them")
	sweepTypeCmd.Flags().StringVarP(&sweepTypeFlags.format, "format", "f", "text", "output format: text, json, csv")
	sweepTypeFlags.policy.register(sweepTypeCmd)

	_ = sweepTypeCmd.MarkFlagRequired("type")
	_ = sweepTypeCmd.RegisterFlagCompletionFunc("type", completeTypes)
}

func runSweepType(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(sweepTypeFlags.format)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	policy, err := a.policyFor(sweepTypeFlags.typeName)
	if err != nil {
		return cli.NewCommandError("sweep-type", err)
	}
	policy = sweepTypeFlags.policy.apply(cmd, policy)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	batch, sweepErr := a.sweeper.SweepType(ctx, sweepTypeFlags.typeName, policy, sweepTypeFlags.dryRun)
	if batch != nil {
		if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), batch); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if sweepErr != nil {
		if batch != nil && batch.Deleted > 0 {
			return cli.NewPartialError("sweep-type", sweepErr)
		}
		return cli.NewCommandError("sweep-type", sweepErr)
	}
	return nil
}
