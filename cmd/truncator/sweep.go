package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/truncator/pkg/cli"
	"mercator-hq/truncator/pkg/history"
	"mercator-hq/truncator/pkg/retention"
)

// policyFlags override the configured policy for one invocation.
type policyFlags struct {
	keepVersions  int
	keepDrafts    int
	keepRedirects bool
	deleteLimit   int
}

func (f *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.keepVersions, "keep-versions", 0, "override keep_versions (0 or less disables)")
	cmd.Flags().IntVar(&f.keepDrafts, "keep-drafts", -1, "override keep_drafts (negative disables)")
	cmd.Flags().BoolVar(&f.keepRedirects, "keep-redirects", false, "override keep_redirects")
	cmd.Flags().IntVar(&f.deleteLimit, "delete-limit", 0, "override delete_limit")
}

// apply overlays the flags the user set on policy.
func (f *policyFlags) apply(cmd *cobra.Command, policy retention.Policy) retention.Policy {
	if cmd.Flags().Changed("keep-versions") {
		policy.KeepVersions = retention.Keep(f.keepVersions)
	}
	if cmd.Flags().Changed("keep-drafts") {
		policy.KeepDrafts = retention.Keep(f.keepDrafts)
	}
	if cmd.Flags().Changed("keep-redirects") {
		policy.KeepRedirects = f.keepRedirects
	}
	if cmd.Flags().Changed("delete-limit") {
		policy.DeleteLimit = f.deleteLimit
	}
	return policy
}

var sweepFlags struct {
	typeName   string
	recordID   int64
	urlSegment string
	parentID   int64
	dryRun     bool
	format     string
	policy     policyFlags
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Prune the version history of one record",
	Long: `Select and delete surplus versions of a single record.

The retention policy comes from the configuration (type, then ancestors, then
defaults) and can be overridden with flags for this run.

When --url-segment or --parent-id is given it is used as the record's current
address; otherwise the address of the newest version is used.

Examples:
  # Sweep page 42 with the configured policy
  truncator sweep --type Page --id 42

  # Preview which versions would be removed
  truncator sweep --type Page --id 42 --dry-run

  # Keep only the 5 newest published versions, as JSON
  truncator sweep --type Page --id 42 --keep-versions 5 --format json`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVarP(&sweepFlags.typeName, "type", "t", "", "record type (required)")
	sweepCmd.Flags().Int64Var(&sweepFlags.recordID, "id", 0, "record id (required)")
	sweepCmd.Flags().StringVar(&sweepFlags.urlSegment, "url-segment", "", "current URL segment of the record")
	sweepCmd.Flags().Int64Var(&sweepFlags.parentID, "parent-id", 0, "current parent id of the record")
	sweepCmd.Flags().BoolVar(&sweepFlags.dryRun, "dry-run", false, "select versions without deleting them")
	sweepCmd.Flags().StringVarP(&sweepFlags.format, "format", "f", "text", "output format: text, json, csv")
	sweepFlags.policy.register(sweepCmd)

	_ = sweepCmd.MarkFlagRequired("type")
	_ = sweepCmd.MarkFlagRequired("id")
	_ = sweepCmd.RegisterFlagCompletionFunc("type", completeTypes)
}

func runSweep(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(sweepFlags.format)
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

	policy, err := a.policyFor(sweepFlags.typeName)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	policy = sweepFlags.policy.apply(cmd, policy)

	req := retention.Request{
		TypeName: sweepFlags.typeName,
		RecordID: sweepFlags.recordID,
		Policy:   policy,
		DryRun:   sweepFlags.dryRun,
	}
	if cmd.Flags().Changed("url-segment") || cmd.Flags().Changed("parent-id") {
		req.Identity = &history.IdentityKey{
			ParentID:   sweepFlags.parentID,
			URLSegment: sweepFlags.urlSegment,
		}
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	result, sweepErr := a.sweeper.Sweep(ctx, req)
	if result != nil {
		if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if sweepErr != nil {
		if result != nil && result.Deleted > 0 {
			return cli.NewPartialError("sweep", sweepErr)
		}
		return cli.NewCommandError("sweep", sweepErr)
	}
	return nil
}
