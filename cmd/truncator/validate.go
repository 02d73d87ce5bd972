package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"mercator-hq/truncator/pkg/cli"
	"mercator-hq/truncator/pkg/retention"
	"mercator-hq/truncator/pkg/schema"
)

var validateFlags struct {
	checkStorage bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load and validate the configuration file, then print the effective
retention policy of every type.

Examples:
  # Validate the default config file
  truncator validate

  # Also check that the database is reachable
  truncator validate --config /etc/truncator/config.yaml --check-storage`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.checkStorage, "check-storage", false, "connect to the configured storage")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := schema.NewRegistry(cfg.Schema.Types, cfg.Schema.VersionSuffix)
	if err != nil {
		return cli.NewConfigError("schema.types", err.Error())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", cfgFile)
	fmt.Fprintf(out, "✓ Storage driver: %s\n", cfg.Storage.Driver)

	if sched, err := cron.ParseStandard(cfg.Retention.Schedule); err == nil {
		fmt.Fprintf(out, "✓ Schedule: %s (next run %s)\n", cfg.Retention.Schedule, sched.Next(time.Now()).Format(time.RFC3339))
	}

	if validateFlags.checkStorage {
		store, err := openStore(&cfg.Storage)
		if err != nil {
			return cli.NewCommandError("validate", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return cli.NewCommandError("validate", err)
		}
		fmt.Fprintln(out, "✓ Storage reachable")
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tTABLES\tKEEP_VERSIONS\tKEEP_DRAFTS\tKEEP_REDIRECTS\tDELETE_LIMIT")
	for _, typeName := range registry.Types() {
		res, err := registry.Resolve(typeName)
		if err != nil {
			return cli.NewConfigError("schema.types", err.Error())
		}
		if !res.HasStages {
			fmt.Fprintf(tw, "%s\t%d\t-\t-\t-\t-\n", typeName, len(res.Tables))
			continue
		}
		policy := retention.PolicyFromConfig(cfg.Retention.PolicyFor(res.Chain))
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%t\t%d\n",
			typeName,
			len(res.Tables),
			keepString(policy.KeepVersions, policy.PublishedEnabled()),
			keepString(policy.KeepDrafts, policy.DraftsEnabled()),
			policy.KeepRedirects && res.PathAddressed,
			policy.Limit(),
		)
	}
	return tw.Flush()
}

func keepString(n *int, enabled bool) string {
	if !enabled {
		return "off"
	}
	return strconv.Itoa(*n)
}
