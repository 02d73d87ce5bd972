package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/truncator/pkg/cli"
	"mercator-hq/truncator/pkg/schema"
)

var tablesFlags struct {
	typeName string
	format   string
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Show the version tables of a record type",
	Long: `Resolve a record type through its ancestors and print every version table
a sweep deletes from, base table first.

Without --type every configured type is printed.

Examples:
  truncator tables --type BlogPost
  truncator tables --format json`,
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)

	tablesCmd.Flags().StringVarP(&tablesFlags.typeName, "type", "t", "", "record type (default: all types)")
	tablesCmd.Flags().StringVarP(&tablesFlags.format, "format", "f", "text", "output format: text, json")
	_ = tablesCmd.RegisterFlagCompletionFunc("type", completeTypes)
}

func runTables(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(tablesFlags.format)
	if err != nil || format == cli.FormatCSV {
		return cli.NewConfigError("format", fmt.Sprintf("unsupported output format %q (use text or json)", tablesFlags.format))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := schema.NewRegistry(cfg.Schema.Types, cfg.Schema.VersionSuffix)
	if err != nil {
		return cli.NewConfigError("schema.types", err.Error())
	}

	types := registry.Types()
	if tablesFlags.typeName != "" {
		types = []string{tablesFlags.typeName}
	}

	resolutions := make([]*schema.Resolution, 0, len(types))
	for _, typeName := range types {
		res, err := registry.Resolve(typeName)
		if err != nil {
			return cli.NewCommandError("tables", err)
		}
		resolutions = append(resolutions, res)
	}

	formatter := cli.NewFormatter(format)
	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		return formatter.FormatTo(out, resolutions)
	}
	for i, res := range resolutions {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := formatter.FormatTo(out, res); err != nil {
			return err
		}
	}
	return nil
}
