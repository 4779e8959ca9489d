package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tabstone-dev/tabstone/internal/report"
)

func RunExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := decodeOptions(cmd, cfg)
	if err != nil {
		return err
	}

	outDir := cfg.Export.OutDir
	if cmd.Flags().Changed("out") {
		outDir, _ = cmd.Flags().GetString("out")
	}
	format := cfg.Export.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}

	model, err := decodeFile(args[0], opts)
	if err != nil {
		return err
	}

	switch format {
	case "", "csv":
		paths, err := report.ExportCSV(model, outDir)
		if err != nil {
			return fmt.Errorf("failed to export CSV: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d file(s) to %s\n", len(paths), outDir)
	case "json":
		if err := report.ExportJSON(model, outDir); err != nil {
			return fmt.Errorf("failed to export JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote session.json to %s\n", outDir)
	default:
		return fmt.Errorf("unsupported export format %q (supported: csv, json)", format)
	}

	if diags := model.Diagnostics(); len(diags) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d record(s) skipped during decode; see inspect --json for details\n", len(diags))
	}
	return nil
}
