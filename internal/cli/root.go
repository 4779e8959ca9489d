// Package cli wires the decode pipeline to the tabstone command surface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tabstone",
		Short: "Recover browsing sessions from Chromium SNSS files",
		Long: `Tabstone reads Chromium session artifacts (Current Session, Last Session,
Current Tabs, Last Tabs) and rebuilds the windows, tabs and navigation
history they record, tolerating the truncation and corruption typical of
carved or partially overwritten files.

Decode defaults can be stored in a .tabstone.yaml next to the evidence.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a .tabstone.yaml (default: working directory)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log per-record decode diagnostics to stderr")

	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode a session file and print the recovered session",
		Args:  cobra.ExactArgs(1),
		RunE:  RunInspect,
	}
	addDecodeFlags(inspectCmd)
	inspectCmd.Flags().Bool("json", false, "Print the machine-readable session view")
	inspectCmd.Flags().Bool("pretty", false, "Render a full markdown report in the terminal")

	exportCmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Decode a session file and write per-tab reports to disk",
		Args:  cobra.ExactArgs(1),
		RunE:  RunExport,
	}
	addDecodeFlags(exportCmd)
	exportCmd.Flags().StringP("out", "o", "", "Output directory (default: tabstone-out)")
	exportCmd.Flags().String("format", "", "Export format: csv|json (default: csv)")

	recordsCmd := &cobra.Command{
		Use:   "records <file>",
		Short: "List the raw command records of a session file",
		Args:  cobra.ExactArgs(1),
		RunE:  RunRecords,
	}
	addDecodeFlags(recordsCmd)
	recordsCmd.Flags().Bool("json", false, "Print machine-readable record listing")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tabstone %s\n", version)
		},
	}

	rootCmd.AddCommand(
		inspectCmd,
		exportCmd,
		recordsCmd,
		versionCmd,
	)

	return rootCmd
}

func addDecodeFlags(cmd *cobra.Command) {
	cmd.Flags().Int32("format-version", 0, "Override the file header's format version")
	cmd.Flags().String("artifact", "", "Command dialect: session|tabs (default: session)")
	cmd.Flags().Int("tolerance", -1, "Malformed commands accepted before finalizing early (-1 = unbounded)")
}
