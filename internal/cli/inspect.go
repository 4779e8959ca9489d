package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabstone-dev/tabstone/internal/report"
	"github.com/tabstone-dev/tabstone/internal/session"
)

func RunInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := decodeOptions(cmd, cfg)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to read --json flag: %w", err)
	}
	pretty, err := cmd.Flags().GetBool("pretty")
	if err != nil {
		return fmt.Errorf("failed to read --pretty flag: %w", err)
	}

	model, err := decodeFile(args[0], opts)
	if err != nil {
		return err
	}

	switch {
	case asJSON:
		return report.WriteJSON(cmd.OutOrStdout(), model)
	case pretty:
		fmt.Fprint(cmd.OutOrStdout(), report.RenderMarkdown(report.Markdown(model)))
	default:
		fmt.Fprint(cmd.OutOrStdout(), report.Summary(model))
	}
	return nil
}

// decodeFile decodes one artifact off disk. A model that finalized with
// diagnostics is still a success; only unreadable files fail.
func decodeFile(path string, opts session.Options) (*session.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	model, err := session.Decode(f, opts)
	if err != nil {
		if model != nil {
			// Mid-stream I/O failure: report it but keep the partial model.
			fmt.Fprintf(os.Stderr, "warning: %v; continuing with partial session\n", err)
			return model, nil
		}
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return model, nil
}
