package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tabstone-dev/tabstone/internal/command"
	"github.com/tabstone-dev/tabstone/internal/config"
	"github.com/tabstone-dev/tabstone/internal/logging"
	"github.com/tabstone-dev/tabstone/internal/session"
)

// loadConfig reads the config named by --config, or .tabstone.yaml in the
// working directory.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to read --config flag: %w", err)
	}
	dir, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return config.Load(dir, path)
}

// decodeOptions merges config-file defaults with explicit flags. A flag the
// user actually set wins over the file.
func decodeOptions(cmd *cobra.Command, cfg config.Config) (session.Options, error) {
	opts := session.Options{
		FormatVersion:      cfg.Decode.FormatVersion,
		MalformedTolerance: cfg.Decode.MalformedTolerance,
	}

	artifactName := cfg.Decode.Artifact
	if cmd.Flags().Changed("artifact") {
		artifactName, _ = cmd.Flags().GetString("artifact")
	}
	artifact, err := parseArtifact(artifactName)
	if err != nil {
		return session.Options{}, err
	}
	opts.Artifact = artifact

	if cmd.Flags().Changed("format-version") {
		v, err := cmd.Flags().GetInt32("format-version")
		if err != nil {
			return session.Options{}, fmt.Errorf("failed to read --format-version flag: %w", err)
		}
		opts.FormatVersion = v
	}
	if cmd.Flags().Changed("tolerance") {
		tol, err := cmd.Flags().GetInt("tolerance")
		if err != nil {
			return session.Options{}, fmt.Errorf("failed to read --tolerance flag: %w", err)
		}
		opts.MalformedTolerance = tol
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return session.Options{}, fmt.Errorf("failed to read --verbose flag: %w", err)
	}
	if verbose {
		opts.Logger = logging.New(true)
	} else {
		opts.Logger = zap.NewNop()
	}

	return opts, nil
}

func parseArtifact(name string) (command.Artifact, error) {
	switch name {
	case "", "session":
		return command.ArtifactSession, nil
	case "tabs":
		return command.ArtifactTabRestore, nil
	default:
		return 0, fmt.Errorf("unsupported artifact %q (supported: session, tabs)", name)
	}
}
