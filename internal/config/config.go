// Package config loads decode options from an optional .tabstone.yaml file,
// so repeat casework against the same browser build does not need the same
// flags every run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is looked up in the working directory unless a path is given.
const FileName = ".tabstone.yaml"

// DecodeConfig mirrors the decode flags.
type DecodeConfig struct {
	// FormatVersion overrides the SNSS header version when nonzero.
	FormatVersion int32 `yaml:"format_version,omitempty"`

	// MalformedTolerance bounds accepted malformed commands; -1 = unbounded.
	MalformedTolerance int `yaml:"malformed_tolerance"`

	// Artifact selects the command dialect: "session" or "tabs".
	Artifact string `yaml:"artifact,omitempty"`
}

// ExportConfig holds defaults for the export command.
type ExportConfig struct {
	Format string `yaml:"format,omitempty"` // csv or json
	OutDir string `yaml:"out_dir,omitempty"`
}

// Config is the full file.
type Config struct {
	Decode DecodeConfig `yaml:"decode,omitempty"`
	Export ExportConfig `yaml:"export,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Decode: DecodeConfig{MalformedTolerance: -1, Artifact: "session"},
		Export: ExportConfig{Format: "csv", OutDir: "tabstone-out"},
	}
}

// Load reads the config at path, or FileName in dir when path is empty.
// A missing file yields defaults; a malformed file is an error, since
// silently ignoring a typoed config would skew casework.
func Load(dir, path string) (Config, error) {
	if path == "" {
		path = filepath.Join(dir, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Decode.Artifact {
	case "", "session", "tabs":
	default:
		return fmt.Errorf("unsupported artifact %q (supported: session, tabs)", c.Decode.Artifact)
	}
	switch c.Export.Format {
	case "", "csv", "json":
	default:
		return fmt.Errorf("unsupported export format %q (supported: csv, json)", c.Export.Format)
	}
	return nil
}
