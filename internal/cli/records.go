package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabstone-dev/tabstone/internal/command"
	"github.com/tabstone-dev/tabstone/internal/snss"
)

// RecordInfo describes one raw record for the records listing.
type RecordInfo struct {
	Offset int64  `json:"offset"`
	Size   int    `json:"size"`
	ID     uint8  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // ok, unknown, malformed, empty
	Detail string `json:"detail,omitempty"`
}

func RunRecords(cmd *cobra.Command, args []string) error {
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

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	stream, err := snss.Open(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	version := opts.FormatVersion
	if version == 0 {
		version = stream.Version()
	}
	dec := command.NewDecoder(version, opts.Artifact)

	var records []RecordInfo
	var truncated string
	for {
		rec, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var trunc *snss.TruncatedRecordError
			if errors.As(err, &trunc) {
				truncated = trunc.Error()
				break
			}
			return fmt.Errorf("failed to read record: %w", err)
		}
		records = append(records, classifyRecord(dec, rec))
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Version   int32        `json:"format_version"`
			Records   []RecordInfo `json:"records"`
			Truncated string       `json:"truncated,omitempty"`
		}{stream.Version(), records, truncated})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Format version %d, %d record(s)\n", stream.Version(), len(records))
	for _, r := range records {
		line := fmt.Sprintf("%8d  %5dB  id=%-3d %-30s %s", r.Offset, r.Size, r.ID, r.Name, r.Status)
		if r.Detail != "" {
			line += "  (" + r.Detail + ")"
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	if truncated != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "stream ends early: %s\n", truncated)
	}
	return nil
}

func classifyRecord(dec *command.Decoder, rec snss.Record) RecordInfo {
	info := RecordInfo{Offset: rec.Offset, Size: len(rec.Payload)}
	if len(rec.Payload) == 0 {
		info.Status = "empty"
		return info
	}
	info.ID = rec.Payload[0]
	info.Name = dec.CommandName(command.ID(info.ID))

	cmd, err := dec.Decode(rec.Payload)
	switch {
	case err != nil:
		info.Status = "malformed"
		info.Detail = err.Error()
	default:
		if _, ok := cmd.(command.Unknown); ok {
			info.Status = "unknown"
		} else {
			info.Status = "ok"
		}
	}
	return info
}
