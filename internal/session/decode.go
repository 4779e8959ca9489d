package session

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tabstone-dev/tabstone/internal/command"
	"github.com/tabstone-dev/tabstone/internal/snss"
)

// Options configures one decode. The zero value decodes a session artifact
// with the header's own format version and unbounded malformed tolerance.
type Options struct {
	// FormatVersion overrides the version declared in the file header when
	// nonzero. Selects schema-table rows.
	FormatVersion int32

	// Artifact selects the command dialect: session vs tab-restore files.
	Artifact command.Artifact

	// MalformedTolerance is how many malformed commands to accept before
	// finalizing early. Negative means unbounded.
	MalformedTolerance int

	// Logger receives per-record debug diagnostics. Nil means silent.
	Logger *zap.Logger
}

// Decode reads one SNSS artifact and folds it into a finalized model.
//
// The only hard failures are an unreadable header and byte-source I/O errors;
// unknown commands, malformed commands and truncation all degrade into
// diagnostics on the returned model. Even on a hard mid-stream failure the
// partially built model is returned alongside the error. Decoding is strictly
// sequential within one artifact; decode independent files concurrently with
// one Decode call each.
func Decode(r io.Reader, opts Options) (*Model, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	stream, err := snss.Open(r)
	if err != nil {
		return nil, err
	}

	version := opts.FormatVersion
	if version == 0 {
		version = stream.Version()
	}
	log.Debug("decoding session artifact",
		zap.Int32("header_version", stream.Version()),
		zap.Int32("schema_version", version))

	dec := command.NewDecoder(version, opts.Artifact)
	b := NewBuilder(opts.MalformedTolerance)

	for {
		rec, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var trunc *snss.TruncatedRecordError
			if errors.As(err, &trunc) {
				log.Debug("stream truncated", zap.Int64("offset", trunc.Offset))
				b.ApplyTruncated(trunc.Offset, trunc.Error())
				break
			}
			// Byte-source failure: keep what was folded, report the cause.
			return b.Finalize(), fmt.Errorf("session: read record: %w", err)
		}

		cmd, err := dec.Decode(rec.Payload)
		if err != nil {
			var malformed *command.MalformedError
			if errors.As(err, &malformed) {
				log.Debug("malformed command",
					zap.Uint8("id", uint8(malformed.ID)),
					zap.Int64("offset", rec.Offset),
					zap.Error(malformed.Err))
				if !b.ApplyMalformed(malformed, rec.Offset) {
					log.Debug("malformed tolerance exhausted, finalizing early")
					break
				}
				continue
			}
			return b.Finalize(), fmt.Errorf("session: decode record at offset %d: %w", rec.Offset, err)
		}

		if unk, ok := cmd.(command.Unknown); ok {
			log.Debug("unknown command",
				zap.Uint8("id", uint8(unk.ID)),
				zap.Int64("offset", rec.Offset))
		}
		if !b.Apply(cmd, rec.Offset) {
			break
		}
	}

	return b.Finalize(), nil
}
