// Package logging builds the zap loggers used by the CLI.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr so report output on stdout stays
// clean. verbose enables debug level with the development encoder.
func New(verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	encoder := zap.NewProductionEncoderConfig()
	encoding := "json"
	if verbose {
		level = zapcore.DebugLevel
		encoder = zap.NewDevelopmentEncoderConfig()
		encoding = "console"
	}

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       verbose,
		Encoding:          encoding,
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !verbose,
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
