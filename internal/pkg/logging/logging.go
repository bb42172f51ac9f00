// Package logging builds the slog.Logger of the linker daemon.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format represents the log output format.
type Format string

const (
	// FormatText outputs logs in human-readable text format.
	FormatText Format = "text"
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = "json"
)

// ParseFormat parses a format string into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %q", s)
	}
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// Options configures the logger factory.
type Options struct {
	// CLILevel is the level from the command line. It overrides ConfigLevel.
	CLILevel string
	// ConfigLevel is the level from the workcell file.
	ConfigLevel string
	// Format is the output format (text or json).
	Format Format
	// Output is the writer for log output. Defaults to os.Stderr.
	Output io.Writer
}

// New creates a new slog.Logger.
// Precedence: CLILevel > ConfigLevel > info.
func New(opts Options) (*slog.Logger, error) {
	name := opts.ConfigLevel
	if opts.CLILevel != "" {
		name = opts.CLILevel
	}
	level, err := ParseLevel(name)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch opts.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, handlerOpts)
	default:
		handler = slog.NewTextHandler(output, handlerOpts)
	}
	return slog.New(handler), nil
}

// Default creates a logger with default settings (info level, text format, stderr).
func Default() *slog.Logger {
	logger, _ := New(Options{})
	return logger
}
