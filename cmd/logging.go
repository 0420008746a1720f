package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// newLogger builds the process logger from --debug and --log-format and
// installs it as the slog default.
func newLogger(cmd *cobra.Command) *slog.Logger {
	logger := buildLogger(os.Stdout, mustGetString(cmd, "log-format"), mustGetBool(cmd, "debug"))
	slog.SetDefault(logger)
	return logger
}

func buildLogger(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
