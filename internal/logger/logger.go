package logger

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a logger writing single-line records to stdout,
// which the Lambda runtime forwards to CloudWatch.
func NewLogger(level slog.Leveler) *slog.Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(newLineHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
