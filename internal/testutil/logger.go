package testutil

import (
	"io"
	"log/slog"
)

// NewLogger returns a logger that discards output, keeping tests quiet.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
