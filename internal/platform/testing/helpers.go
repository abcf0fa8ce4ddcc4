package testing

import (
	"io"
	"log/slog"
	"testing"
)

// SetupTestLogger returns a structured logger that swallows output so
// test logs stay readable.
func SetupTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
