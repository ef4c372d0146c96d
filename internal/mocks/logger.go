package mocks

import (
	"io"
	"log/slog"

	"github.com/retroenv/retrogolib/log"
)

// NewLogger returns a logger that discards all records. Unlike the test
// logger it does not fail the test on error records, which makes it usable
// for failure paths that log their errors.
func NewLogger() *log.Logger {
	return log.NewWithConfig(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}
