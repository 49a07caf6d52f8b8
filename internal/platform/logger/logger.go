package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so log pipelines can index the
// structured attributes services attach.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
