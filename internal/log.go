package internal

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// LevelTrace sits below slog's Debug for per-fold and per-grid-point detail
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps ERROR, WARN, INFO, DEBUG and TRACE (any case) to a slog level.
// Unknown values fall back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return slog.LevelError
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "DEBUG":
		return slog.LevelDebug
	case "TRACE":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a tinted text logger writing to w
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		NoColor:    !isTerminal(w),
	}))
}

// NewDefaultLogger creates a stderr logger based on the LOG_LEVEL environment variable
func NewDefaultLogger() *slog.Logger {
	return NewLogger(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
