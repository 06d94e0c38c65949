package kfmt

import (
	"fmt"
	"log/slog"
	"strings"
)

// logLevel is shared by every module logger so SetLogLevel takes effect for
// loggers handed out before the call.
var logLevel = new(slog.LevelVar)

// SetLogLevel selects the minimum level of records emitted by the module
// loggers. Unknown names select info.
func SetLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}

// Logger returns a structured logger tagged with the given kernel module.
// Records are written as text to the active output sink.
func Logger(module string) *slog.Logger {
	h := slog.NewTextHandler(sinkWriter{}, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// The hart has its own notion of time; wall clock stamps only
			// add noise to boot logs.
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(h).With("module", module)
}

// Hex renders an address or register value in hexadecimal when logged.
type Hex uint64

// String implements fmt.Stringer for Hex.
func (h Hex) String() string {
	return fmt.Sprintf("0x%x", uint64(h))
}

// Range renders the half-open address range [start, end).
func Range(start, end uint64) string {
	return fmt.Sprintf("[0x%x, 0x%x)", start, end)
}
