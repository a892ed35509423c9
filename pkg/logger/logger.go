package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Init sets up the default slog logger.
//
// When pretty is true, logs are human-readable text. Otherwise they are JSON.
// An unrecognized level falls back to info.
func Init(w io.Writer, level string, pretty bool) {
	slog.SetDefault(New(w, level, pretty))
}

// New creates a logger without setting it as the default.
func New(w io.Writer, level string, pretty bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if pretty {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return parsed
}
