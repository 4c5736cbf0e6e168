package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is one of text, json, tint.
	Format string
}

// NewLogger builds the process logger from c.
func NewLogger(w io.Writer, c LogConfig) (*slog.Logger, error) {
	var lvl slog.Level
	if c.Level != "" {
		if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}

	var h slog.Handler
	switch strings.ToLower(c.Format) {
	case "", "tint":
		h = tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.DateTime})
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	case "text":
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}

	return slog.New(h), nil
}
