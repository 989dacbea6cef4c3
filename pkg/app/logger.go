package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/flemzord/reaper/internal/config"
	"github.com/flemzord/reaper/internal/gateway"
	"github.com/flemzord/reaper/internal/redact"
)

// NewLogger builds the process logger. format is "text" or "json"; level
// is any name accepted by slog.Level.UnmarshalText ("debug", "warn+2"...).
// When r is non-nil every record passes through it.
func NewLogger(w io.Writer, format, level string, r *redact.Redactor) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("app: invalid log level %q", level)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("app: unknown log format %q", format)
	}
	if r != nil {
		h = redact.NewHandler(h, r)
	}
	return slog.New(h), nil
}

// configSecrets returns the credentials in cfg that must never be logged.
func configSecrets(cfg *config.Config) []string {
	node, ok := cfg.Modules["gateway.http"]
	if !ok {
		return nil
	}
	var gc gateway.Config
	if err := node.Decode(&gc); err != nil {
		return nil
	}
	return []string{gc.Auth.BearerToken, gc.Auth.BasicPass}
}
