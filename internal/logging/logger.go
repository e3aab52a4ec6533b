package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"surfsup-server/internal/config"
)

// New builds the process logger. Development runs get colourised tint output
// with source locations; everything else logs JSON lines tagged with build info.
func New(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if cfg.AppEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName, "version", version)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}
