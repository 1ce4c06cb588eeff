package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gobeaver/routekit"
)

// initLogging installs the default slog logger for cfg. Log lines go to w
// and, when cfg.LogFile is set, are appended to that file as well. The
// returned func closes the file.
func initLogging(cfg *routekit.Config, w io.Writer) (func() error, error) {
	level, err := routekit.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	closeFn := func() error { return nil }
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closeFn = f.Close
	}

	slog.SetDefault(slog.New(routekit.NewLogHandler(w, level, cfg.LogFormat)))
	return closeFn, nil
}

// newLogger returns a logger with a "component" attribute.
func newLogger(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}
