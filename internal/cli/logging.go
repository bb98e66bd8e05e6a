package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"

	"github.com/codalotl/agentjudge/internal/config"
	"github.com/codalotl/agentjudge/internal/workspace"
)

func logLevel(name string) slog.Level {
	switch name {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// withLogging installs a text logger on ctx writing to stderr and, when configured, the log file. The
// returned func closes the log file.
func withLogging(ctx context.Context, cfg config.Config, stderr io.Writer) (context.Context, func()) {
	w := stderr
	closeFn := func() {}

	var openErr error
	if cfg.LogFile != "" {
		f, err := openLogFile(cfg.LogFile)
		if err != nil {
			openErr = err
		} else {
			w = io.MultiWriter(f, stderr)
			closeFn = func() { _ = f.Close() }
		}
	}

	log := clog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	if openErr != nil {
		log.Warnf("Cannot write log file %s, logging to stderr only: %v", cfg.LogFile, openErr)
	}
	return clog.WithLogger(ctx, log), closeFn
}

func openLogFile(path string) (*os.File, error) {
	if err := workspace.EnsureParent(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
