// Package logging sets up the process-wide zap logger. The TUI owns the
// terminal, so logs always go to a file under the otto config directory,
// never to stdout or stderr.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a file-backed logger. dir is created if missing. level is one of
// debug/info/warn/error; anything else falls back to info.
func New(dir, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.OutputPaths = []string{filepath.Join(dir, "otto.log")}
	cfg.ErrorOutputPaths = []string{filepath.Join(dir, "otto.log")}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
