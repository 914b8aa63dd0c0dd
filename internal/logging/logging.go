// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stderr selects standard error as the log destination.
const Stderr = "stderr"

// Options configures the logger.
type Options struct {
	Level string // debug, info, warn, error
	File  string // Stderr, a path, or empty for the xdg state directory
}

// New builds a JSON logger. The returned path is the log file in use, or
// Stderr.
func New(opts Options) (*zap.Logger, string, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, "", err
	}

	dest := opts.File
	if dest == "" {
		dest, err = xdg.StateFile(filepath.Join("scrobbled", "scrobbled.log"))
		if err != nil {
			return nil, "", fmt.Errorf("log path: %w", err)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	if dest == Stderr {
		cfg.OutputPaths = []string{"stderr"}
	} else {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, "", fmt.Errorf("log dir: %w", err)
		}
		cfg.OutputPaths = []string{dest}
	}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, "", fmt.Errorf("build logger: %w", err)
	}
	return logger, dest, nil
}

// ParseLevel parses a level name. An empty name is info.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return level, fmt.Errorf("log level %q: %w", name, err)
	}
	return level, nil
}
