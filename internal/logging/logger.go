// Package logging builds the logr.Logger shared by the CLI and the store.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level maps a level name to its zap level.
func Level(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return 0, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", level)
}

// New returns a logger writing to stderr at the given level. Debug turns on
// the development encoder and logr V(1) messages.
func New(level string) (logr.Logger, error) {
	zapLevel, err := Level(level)
	if err != nil {
		return logr.Logger{}, err
	}
	cfg := zap.NewProductionConfig()
	if zapLevel == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.DisableStacktrace = true
	z, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("build logger: %w", err)
	}
	return zapr.NewLogger(z), nil
}

// NewWriter returns a console logger writing to w, for tests and for
// commands whose stderr is captured.
func NewWriter(w io.Writer, level string) (logr.Logger, error) {
	zapLevel, err := Level(level)
	if err != nil {
		return logr.Logger{}, err
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), zap.NewAtomicLevelAt(zapLevel))
	return zapr.NewLogger(zap.New(core)), nil
}
