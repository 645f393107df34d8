// Package logging adapts uber-go/zap to the types.Logger interface used by
// the queue and the backends.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/slackmgr/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format constants
const (
	// JSONFormat outputs structured JSON logs
	JSONFormat = "json"
	// TextFormat outputs human-readable console logs
	TextFormat = "text"
)

// Config holds configuration for the logger.
type Config struct {
	Level  string
	Format string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: JSONFormat,
	}
}

// ZapLogger implements types.Logger on top of a zap.SugaredLogger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a ZapLogger writing to stdout.
func New(cfg Config) (*ZapLogger, error) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a ZapLogger writing to w.
func NewWithWriter(cfg Config, w io.Writer) (*ZapLogger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder

	switch strings.ToLower(cfg.Format) {
	case JSONFormat, "":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case TextFormat:
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q, expected %q or %q", cfg.Format, JSONFormat, TextFormat)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &ZapLogger{sugar: logger.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	return &ZapLogger{sugar: zap.NewNop().Sugar()}
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *ZapLogger) WithField(key string, value any) types.Logger {
	return &ZapLogger{sugar: l.sugar.With(key, value)}
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *ZapLogger) WithFields(fields map[string]any) types.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	return &ZapLogger{sugar: l.sugar.With(args...)}
}

func (l *ZapLogger) Debug(msg string)                  { l.sugar.Debug(msg) }
func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Info(msg string)                   { l.sugar.Info(msg) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warn(msg string)                   { l.sugar.Warn(msg) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Error(msg string)                  { l.sugar.Error(msg) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *ZapLogger) Fatal(msg string)                  { l.sugar.Fatal(msg) }
func (l *ZapLogger) Fatalf(format string, args ...any) { l.sugar.Fatalf(format, args...) }

// Sync flushes any buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
