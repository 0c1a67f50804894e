// Package logging provides the process-wide zap logger and helpers for
// request- and user-scoped loggers.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	// helperLogger backs the package-level Debug/Info/... functions and
	// skips their frame when reporting the caller.
	helperLogger *zap.Logger
	globalLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stdout (default), stderr, or a file path
}

// Init builds the global logger. An unknown level falls back to info.
func Init(cfg Config) error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	globalLevel.SetLevel(level)

	out := cfg.OutputPath
	if out == "" {
		out = "stdout"
	}
	sink, _, err := zap.Open(out)
	if err != nil {
		return fmt.Errorf("open log output %s: %w", out, err)
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, globalLevel)
	setGlobal(zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	).With(zap.String("service", "foldergate")))
	return nil
}

func setGlobal(l *zap.Logger) {
	globalLogger = l
	helperLogger = l.WithOptions(zap.AddCallerSkip(1))
}

func newEncoder(format string) zapcore.Encoder {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(enc)
	}
	return zapcore.NewJSONEncoder(enc)
}

// InitNop silences all logging. Used by tests.
func InitNop() {
	setGlobal(zap.NewNop())
}

// Sync flushes any buffered log entries.
func Sync() error {
	if globalLogger == nil {
		return nil
	}
	err := globalLogger.Sync()
	// stdout and stderr cannot be fsynced on most platforms.
	if pe, ok := err.(*os.PathError); ok && (pe.Path == "/dev/stdout" || pe.Path == "/dev/stderr") {
		return nil
	}
	return err
}

// SetLevel changes the global log level at runtime.
func SetLevel(level string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	globalLevel.SetLevel(l)
	return nil
}

// L returns the global logger, building a default one on first use.
func L() *zap.Logger {
	if globalLogger == nil {
		if err := Init(Config{}); err != nil {
			setGlobal(zap.NewExample())
		}
	}
	return globalLogger
}

func helper() *zap.Logger {
	L()
	return helperLogger
}

func Debug(msg string, fields ...zap.Field) { helper().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { helper().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { helper().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { helper().Error(msg, fields...) }

// Fatal logs and exits the process.
func Fatal(msg string, fields ...zap.Field) { helper().Fatal(msg, fields...) }
