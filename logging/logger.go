// Package logging provides the zap-based structured logger used across the
// inpainting backend, plus helpers for logging per-cycle metrics.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnv overrides the level chosen from the development flag.
const LogLevelEnv = "INPAINT_LOG_LEVEL"

// Logger wraps zap.Logger with a sugared twin and remembers how it was
// built.
//
// This organism composes:
//   - FileWriter molecule (rotating log file via lumberjack)
//   - MultiCore molecule (console and file tee)
//   - ParseLogLevel atom (INPAINT_LOG_LEVEL override)
//
// Example:
//
//	logger, err := NewLogger(true, "inpaint.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("session started", zap.String("mode", "stroke"))
//	logger.Infow("inpaint complete", "run_id", id, "known_pixels", n)
type Logger struct {
	zap           *zap.Logger
	sugar         *zap.SugaredLogger
	isDevelopment bool
	logFilePath   string
}

// NewLogger creates a Logger writing to the console and, when logFilePath
// is not empty, to a rotated JSON log file.
//
// Development mode logs at debug level with a colored console encoder;
// production logs JSON at info level. INPAINT_LOG_LEVEL overrides either.
func NewLogger(isDevelopment bool, logFilePath string) (*Logger, error) {
	return NewLoggerWithConfig(isDevelopment, logFilePath, DefaultFileWriterConfig())
}

// NewLoggerWithConfig is NewLogger with explicit rotation settings.
func NewLoggerWithConfig(isDevelopment bool, logFilePath string, fileConfig FileWriterConfig) (*Logger, error) {
	level := zapcore.InfoLevel
	if isDevelopment {
		level = zapcore.DebugLevel
	}
	level = ParseLogLevel(LogLevelEnv, level)

	var core zapcore.Core
	if logFilePath == "" {
		core = NewConsoleCore(level, zapcore.Lock(os.Stdout), isDevelopment)
	} else {
		fileWriter, err := NewFileWriterWithConfig(logFilePath, fileConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create log core: %w", err)
		}
		core = NewMultiCoreWithWriters(level, zapcore.Lock(os.Stdout), fileWriter, isDevelopment)
	}

	return newLogger(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), isDevelopment, logFilePath), nil
}

// NewLoggerFromCore wraps an existing core. Tests use it with
// zaptest/observer.
func NewLoggerFromCore(core zapcore.Core) *Logger {
	return newLogger(zap.New(core), false, "")
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return newLogger(zap.NewNop(), false, "")
}

func newLogger(z *zap.Logger, isDevelopment bool, logFilePath string) *Logger {
	return &Logger{
		zap:           z,
		sugar:         z.Sugar(),
		isDevelopment: isDevelopment,
		logFilePath:   logFilePath,
	}
}

// Sync flushes buffered entries. Call it before exiting.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs at DebugLevel.
func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }

// Info logs at InfoLevel.
func (l *Logger) Info(msg string, fields ...zap.Field) { l.zap.Info(msg, fields...) }

// Warn logs at WarnLevel.
func (l *Logger) Warn(msg string, fields ...zap.Field) { l.zap.Warn(msg, fields...) }

// Error logs at ErrorLevel.
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

// Fatal logs at FatalLevel and exits the process.
func (l *Logger) Fatal(msg string, fields ...zap.Field) { l.zap.Fatal(msg, fields...) }

// Debugw logs at DebugLevel with loosely typed key-value pairs.
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Infow logs at InfoLevel with loosely typed key-value pairs.
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warnw logs at WarnLevel with loosely typed key-value pairs.
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Errorw logs at ErrorLevel with loosely typed key-value pairs.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Debugf logs a formatted message at DebugLevel.
func (l *Logger) Debugf(template string, args ...interface{}) { l.sugar.Debugf(template, args...) }

// Infof logs a formatted message at InfoLevel.
func (l *Logger) Infof(template string, args ...interface{}) { l.sugar.Infof(template, args...) }

// Warnf logs a formatted message at WarnLevel.
func (l *Logger) Warnf(template string, args ...interface{}) { l.sugar.Warnf(template, args...) }

// Errorf logs a formatted message at ErrorLevel.
func (l *Logger) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }

// With returns a child logger that adds fields to every entry.
//
// Example:
//
//	runLogger := logger.With(zap.String("run_id", id))
//	runLogger.Info("mask generated")
func (l *Logger) With(fields ...zap.Field) *Logger {
	return newLogger(l.zap.With(fields...), l.isDevelopment, l.logFilePath)
}

// Named adds a sub-logger name, e.g. "http" or "session".
func (l *Logger) Named(name string) *Logger {
	return newLogger(l.zap.Named(name), l.isDevelopment, l.logFilePath)
}

// Sugar returns the underlying sugared logger.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.sugar }

// Zap returns the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger { return l.zap }

// IsDevelopment reports whether the logger was built for development.
func (l *Logger) IsDevelopment() bool { return l.isDevelopment }

// LogFilePath returns the log file path, empty for console-only loggers.
func (l *Logger) LogFilePath() string { return l.logFilePath }
