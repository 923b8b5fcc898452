package logging

import (
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ParseLogLevel reads a level name from envVarName, falling back to
// defaultLevel when the variable is unset or not a level.
//
// Example:
//
//	level := ParseLogLevel("INPAINT_LOG_LEVEL", zapcore.InfoLevel)
func ParseLogLevel(envVarName string, defaultLevel zapcore.Level) zapcore.Level {
	value, ok := os.LookupEnv(envVarName)
	if !ok {
		return defaultLevel
	}
	return ParseLogLevelString(value, defaultLevel)
}

// ParseLogLevelString parses debug, info, warn (or warning), error or fatal,
// case-insensitively.
func ParseLogLevelString(levelStr string, defaultLevel zapcore.Level) zapcore.Level {
	s := strings.ToLower(strings.TrimSpace(levelStr))
	if s == "warning" {
		s = "warn"
	}
	switch s {
	case "debug", "info", "warn", "error", "fatal":
		level, err := zapcore.ParseLevel(s)
		if err != nil {
			return defaultLevel
		}
		return level
	default:
		return defaultLevel
	}
}
