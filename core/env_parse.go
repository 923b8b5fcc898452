package core

import (
	"os"
	"strconv"
	"strings"
)

// lookupEnv returns the trimmed value of key and whether it is non-empty.
func lookupEnv(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

// GetEnvOrDefault returns the value of key or defaultValue when unset.
func GetEnvOrDefault(key, defaultValue string) string {
	if value, ok := lookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// ParseIntEnv parses key as an int, falling back to defaultValue when unset
// or malformed.
func ParseIntEnv(key string, defaultValue int) int {
	if value, ok := lookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// ParseFloat64Env parses key as a float64.
func ParseFloat64Env(key string, defaultValue float64) float64 {
	if value, ok := lookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// ParseBoolEnv accepts true/1/yes/on and false/0/no/off, case-insensitively.
func ParseBoolEnv(key string, defaultValue bool) bool {
	value, ok := lookupEnv(key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}
