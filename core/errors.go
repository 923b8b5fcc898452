package core

import (
	"errors"
	"fmt"
)

// ConfigError is a configuration problem with a suggested fix.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileMissing    = "ENV_FILE_MISSING"
	ErrCodeConfigFile        = "CONFIG_FILE"
	ErrCodeInvalidValue      = "INVALID_VALUE"
	ErrCodeInvalidRate       = "INVALID_RATE"
	ErrCodeMissingImage      = "MISSING_IMAGE"
	ErrCodeInvalidImage      = "INVALID_IMAGE"
	ErrCodeMissingModel      = "MISSING_MODEL"
	ErrCodeModelMismatch     = "MODEL_MISMATCH"
	ErrCodeOutputNotWritable = "OUTPUT_NOT_WRITABLE"
)

// ErrEnvFileMissing returns an error for a missing .env file.
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env or set INPAINT_* variables in the environment",
	}
}

// ErrConfigFile returns an error for an unreadable or malformed YAML config.
func ErrConfigFile(path string, reason error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFile,
		Message: fmt.Sprintf("Cannot load config file %s: %v", path, reason),
		Action:  "Fix the YAML or unset INPAINT_CONFIG_FILE",
	}
}

// ErrInvalidValue returns an error for an out-of-range setting.
func ErrInvalidValue(varName string, value interface{}, want string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s: %v", varName, value),
		Action:  fmt.Sprintf("Set %s to %s", varName, want),
	}
}

// ErrInvalidRate returns an error for a grid stride below 1.
func ErrInvalidRate(rate int) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidRate,
		Message: fmt.Sprintf("Invalid super-resolution rate: %d", rate),
		Action:  "Set --sr_rate or INPAINT_SR_RATE to a positive integer",
	}
}

// ErrMissingImage returns an error for a source image that cannot be read.
func ErrMissingImage(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingImage,
		Message: fmt.Sprintf("Source image not found: %s", path),
		Action:  "Check --img, INPAINT_IMAGE_DIR and INPAINT_IMAGE_PATTERN",
	}
}

// ErrInvalidImage returns an error for a source image the pipeline cannot use.
func ErrInvalidImage(path string, reason error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidImage,
		Message: fmt.Sprintf("Source image %s is unusable: %v", path, reason),
		Action:  "Use a square 8-bit RGB image",
	}
}

// ErrMissingModel returns an error for a model bundle that does not exist.
func ErrMissingModel(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingModel,
		Message: fmt.Sprintf("Model bundle not found: %s", path),
		Action:  "Run 'inpaint init-model' or set INPAINT_MODEL_DIR",
	}
}

// ErrModelMismatch returns an error for a bundle that does not fit the model.
func ErrModelMismatch(path string, reason error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeModelMismatch,
		Message: fmt.Sprintf("Model bundle %s does not match the model: %v", path, reason),
		Action:  "Regenerate the bundle or point INPAINT_SR_MODEL/INPAINT_IRR_MODEL at a compatible file",
	}
}

// ErrOutputNotWritable returns an error for an output directory the process
// cannot write to.
func ErrOutputNotWritable(path string, reason error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeOutputNotWritable,
		Message: fmt.Sprintf("Cannot write output to %s: %v", path, reason),
		Action:  "Set INPAINT_OUTPUT_PATH to a writable location",
	}
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode returns the ConfigError code in err, or "".
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
