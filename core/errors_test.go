package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigError_Error(t *testing.T) {
	withAction := &ConfigError{Code: "X", Message: "Broken", Action: "Fix it"}
	if got := withAction.Error(); got != "Broken. Fix it" {
		t.Errorf("Error() = %q", got)
	}
	bare := &ConfigError{Code: "X", Message: "Broken"}
	if got := bare.Error(); got != "Broken" {
		t.Errorf("Error() = %q", got)
	}
}

func TestConfigErrorConstructors(t *testing.T) {
	reason := errors.New("boom")
	tests := []struct {
		name     string
		err      *ConfigError
		code     string
		contains string
	}{
		{"env file", ErrEnvFileMissing(".env"), ErrCodeEnvFileMissing, ".env"},
		{"config file", ErrConfigFile("cfg.yaml", reason), ErrCodeConfigFile, "boom"},
		{"invalid value", ErrInvalidValue("INPAINT_PORT", 0, "a port"), ErrCodeInvalidValue, "INPAINT_PORT"},
		{"invalid rate", ErrInvalidRate(0), ErrCodeInvalidRate, "--sr_rate"},
		{"missing image", ErrMissingImage("a.jpg"), ErrCodeMissingImage, "a.jpg"},
		{"invalid image", ErrInvalidImage("a.jpg", reason), ErrCodeInvalidImage, "square"},
		{"missing model", ErrMissingModel("m.safetensors"), ErrCodeMissingModel, "init-model"},
		{"model mismatch", ErrModelMismatch("m.safetensors", reason), ErrCodeModelMismatch, "boom"},
		{"output", ErrOutputNotWritable("/ro/out.png", reason), ErrCodeOutputNotWritable, "/ro/out.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Action == "" {
				t.Error("Action is empty")
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want it to contain %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

func TestIsConfigError(t *testing.T) {
	wrapped := fmt.Errorf("startup: %w", ErrInvalidRate(-1))
	cfgErr, ok := IsConfigError(wrapped)
	if !ok || cfgErr.Code != ErrCodeInvalidRate {
		t.Fatalf("IsConfigError(wrapped) = %v, %v", cfgErr, ok)
	}
	if _, ok := IsConfigError(errors.New("plain")); ok {
		t.Error("plain error reported as ConfigError")
	}
	if GetErrorCode(wrapped) != ErrCodeInvalidRate {
		t.Errorf("GetErrorCode() = %q", GetErrorCode(wrapped))
	}
	if GetErrorCode(nil) != "" {
		t.Error("GetErrorCode(nil) should be empty")
	}
}
