package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"inpaint_backend/mask"
)

// ConfigFileEnv names an optional YAML file applied over the environment.
const ConfigFileEnv = "INPAINT_CONFIG_FILE"

// Config holds all settings of the inpainting backend.
type Config struct {
	// Source image selection
	ImageIndex   int    `yaml:"image_index"`
	ImageDir     string `yaml:"image_dir"`
	ImagePattern string `yaml:"image_pattern"`
	ImagePath    string `yaml:"image_path"` // overrides dir/pattern/index when set

	// Mask strategy
	SuperResolution bool    `yaml:"super_resolution"`
	SRRate          int     `yaml:"sr_rate"`
	StrokeWidth     float64 `yaml:"stroke_width"`
	StrokeBound     int     `yaml:"stroke_bound"` // 0 follows the image side

	// Model bundles, one per mode
	ModelDir string `yaml:"model_dir"`
	SRModel  string `yaml:"sr_model"`
	IRRModel string `yaml:"irr_model"`

	// Outputs
	OutputPath     string `yaml:"output_path"`
	MaskPath       string `yaml:"mask_path"`       // empty disables the mask dump
	DownsamplePath string `yaml:"downsample_path"` // empty disables the grid-mode source dump

	// Run history
	DBPath string `yaml:"db_path"`

	// HTTP surface
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	WebPassword    string `yaml:"web_password"` // empty disables authentication

	// Logging
	DevMode bool   `yaml:"dev_mode"`
	LogFile string `yaml:"log_file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ImageIndex:     1,
		ImageDir:       "val_256",
		ImagePattern:   "Places365_val_%08d.jpg",
		SRRate:         2,
		StrokeWidth:    mask.DefaultStrokeWidth,
		StrokeBound:    mask.LegacyCanvasBound,
		ModelDir:       "model",
		SRModel:        "sr_model_e0_i500.safetensors",
		IRRModel:       "irr_model_e0_i500.safetensors",
		OutputPath:     "test.png",
		DownsamplePath: "downsample.png",
		DBPath:         "inpaint.db",
		Host:           "localhost",
		Port:           3000,
		TimeoutSeconds: 120,
		LogFile:        "inpaint.log",
	}
}

// LoadConfig reads INPAINT_* environment variables over the defaults, then
// applies the YAML file named by INPAINT_CONFIG_FILE if set. It does not
// validate; call Validate after applying command-line overrides.
func LoadConfig() (*Config, error) {
	d := DefaultConfig()
	cfg := &Config{
		ImageIndex:      ParseIntEnv("INPAINT_IMAGE_INDEX", d.ImageIndex),
		ImageDir:        GetEnvOrDefault("INPAINT_IMAGE_DIR", d.ImageDir),
		ImagePattern:    GetEnvOrDefault("INPAINT_IMAGE_PATTERN", d.ImagePattern),
		ImagePath:       os.Getenv("INPAINT_IMAGE_PATH"),
		SuperResolution: ParseBoolEnv("INPAINT_SUPER_RESOLUTION", d.SuperResolution),
		SRRate:          ParseIntEnv("INPAINT_SR_RATE", d.SRRate),
		StrokeWidth:     ParseFloat64Env("INPAINT_STROKE_WIDTH", d.StrokeWidth),
		StrokeBound:     ParseIntEnv("INPAINT_STROKE_BOUND", d.StrokeBound),
		ModelDir:        GetEnvOrDefault("INPAINT_MODEL_DIR", d.ModelDir),
		SRModel:         GetEnvOrDefault("INPAINT_SR_MODEL", d.SRModel),
		IRRModel:        GetEnvOrDefault("INPAINT_IRR_MODEL", d.IRRModel),
		OutputPath:      GetEnvOrDefault("INPAINT_OUTPUT_PATH", d.OutputPath),
		MaskPath:        os.Getenv("INPAINT_MASK_PATH"),
		DownsamplePath:  GetEnvOrDefault("INPAINT_DOWNSAMPLE_PATH", d.DownsamplePath),
		DBPath:          GetEnvOrDefault("INPAINT_DB_PATH", d.DBPath),
		Host:            GetEnvOrDefault("INPAINT_HOST", d.Host),
		Port:            ParseIntEnv("INPAINT_PORT", d.Port),
		TimeoutSeconds:  ParseIntEnv("INPAINT_TIMEOUT_SECONDS", d.TimeoutSeconds),
		WebPassword:     os.Getenv("INPAINT_WEB_PASSWORD"),
		DevMode:         ParseBoolEnv("DEV_MODE", d.DevMode),
		LogFile:         GetEnvOrDefault("INPAINT_LOG_FILE", d.LogFile),
	}

	if path, ok := lookupEnv(ConfigFileEnv); ok {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ApplyFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrConfigFile(path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document decodes to io.EOF and leaves c untouched.
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return ErrConfigFile(path, err)
	}
	return nil
}

// Validate checks every setting and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	if c.SRRate < 1 {
		return ErrInvalidRate(c.SRRate)
	}
	if c.ImagePath == "" {
		if c.ImageIndex < 0 {
			return ErrInvalidValue("INPAINT_IMAGE_INDEX", c.ImageIndex, "a non-negative integer")
		}
		if !strings.Contains(c.ImagePattern, "%") {
			return ErrInvalidValue("INPAINT_IMAGE_PATTERN", c.ImagePattern, "a pattern with an integer verb such as %08d")
		}
	}
	if c.StrokeWidth <= 0 {
		return ErrInvalidValue("INPAINT_STROKE_WIDTH", c.StrokeWidth, "a positive number of pixels")
	}
	if c.StrokeBound < 0 {
		return ErrInvalidValue("INPAINT_STROKE_BOUND", c.StrokeBound, "0 (image side) or a positive pixel row")
	}
	if c.OutputPath == "" {
		return ErrInvalidValue("INPAINT_OUTPUT_PATH", `""`, "a file path")
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidValue("INPAINT_PORT", c.Port, "a port between 1 and 65535")
	}
	if c.TimeoutSeconds < 1 {
		return ErrInvalidValue("INPAINT_TIMEOUT_SECONDS", c.TimeoutSeconds, "a positive number of seconds")
	}
	return nil
}

// SourceImagePath returns ImagePath when set, otherwise the indexed file in
// ImageDir.
func (c *Config) SourceImagePath() string {
	if c.ImagePath != "" {
		return c.ImagePath
	}
	return filepath.Join(c.ImageDir, fmt.Sprintf(c.ImagePattern, c.ImageIndex))
}

// Mode returns the mask strategy selected by SuperResolution.
func (c *Config) Mode() mask.Mode {
	if c.SuperResolution {
		return mask.ModeGrid
	}
	return mask.ModeStroke
}

// ModelPath returns the bundle for the selected mode.
func (c *Config) ModelPath() string {
	if c.SuperResolution {
		return filepath.Join(c.ModelDir, c.SRModel)
	}
	return filepath.Join(c.ModelDir, c.IRRModel)
}

// MaskConfig returns the mask generator settings for a side x side image.
func (c *Config) MaskConfig(side int) mask.Config {
	bound := float64(c.StrokeBound)
	if c.StrokeBound == 0 {
		bound = mask.BoundToImage
	}
	return mask.Config{
		Mode:        c.Mode(),
		Side:        side,
		Rate:        c.SRRate,
		StrokeWidth: c.StrokeWidth,
		StrokeBound: bound,
	}
}

// InferenceTimeout bounds how long a request waits for the model.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
