package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"inpaint_backend/core"
	"inpaint_backend/core/validation"
	"inpaint_backend/db"
	"inpaint_backend/inpaint"
	"inpaint_backend/logging"
	"inpaint_backend/metrics"
	"inpaint_backend/pconv"
	"inpaint_backend/shutdown"
	"inpaint_backend/vision"
)

// Shutdown priorities. Lower runs first.
const (
	priorityServer  = 10
	priorityHistory = 30
	priorityModel   = 35
	priorityDB      = 40
	priorityTemp    = 45
	priorityLogger  = 90
)

// runStartupValidation runs the validation suite and returns the first
// failure.
func runStartupValidation(cfg *core.Config, logger *logging.Logger, envPath string, out io.Writer) error {
	logger.Info("Starting startup validation...")

	result := validation.NewValidationSuite().
		WithOutput(out).
		WithEnvPath(envPath).
		WithShowProgress(true).
		Validate(cfg)

	if !result.Success {
		for _, step := range result.Steps {
			if step.Status == validation.StepFailed {
				logger.Error("Validation step failed",
					zap.String("step", step.Name),
					zap.Error(step.Error))
			}
		}
		return result.GetFirstError()
	}

	logger.Info("Startup validation complete",
		zap.Int("checks_passed", result.PassedSteps),
		zap.Int("warnings", result.Warnings),
		zap.Duration("duration", result.Duration))
	return nil
}

// components is everything a session needs, opened in dependency order.
type components struct {
	cfg      *core.Config
	logger   *logging.Logger
	runner   *pconv.Runner
	session  *inpaint.Session
	database *db.Database
	repo     *db.Repository
	writer   *db.AsyncWriter
	metrics  *metrics.Store
}

// openComponents loads the model and the source image, opens run history
// unless cfg.DBPath is empty, and starts the session.
func openComponents(cfg *core.Config, logger *logging.Logger) (*components, error) {
	c := &components{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewStore(metrics.StoreConfig{Version: core.Version}, time.Now()),
	}

	src, err := vision.LoadImage(cfg.SourceImagePath())
	if err != nil {
		return nil, core.ErrInvalidImage(cfg.SourceImagePath(), err)
	}
	side, err := vision.SquareSide(src)
	if err != nil {
		return nil, core.ErrInvalidImage(cfg.SourceImagePath(), err)
	}

	c.runner, err = pconv.OpenRunner(cfg.ModelPath())
	if err != nil {
		if pconv.IsModelNotFound(err) {
			return nil, core.ErrMissingModel(cfg.ModelPath())
		}
		return nil, core.ErrModelMismatch(cfg.ModelPath(), err)
	}
	logger.Info("Model loaded",
		zap.String("path", cfg.ModelPath()),
		zap.String("architecture", c.runner.Architecture().Name))

	recorders := []inpaint.RunRecorder{c.metrics}
	if cfg.DBPath != "" {
		if err := c.openHistory(); err != nil {
			c.Close()
			return nil, err
		}
		recorders = append(recorders, c.repo)
	}

	c.session, err = inpaint.NewSession(src, c.runner, inpaint.Options{
		Mask:           cfg.MaskConfig(side),
		OutputPath:     cfg.OutputPath,
		MaskPath:       cfg.MaskPath,
		DownsamplePath: cfg.DownsamplePath,
	}, logger, inpaint.MultiRecorder(recorders...))
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *components) openHistory() error {
	database, err := db.Open(c.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	c.database = database

	handler := db.NewRepository(database, nil).AsyncWriteHandler()
	c.writer = db.NewAsyncWriter(handler, db.DefaultQueueCapacity, func(op db.WriteOperation, err error) {
		c.logger.Warn("Failed to store run", zap.Error(err))
	})
	c.writer.Start()
	c.repo = db.NewRepository(database, c.writer)
	return nil
}

// register hands every resource to the shutdown manager.
func (c *components) register(mgr *shutdown.Manager) {
	if c.writer != nil {
		mgr.Register("history-writer", priorityHistory, func(ctx context.Context) error {
			if !c.writer.Close(db.DefaultDrainTimeout) {
				return fmt.Errorf("%d run history writes still pending", c.writer.Pending())
			}
			return nil
		})
	}
	mgr.Register("model", priorityModel, func(ctx context.Context) error {
		return c.runner.Close()
	})
	if c.database != nil {
		mgr.Register("database", priorityDB, func(ctx context.Context) error {
			return c.database.Close()
		})
	}
	mgr.Register("temp-files", priorityTemp, shutdown.CleanupTempFiles(c.logger, filepath.Dir(c.cfg.OutputPath)))
	mgr.Register("logger", priorityLogger, func(ctx context.Context) error {
		c.logger.Sync()
		return nil
	})
}

// Close releases everything opened so far, in reverse order.
func (c *components) Close() {
	if c.writer != nil {
		c.writer.Close(db.DefaultDrainTimeout)
	}
	if c.runner != nil {
		c.runner.Close()
	}
	if c.database != nil {
		c.database.Close()
	}
}
