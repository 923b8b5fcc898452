package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"inpaint_backend/core"
	"inpaint_backend/logging"
)

// TempFilePattern matches the temporary files written next to the output
// image before they are renamed into place.
const TempFilePattern = ".inpaint-*"

// CleanupTempFiles returns a shutdown function that removes leftover
// temporary files from dir. Failures are logged, never returned, so cleanup
// cannot block shutdown.
//
// Usage:
//
//	manager.Register("temp-files", 45, shutdown.CleanupTempFiles(logger, filepath.Dir(cfg.OutputPath)))
func CleanupTempFiles(logger *logging.Logger, dir string) core.ShutdownFunc {
	return func(ctx context.Context) error {
		RemoveTempFiles(ctx, logger, dir)
		return nil
	}
}

// RemoveTempFiles deletes files matching TempFilePattern in dir and returns
// how many were removed. It stops early when ctx is done.
func RemoveTempFiles(ctx context.Context, logger *logging.Logger, dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, TempFilePattern))
	if err != nil {
		logger.Warn("Failed to list temp files", zap.String("dir", dir), zap.Error(err))
		return 0
	}

	removed := 0
	for _, path := range matches {
		if ctx.Err() != nil {
			logger.Warn("Shutdown deadline reached, leaving temp files", zap.Int("remaining", len(matches)-removed))
			break
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to remove temp file", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("Removed temp files", zap.String("dir", dir), zap.Int("count", removed))
	}
	return removed
}
