package pconv

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// bundleChecksums maps bundle file names to their expected SHA256 checksums.
// Bundles without an entry are not checked.
var (
	checksumMu      sync.RWMutex
	bundleChecksums = map[string]string{}
)

// VerifyBundleChecksum validates a bundle file against its registered
// checksum.
//
// Returns:
//   - nil if the checksum matches or none is registered
//   - ErrModelNotFound if the file doesn't exist
//   - ErrBundleCorrupted on checksum mismatch
func VerifyBundleChecksum(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return fmt.Errorf("failed to access bundle: %w", err)
	}

	expected, ok := ExpectedChecksum(filepath.Base(path))
	if !ok {
		return nil
	}

	actual, err := CalculateChecksum(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrBundleCorrupted, expected, actual)
	}
	return nil
}

// CalculateChecksum returns the lowercase hex SHA256 of a file, streaming
// its content.
func CalculateChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ExpectedChecksum returns the registered checksum for a bundle file name.
func ExpectedChecksum(name string) (string, bool) {
	checksumMu.RLock()
	defer checksumMu.RUnlock()
	sum, ok := bundleChecksums[name]
	return sum, ok
}

// RegisterChecksum adds or replaces the checksum for a bundle file name.
func RegisterChecksum(name, checksum string) {
	checksumMu.Lock()
	defer checksumMu.Unlock()
	bundleChecksums[name] = checksum
}

// IsModelNotFound reports whether err is a missing bundle.
func IsModelNotFound(err error) bool {
	return errors.Is(err, ErrModelNotFound)
}
