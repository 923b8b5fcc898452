package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"inpaint_backend/core"
	"inpaint_backend/pconv"
	"inpaint_backend/vision"
)

// FileExistsError indicates a file does not exist with a descriptive message
type FileExistsError struct {
	Path    string
	Message string
}

func (e *FileExistsError) Error() string {
	return e.Message
}

// CheckFileExists returns nil if path names a regular file, or a
// *FileExistsError describing why it does not.
func CheckFileExists(path string) error {
	if path == "" {
		return &FileExistsError{Path: path, Message: "file path cannot be empty"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileExistsError{Path: path, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return &FileExistsError{Path: path, Message: fmt.Sprintf("error checking file %s: %v", path, err)}
	}
	if info.IsDir() {
		return &FileExistsError{Path: path, Message: fmt.Sprintf("path is a directory, not a file: %s", path)}
	}
	return nil
}

// CheckSourceImage decodes the image at path and returns its side.
func CheckSourceImage(path string) (int, error) {
	if err := CheckFileExists(path); err != nil {
		return 0, core.ErrMissingImage(path)
	}
	img, err := vision.LoadImage(path)
	if err != nil {
		return 0, core.ErrInvalidImage(path, err)
	}
	side, err := vision.SquareSide(img)
	if err != nil {
		return 0, core.ErrInvalidImage(path, err)
	}
	return side, nil
}

// CheckModelBundle verifies the bundle checksum when one is registered, then
// builds the model and, when side is positive, checks the model accepts a
// side x side image.
func CheckModelBundle(path string, side int) (pconv.Architecture, error) {
	if err := pconv.VerifyBundleChecksum(path); err != nil {
		if pconv.IsModelNotFound(err) {
			return pconv.Architecture{}, core.ErrMissingModel(path)
		}
		return pconv.Architecture{}, core.ErrModelMismatch(path, err)
	}

	model, err := pconv.LoadModel(path)
	if err != nil {
		if errors.Is(err, pconv.ErrModelNotFound) {
			return pconv.Architecture{}, core.ErrMissingModel(path)
		}
		return pconv.Architecture{}, core.ErrModelMismatch(path, err)
	}

	arch := model.Architecture()
	if side > 0 && arch.Side != 0 && arch.Side != side {
		return arch, core.ErrModelMismatch(path,
			fmt.Errorf("%w: %s expects side %d, image is %d", pconv.ErrShapeMismatch, arch.Name, arch.Side, side))
	}
	return arch, nil
}

// CheckOutputWritable creates and removes a probe file next to path.
func CheckOutputWritable(path string) error {
	dir := filepath.Dir(path)
	probe, err := os.CreateTemp(dir, ".inpaint-probe-*")
	if err != nil {
		return core.ErrOutputNotWritable(path, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return core.ErrOutputNotWritable(path, err)
	}
	return nil
}
