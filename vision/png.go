package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// PNG errors
var (
	ErrPNGEncode = errors.New("vision: failed to encode PNG")
	ErrPNGWrite  = errors.New("vision: failed to write PNG")
)

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPNGEncode, err)
	}
	return buf.Bytes(), nil
}

// WritePNG encodes img and replaces the file at path. The data is written to
// a temporary file in the same directory first so readers never observe a
// partial image.
func WritePNG(path string, img image.Image) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".inpaint-*.png")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPNGWrite, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPNGWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPNGWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPNGWrite, err)
	}
	return nil
}
