package vision

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestWritePNG_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	if err := WritePNG(path, createTestImage(4, 4)); err != nil {
		t.Fatalf("WritePNG() first write: %v", err)
	}
	if err := WritePNG(path, createTestImage(6, 6)); err != nil {
		t.Fatalf("WritePNG() second write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if img.Bounds().Dx() != 6 {
		t.Errorf("output width = %d, want 6 (second write)", img.Bounds().Dx())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the output file", len(entries))
	}
}

func TestWritePNG_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "out.png")
	if err := WritePNG(path, createTestImage(2, 2)); err == nil {
		t.Error("WritePNG() expected error for a missing directory")
	}
}
