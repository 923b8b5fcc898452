package pconv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCalculateChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	sum, err := CalculateChecksum(path)
	if err != nil {
		t.Fatalf("CalculateChecksum() error: %v", err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if sum != want {
		t.Errorf("CalculateChecksum() = %s, want %s", sum, want)
	}
}

func TestVerifyBundleChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "verify-test.safetensors")
	if err := WriteBundle(path, mustDefaultBundle(t)); err != nil {
		t.Fatalf("WriteBundle() error: %v", err)
	}

	// Unregistered bundles pass.
	if err := VerifyBundleChecksum(path); err != nil {
		t.Errorf("VerifyBundleChecksum() unregistered error: %v", err)
	}

	sum, err := CalculateChecksum(path)
	if err != nil {
		t.Fatal(err)
	}
	RegisterChecksum("verify-test.safetensors", sum)
	if err := VerifyBundleChecksum(path); err != nil {
		t.Errorf("VerifyBundleChecksum() matching error: %v", err)
	}

	RegisterChecksum("verify-test.safetensors", "deadbeef")
	if err := VerifyBundleChecksum(path); !errors.Is(err, ErrBundleCorrupted) {
		t.Errorf("VerifyBundleChecksum() mismatch error = %v, want ErrBundleCorrupted", err)
	}

	if err := VerifyBundleChecksum(filepath.Join(dir, "missing")); !IsModelNotFound(err) {
		t.Errorf("VerifyBundleChecksum() missing error = %v", err)
	}
}
