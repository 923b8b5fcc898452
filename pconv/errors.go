package pconv

import "errors"

// Sentinel errors for model loading and inference.
var (
	// Bundle errors
	ErrModelNotFound       = errors.New("pconv: model bundle not found")
	ErrBundleCorrupted     = errors.New("pconv: model bundle is corrupted or invalid")
	ErrBundleMismatch      = errors.New("pconv: bundle does not match model architecture")
	ErrUnsupportedDType    = errors.New("pconv: unsupported tensor dtype")
	ErrUnknownArchitecture = errors.New("pconv: unknown model architecture")

	// Inference errors
	ErrShapeMismatch   = errors.New("pconv: input shape does not match model")
	ErrInferenceFailed = errors.New("pconv: inference failed")

	// Runner errors
	ErrInvalidParams  = errors.New("pconv: invalid parameters")
	ErrRunnerClosed   = errors.New("pconv: runner is closed")
	ErrAcquireTimeout = errors.New("pconv: timeout waiting for the model")
)

// IsFatal reports whether err is structural (bad bundle or shape) rather than
// a cancellation or shutdown.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBundleMismatch) ||
		errors.Is(err, ErrBundleCorrupted) ||
		errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrShapeMismatch)
}
