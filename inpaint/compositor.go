package inpaint

import (
	"errors"
	"fmt"

	"inpaint_backend/tensor"
)

// ErrInvalidMask is returned when a mask entry is outside [0, 1].
var ErrInvalidMask = errors.New("inpaint: mask values must be in [0, 1]")

// Composite returns mask*original + (1-mask)*prediction.
//
// Where mask is exactly 1 the original value is copied, and where it is
// exactly 0 the prediction is copied, so known pixels survive bit for bit
// and non-finite predictions never leak into them. Fractional entries are
// blended.
func Composite(original, mask, prediction *tensor.Tensor) (*tensor.Tensor, error) {
	if err := tensor.SameShape(original, mask); err != nil {
		return nil, fmt.Errorf("composite mask: %w", err)
	}
	if err := tensor.SameShape(original, prediction); err != nil {
		return nil, fmt.Errorf("composite prediction: %w", err)
	}

	out := tensor.Zeros(original.Shape())
	dst := out.Data()
	src, m, pred := original.Data(), mask.Data(), prediction.Data()

	for i, k := range m {
		switch {
		case k == 1:
			dst[i] = src[i]
		case k == 0:
			dst[i] = pred[i]
		case k > 0 && k < 1:
			dst[i] = k*src[i] + (1-k)*pred[i]
		default:
			return nil, fmt.Errorf("%w: got %v at %d", ErrInvalidMask, k, i)
		}
	}
	return out, nil
}
