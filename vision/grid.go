package vision

import (
	"fmt"

	"inpaint_backend/tensor"
)

// Grid layout defaults, matching torchvision.utils.make_grid.
const (
	DefaultGridRow     = 8
	DefaultGridPadding = 2
)

// MakeGrid tiles (3, H, W) images into a single (3, H', W') tensor with up to
// nrow images per row, padding pixels between them filled with padValue.
// A single image is returned unchanged.
func MakeGrid(images []*tensor.Tensor, nrow, padding int, padValue float32) (*tensor.Tensor, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no images for grid", ErrInvalidDimensions)
	}
	if nrow < 1 || padding < 0 {
		return nil, fmt.Errorf("%w: nrow=%d padding=%d", ErrInvalidDimensions, nrow, padding)
	}

	first := images[0].Shape()
	if len(first) != 3 || first[0] != Channels {
		return nil, fmt.Errorf("%w: want (3, H, W), got %v", ErrInvalidDimensions, first)
	}
	for i, img := range images[1:] {
		if !img.Shape().Equal(first) {
			return nil, fmt.Errorf("%w: image %d has shape %v, want %v",
				tensor.ErrShapeMismatch, i+1, img.Shape(), first)
		}
	}

	if len(images) == 1 {
		return images[0].Clone(), nil
	}

	h, w := first[1], first[2]
	xmaps := min(nrow, len(images))
	ymaps := (len(images) + xmaps - 1) / xmaps
	cellH, cellW := h+padding, w+padding
	gridH, gridW := cellH*ymaps+padding, cellW*xmaps+padding

	grid := tensor.Full(tensor.Shape{Channels, gridH, gridW}, padValue)
	dst := grid.Data()

	for k, img := range images {
		row, col := k/xmaps, k%xmaps
		top, left := row*cellH+padding, col*cellW+padding
		src := img.Data()
		for c := 0; c < Channels; c++ {
			for y := 0; y < h; y++ {
				srcOff := c*h*w + y*w
				dstOff := c*gridH*gridW + (top+y)*gridW + left
				copy(dst[dstOff:dstOff+w], src[srcOff:srcOff+w])
			}
		}
	}
	return grid, nil
}
