package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"inpaint_backend/tensor"
)

// Image preprocessing errors
var (
	ErrInvalidImage      = errors.New("vision: invalid image data")
	ErrUnsupportedFormat = errors.New("vision: unsupported image format")
	ErrInvalidDimensions = errors.New("vision: invalid dimensions")
	ErrEmptyImage        = errors.New("vision: empty image data")
	ErrNotSquare         = errors.New("vision: image is not square")
)

// Channels is the number of color channels in an image tensor.
const Channels = 3

var supportedMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

// DecodeImage sniffs the content type and decodes PNG, JPEG, GIF, BMP, TIFF
// or WebP data.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	mimeType := strings.Split(mimetype.Detect(data).String(), ";")[0]
	if !supportedMIME[mimeType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return img, nil
}

// LoadImage reads and decodes the image at path.
func LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// SquareSide returns the side length of a square image, or ErrNotSquare.
func SquareSide(img image.Image) (int, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, b.Dx(), b.Dy())
	}
	if b.Dx() != b.Dy() {
		return 0, fmt.Errorf("%w: %dx%d", ErrNotSquare, b.Dx(), b.Dy())
	}
	return b.Dx(), nil
}

// ConvertToRGB converts any image to RGBA with its origin at (0, 0).
func ConvertToRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()

	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) {
		return rgba
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// ToTensor converts an 8-bit image to a (3, H, W) tensor in [0, 1].
// Alpha is discarded.
func ToTensor(img image.Image) *tensor.Tensor {
	rgb := ConvertToRGB(img)
	w, h := rgb.Bounds().Dx(), rgb.Bounds().Dy()
	plane := w * h
	out := tensor.Zeros(tensor.Shape{Channels, h, w})
	data := out.Data()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := rgb.PixOffset(x, y)
			p := y*w + x
			data[p] = float32(rgb.Pix[i]) / 255
			data[plane+p] = float32(rgb.Pix[i+1]) / 255
			data[2*plane+p] = float32(rgb.Pix[i+2]) / 255
		}
	}
	return out
}

// ToImage converts a (3, H, W) pixel-space tensor to an opaque RGBA image.
// Values are clamped to [0, 1] and rounded to the nearest 8-bit level.
func ToImage(t *tensor.Tensor) (*image.RGBA, error) {
	shape := t.Shape()
	if len(shape) != 3 || shape[0] != Channels {
		return nil, fmt.Errorf("%w: want (3, H, W), got %v", ErrInvalidDimensions, shape)
	}
	h, w := shape[1], shape[2]
	plane := w * h
	data := t.Data()
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := y*w + x
			img.SetRGBA(x, y, color.RGBA{
				R: quantize(data[p]),
				G: quantize(data[plane+p]),
				B: quantize(data[2*plane+p]),
				A: 255,
			})
		}
	}
	return img, nil
}

// quantize maps [0, 1] to [0, 255] the way torchvision's save_image does.
func quantize(v float32) uint8 {
	s := v*255 + 0.5
	if s <= 0 {
		return 0
	}
	if s >= 255 {
		return 255
	}
	return uint8(s)
}

// Subsample keeps every rate-th pixel in both directions and scales the
// result back to the original size with a Catmull-Rom kernel. This gives
// the low-resolution source used in super-resolution mode.
func Subsample(img image.Image, rate int) (*image.RGBA, error) {
	if rate < 1 {
		return nil, fmt.Errorf("%w: subsample rate %d", ErrInvalidDimensions, rate)
	}
	src := ConvertToRGB(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty %dx%d image", ErrInvalidDimensions, w, h)
	}
	// A rate past the image side still keeps the origin sample.
	dw, dh := max(w/rate, 1), max(h/rate, 1)

	down := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			down.SetRGBA(x, y, src.RGBAAt(x*rate, y*rate))
		}
	}

	up := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(up, up.Bounds(), down, down.Bounds(), draw.Src, nil)
	return up, nil
}
