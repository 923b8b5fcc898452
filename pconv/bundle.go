package pconv

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"
	"strings"

	"inpaint_backend/tensor"
)

// ModelEntry is the bundle entry that holds every learnable weight.
const ModelEntry = "model"

// MetadataArchitecture is the metadata key naming the model architecture.
const MetadataArchitecture = "architecture"

const (
	metadataKey = "__metadata__"
	dtypeF32    = "F32"
	// maxHeaderSize guards against absurd header lengths in corrupt files.
	maxHeaderSize = 100 << 20
)

// Bundle is a set of named parameter tensors plus string metadata.
type Bundle struct {
	Metadata map[string]string
	Tensors  map[string]*tensor.Tensor
}

// NewBundle returns an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{
		Metadata: make(map[string]string),
		Tensors:  make(map[string]*tensor.Tensor),
	}
}

// SetModelParam stores t under the model entry as "model.<name>".
func (b *Bundle) SetModelParam(name string, t *tensor.Tensor) {
	b.Tensors[ModelEntry+"."+name] = t
}

// ModelParams returns the tensors under the model entry keyed by parameter
// name. A bundle without a model entry fails with ErrBundleMismatch.
func (b *Bundle) ModelParams() (map[string]*tensor.Tensor, error) {
	prefix := ModelEntry + "."
	params := make(map[string]*tensor.Tensor)
	for name, t := range b.Tensors {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			params[rest] = t
		}
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: no %q entry", ErrBundleMismatch, ModelEntry)
	}
	return params, nil
}

type tensorInfo struct {
	DType   string   `json:"dtype"`
	Shape   []int    `json:"shape"`
	Offsets [2]int64 `json:"data_offsets"`
}

// DecodeBundle parses safetensors data. Only F32 tensors are accepted.
func DecodeBundle(data []byte) (*Bundle, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: need at least 8 bytes, got %d", ErrBundleCorrupted, len(data))
	}
	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > maxHeaderSize || headerSize > uint64(len(data)-8) {
		return nil, fmt.Errorf("%w: header size %d exceeds file", ErrBundleCorrupted, headerSize)
	}
	payload := data[8+headerSize:]

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &header); err != nil {
		return nil, fmt.Errorf("%w: parse header: %v", ErrBundleCorrupted, err)
	}

	b := NewBundle()
	for name, raw := range header {
		if name == metadataKey {
			if err := json.Unmarshal(raw, &b.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrBundleCorrupted, err)
			}
			continue
		}

		var info tensorInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrBundleCorrupted, name, err)
		}
		if info.DType != dtypeF32 {
			return nil, fmt.Errorf("%w: tensor %s has dtype %s", ErrUnsupportedDType, name, info.DType)
		}

		begin, end := info.Offsets[0], info.Offsets[1]
		if begin < 0 || end < begin || end > int64(len(payload)) {
			return nil, fmt.Errorf("%w: tensor %s offsets [%d, %d] out of range", ErrBundleCorrupted, name, begin, end)
		}
		shape := tensor.Shape(info.Shape)
		if len(shape) == 0 {
			shape = tensor.Shape{1}
		}
		if err := shape.Validate(); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrBundleCorrupted, name, err)
		}
		count, ok := elementCount(shape, len(payload)/4)
		if !ok || int64(count)*4 != end-begin {
			return nil, fmt.Errorf("%w: tensor %s has %d bytes for shape %v",
				ErrBundleCorrupted, name, end-begin, shape)
		}

		values := make([]float32, count)
		for i := range values {
			off := begin + int64(i)*4
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off : off+4]))
		}
		t, err := tensor.New(shape, values)
		if err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrBundleCorrupted, name, err)
		}
		b.Tensors[name] = t
	}
	return b, nil
}

// EncodeBundle serializes b in the safetensors layout with tensors ordered
// by name.
func EncodeBundle(b *Bundle) ([]byte, error) {
	names := make([]string, 0, len(b.Tensors))
	for name := range b.Tensors {
		if name == metadataKey {
			return nil, fmt.Errorf("%w: reserved tensor name %s", ErrInvalidParams, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(b.Metadata) > 0 {
		header[metadataKey] = b.Metadata
	}
	var offset int64
	for _, name := range names {
		t := b.Tensors[name]
		size := int64(t.Len()) * 4
		header[name] = tensorInfo{
			DType:   dtypeF32,
			Shape:   t.Shape(),
			Offsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	// Pad the header so the data section starts 8-byte aligned.
	if pad := len(headerJSON) % 8; pad != 0 {
		headerJSON = append(headerJSON, []byte(strings.Repeat(" ", 8-pad))...)
	}

	out := make([]byte, 8, 8+len(headerJSON)+int(offset))
	binary.LittleEndian.PutUint64(out, uint64(len(headerJSON)))
	out = append(out, headerJSON...)
	for _, name := range names {
		for _, v := range b.Tensors[name].Data() {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out, nil
}

// LoadBundle reads and decodes the bundle at path.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("read bundle %s: %w", path, err)
	}
	b, err := DecodeBundle(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// WriteBundle encodes b and writes it to path.
func WriteBundle(path string, b *Bundle) error {
	data, err := EncodeBundle(b)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write bundle %s: %w", path, err)
	}
	return nil
}

// elementCount multiplies the dimensions of shape, reporting false as soon
// as a dimension or the running product exceeds limit.
func elementCount(shape tensor.Shape, limit int) (int, bool) {
	n := 1
	for _, d := range shape {
		if d > limit || n > limit/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}
