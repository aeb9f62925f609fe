package gguf

import (
	"fmt"
	"math"
	"math/bits"
)

// TensorType is the data type or quantization format of a tensor in a GGUF
// file. The reader does not decode quantized blocks, but it knows every
// recognized type's block geometry so it can size and locate payloads.
type TensorType uint32

const (
	TensorTypeF32  TensorType = 0
	TensorTypeF16  TensorType = 1
	TensorTypeQ4_0 TensorType = 2
	TensorTypeQ4_1 TensorType = 3
	// 4, 5 were Q4_2/Q4_3, removed from the format.
	TensorTypeQ5_0 TensorType = 6
	TensorTypeQ5_1 TensorType = 7
	TensorTypeQ8_0 TensorType = 8
	TensorTypeQ8_1 TensorType = 9
	TensorTypeQ2_K TensorType = 10
	TensorTypeQ3_K TensorType = 11
	TensorTypeQ4_K TensorType = 12
	TensorTypeQ5_K TensorType = 13
	TensorTypeQ6_K TensorType = 14
	TensorTypeQ8_K TensorType = 15
)

// tensorTypeTraits fixes each recognized type's name, elements per block and
// bytes per block. The byte counts follow from the ggml block layouts: an f16
// scale (plus an f16 min for the _1 variants), optional high-bit planes, then
// the packed quantized elements.
type tensorTypeTraits struct {
	name      string
	blockSize int
	typeSize  int
}

var tensorTypes = map[TensorType]tensorTypeTraits{
	TensorTypeF32:  {"F32", 1, 4},
	TensorTypeF16:  {"F16", 1, 2},
	TensorTypeQ4_0: {"Q4_0", 32, 2 + 32/2},         // f16 d + 16 bytes of nibbles = 18
	TensorTypeQ4_1: {"Q4_1", 32, 2 + 2 + 32/2},     // f16 d + f16 m + 16 bytes = 20
	TensorTypeQ5_0: {"Q5_0", 32, 2 + 4 + 32/2},     // f16 d + 4 bytes high bits + 16 bytes = 22
	TensorTypeQ5_1: {"Q5_1", 32, 2 + 2 + 4 + 32/2}, // f16 d + f16 m + high bits + 16 bytes = 24
	TensorTypeQ8_0: {"Q8_0", 32, 2 + 32},           // f16 d + 32 int8 = 34
	TensorTypeQ8_1: {"Q8_1", 32, 2 + 2 + 32},       // f16 d + f16 s + 32 int8 = 36
	TensorTypeQ2_K: {"Q2_K", 256, 256/16 + 256/4 + 2 + 2},       // 84
	TensorTypeQ3_K: {"Q3_K", 256, 256/8 + 256/4 + 12 + 2},       // 110
	TensorTypeQ4_K: {"Q4_K", 256, 2 + 2 + 12 + 256/2},           // 144
	TensorTypeQ5_K: {"Q5_K", 256, 2 + 2 + 12 + 256/8 + 256/2},   // 176
	TensorTypeQ6_K: {"Q6_K", 256, 256/2 + 256/4 + 256/16 + 2},   // 210
	TensorTypeQ8_K: {"Q8_K", 256, 4 + 256 + 256/16*2},           // 292
}

// Valid reports whether t is one of the recognized tensor types.
func (t TensorType) Valid() bool {
	_, ok := tensorTypes[t]
	return ok
}

// String returns a human-readable name for the tensor type.
func (t TensorType) String() string {
	traits, ok := tensorTypes[t]
	if !ok {
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
	return traits.name
}

// BlockSize returns the number of elements per quantization block: 1 for
// native float types, 32 for the legacy quants, 256 for K-quants. Returns 0
// for unrecognized types.
func (t TensorType) BlockSize() int {
	return tensorTypes[t].blockSize
}

// TypeSize returns the number of bytes per quantization block. For native
// types with block size 1, this is the element size in bytes. Returns 0 for
// unrecognized types.
func (t TensorType) TypeSize() int {
	return tensorTypes[t].typeSize
}

// IsQuantized returns true if the tensor type packs multiple elements into
// shared-scale blocks.
func (t TensorType) IsQuantized() bool {
	return tensorTypes[t].blockSize > 1
}

// TensorInfo holds the parsed descriptor of a single tensor in a GGUF file.
type TensorInfo struct {
	Name string
	// Shape holds the dimensions in GGUF native order (innermost first).
	Shape []uint64
	Type  TensorType
	// Offset is the byte offset relative to the start of the tensor data
	// section, as stated on the wire.
	Offset uint64
	// Size is the computed payload size in bytes.
	Size int64
	// AbsoluteOffset is the byte offset of the payload within the file:
	// the aligned data section origin plus Offset.
	AbsoluteOffset int64
}

// NumElements returns the total number of elements in the tensor.
// Open rejects shapes whose product does not fit in 64 bits, so the
// multiplication cannot wrap for a parsed TensorInfo.
func (ti *TensorInfo) NumElements() uint64 {
	n := uint64(1)
	for _, d := range ti.Shape {
		n *= d
	}
	return n
}

// checkedNumElements multiplies out the dimensions, rejecting products that
// wrap 64 bits. A descriptor whose element count overflows cannot possibly
// fit the file, so it is treated like any other implausible length.
func checkedNumElements(shape []uint64) (uint64, error) {
	n := uint64(1)
	for _, d := range shape {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, fmt.Errorf("element count of shape %v overflows 64 bits: %w", shape, ErrLengthExceedsFile)
		}
		n = lo
	}
	return n, nil
}

// payloadSize computes the on-disk byte size for count elements of type t.
// Quantized types require count to be a whole number of blocks. Sizes beyond
// the int64 range are rejected.
func payloadSize(t TensorType, count uint64) (int64, error) {
	blockSize := uint64(t.BlockSize())
	if count%blockSize != 0 {
		return 0, fmt.Errorf("%d elements with block size %d: %w", count, blockSize, ErrUnalignedTensorExtent)
	}
	hi, size := bits.Mul64(count/blockSize, uint64(t.TypeSize()))
	if hi != 0 || size > math.MaxInt64 {
		return 0, fmt.Errorf("byte size of %d elements of %s overflows: %w", count, t, ErrLengthExceedsFile)
	}
	return int64(size), nil
}
