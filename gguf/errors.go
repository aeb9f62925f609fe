package gguf

import "errors"

// Error kinds returned by the decoder. Every failure returned from Open or
// from a tensor load wraps exactly one of these, so callers can match with
// errors.Is while the wrapping message carries the offending value (code,
// name, offset).
var (
	// ErrBadMagic means the file does not start with the "GGUF" magic bytes.
	ErrBadMagic = errors.New("bad magic")

	// ErrUnsupportedVersion means the file declares a GGUF version other
	// than 3. Versions 1 and 2 use incompatible layouts and are rejected.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrTruncated means the file ended before a declared field or payload.
	ErrTruncated = errors.New("truncated file")

	// ErrLengthExceedsFile means a length prefix (string or array) is larger
	// than the number of bytes remaining in the file.
	ErrLengthExceedsFile = errors.New("length exceeds file size")

	// ErrInvalidUTF8 means a string field holds bytes that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8 in string")

	// ErrUnknownValueType means a metadata value carries a type tag outside
	// the GGUF value grammar.
	ErrUnknownValueType = errors.New("unknown metadata value type")

	// ErrArrayTooDeep means metadata arrays nest beyond the supported depth.
	ErrArrayTooDeep = errors.New("metadata array nesting too deep")

	// ErrUnknownQuantType means a tensor declares a quantization code the
	// reader has no block geometry for.
	ErrUnknownQuantType = errors.New("unknown tensor quantization type")

	// ErrBadDimensionCount means a tensor declares fewer than 1 or more than
	// 4 dimensions.
	ErrBadDimensionCount = errors.New("bad tensor dimension count")

	// ErrZeroDimension means a tensor declares a dimension of extent 0.
	ErrZeroDimension = errors.New("zero tensor dimension")

	// ErrUnalignedTensorExtent means a quantized tensor's element count is
	// not a multiple of its quantization block size.
	ErrUnalignedTensorExtent = errors.New("tensor extent not a multiple of block size")

	// ErrEmptyTensorName means a tensor info record has an empty name.
	ErrEmptyTensorName = errors.New("empty tensor name")

	// ErrDuplicateTensorName means two tensor info records share a name.
	ErrDuplicateTensorName = errors.New("duplicate tensor name")

	// ErrBadAlignment means the general.alignment metadata key is present
	// but not a positive power of two.
	ErrBadAlignment = errors.New("alignment is not a positive power of two")

	// ErrTensorNotFound means a load was requested for a name the tensor
	// table does not contain.
	ErrTensorNotFound = errors.New("tensor not found")
)
