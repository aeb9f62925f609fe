// Package gguf provides a reader for GGUF (GGML Universal Format) model
// files: the typed metadata dictionary, the tensor descriptor table, and
// on-demand access to raw tensor payloads.
//
// Example:
//
//	f, err := gguf.Open("/path/to/model.gguf")
//	if err != nil {
//		panic(err)
//	}
//	defer f.Close()
//	fmt.Printf("architecture=%s tensors=%d\n", f.Architecture(), len(f.TensorInfos))
//	data, err := f.Load("token_embd.weight")
//
// The reader decodes GGUF version 3 only, always little-endian as the format
// defines. Quantized tensor payloads are returned as raw bytes; dequantizing
// them to floats is up to the caller.
package gguf

import (
	"fmt"
	"math"
	"os"
)

const (
	ggufMagic        = "GGUF"
	supportedVersion = 3
	defaultAlignment = 32

	// maxTensorDims is the format's conventional bound on tensor rank.
	maxTensorDims = 4

	alignmentKey = "general.alignment"
)

// File is a parsed GGUF file. Create one with Open. The File owns the
// underlying file handle until Close; metadata and tensor descriptors are
// immutable after Open.
//
// Lookups and Load are safe for concurrent use (payload reads use positional
// reads on the shared handle).
type File struct {
	// Version is the GGUF format version (always 3).
	Version uint32
	// Alignment is the byte alignment of the tensor data section, 32 unless
	// overridden by the general.alignment metadata key.
	Alignment uint64
	// KeyValues holds the metadata entries in wire order, with duplicate
	// keys collapsed to their last occurrence.
	KeyValues []KeyValue
	// TensorInfos holds the tensor descriptors in wire order.
	TensorInfos []TensorInfo
	// Diagnostics holds non-fatal anomalies observed during Open, such as
	// duplicate metadata keys.
	Diagnostics []Diagnostic

	kvByKey      map[string]*KeyValue
	tensorByName map[string]*TensorInfo
	path         string
	dataOffset   int64
	size         int64
	handle       *os.File
}

// Open opens and parses a GGUF file, reading the header, all metadata and
// all tensor descriptors. Tensor payloads are not read; fetch them with Load.
// The returned File keeps the file handle open until Close.
func Open(path string) (*File, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gguf: open %s: %w", path, err)
	}
	stat, err := handle.Stat()
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("gguf: stat %s: %w", path, err)
	}

	file := &File{path: path, size: stat.Size(), handle: handle}
	if err := file.parse(newByteReader(handle, stat.Size())); err != nil {
		handle.Close()
		return nil, fmt.Errorf("gguf: %s: %w", path, err)
	}
	return file, nil
}

// Close releases the underlying file handle. Load fails after Close;
// metadata and tensor info lookups remain valid.
func (f *File) Close() error {
	return f.handle.Close()
}

func (f *File) parse(br *byteReader) error {
	tensorCount, kvCount, err := f.parseHeader(br)
	if err != nil {
		return err
	}
	if err := f.parseMetadata(br, kvCount); err != nil {
		return err
	}
	if err := f.parseTensorInfos(br, tensorCount); err != nil {
		return err
	}
	return f.resolveDataSection(br)
}

// parseHeader validates magic and version, and returns the tensor and
// metadata entry counts.
func (f *File) parseHeader(br *byteReader) (tensorCount, kvCount uint64, err error) {
	var magic [4]byte
	if err = br.read(magic[:]); err != nil {
		return 0, 0, fmt.Errorf("read magic: %w", err)
	}
	if string(magic[:]) != ggufMagic {
		return 0, 0, fmt.Errorf("magic %q, expected %q: %w", magic[:], ggufMagic, ErrBadMagic)
	}

	if f.Version, err = br.u32(); err != nil {
		return 0, 0, fmt.Errorf("read version: %w", err)
	}
	if f.Version != supportedVersion {
		return 0, 0, fmt.Errorf("version %d (only %d supported): %w", f.Version, supportedVersion, ErrUnsupportedVersion)
	}

	if tensorCount, err = br.u64(); err != nil {
		return 0, 0, fmt.Errorf("read tensor count: %w", err)
	}
	if kvCount, err = br.u64(); err != nil {
		return 0, 0, fmt.Errorf("read kv count: %w", err)
	}
	// A kv entry takes at least 12 bytes on the wire, a tensor descriptor at
	// least 32. Counts beyond what the file can hold are rejected up front so
	// the entry loops never over-allocate.
	if kvCount > uint64(br.remaining())/12 {
		return 0, 0, fmt.Errorf("kv count %d with %d bytes remaining: %w", kvCount, br.remaining(), ErrLengthExceedsFile)
	}
	if tensorCount > uint64(br.remaining())/32 {
		return 0, 0, fmt.Errorf("tensor count %d with %d bytes remaining: %w", tensorCount, br.remaining(), ErrLengthExceedsFile)
	}
	return tensorCount, kvCount, nil
}

// parseMetadata reads kvCount (key, type, value) triples. A repeated key is
// collapsed to its last occurrence and recorded as a diagnostic.
func (f *File) parseMetadata(br *byteReader, kvCount uint64) error {
	f.KeyValues = make([]KeyValue, 0, kvCount)
	f.kvByKey = make(map[string]*KeyValue, kvCount)
	indexByKey := make(map[string]int, kvCount)

	for i := uint64(0); i < kvCount; i++ {
		key, err := br.str()
		if err != nil {
			return fmt.Errorf("read key of kv pair %d/%d: %w", i, kvCount, err)
		}
		typeTag, err := br.u32()
		if err != nil {
			return fmt.Errorf("read value type for %q: %w", key, err)
		}
		val, err := decodeValue(br, valueType(typeTag), 0)
		if err != nil {
			return fmt.Errorf("read value for %q (type %d): %w", key, typeTag, err)
		}

		if at, ok := indexByKey[key]; ok {
			// Last write wins; the format allows this but well-formed
			// writers don't produce it.
			f.KeyValues[at].Value = val
			f.Diagnostics = append(f.Diagnostics, Diagnostic{Kind: DiagDuplicateMetadataKey, Key: key})
			continue
		}
		indexByKey[key] = len(f.KeyValues)
		f.KeyValues = append(f.KeyValues, KeyValue{Key: key, Value: val})
	}

	for i := range f.KeyValues {
		f.kvByKey[f.KeyValues[i].Key] = &f.KeyValues[i]
	}
	return nil
}

// parseTensorInfos reads tensorCount descriptors and computes each payload's
// byte size from the type's block geometry. Absolute offsets are assigned
// later, once the data section origin is known.
func (f *File) parseTensorInfos(br *byteReader, tensorCount uint64) error {
	f.TensorInfos = make([]TensorInfo, 0, tensorCount)
	f.tensorByName = make(map[string]*TensorInfo, tensorCount)
	seen := make(map[string]struct{}, tensorCount)

	for i := uint64(0); i < tensorCount; i++ {
		name, err := br.str()
		if err != nil {
			return fmt.Errorf("read name of tensor %d/%d: %w", i, tensorCount, err)
		}
		if name == "" {
			return fmt.Errorf("tensor %d/%d: %w", i, tensorCount, ErrEmptyTensorName)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("tensor %q: %w", name, ErrDuplicateTensorName)
		}
		seen[name] = struct{}{}

		nDims, err := br.u32()
		if err != nil {
			return fmt.Errorf("read dimension count for %q: %w", name, err)
		}
		if nDims < 1 || nDims > maxTensorDims {
			return fmt.Errorf("tensor %q has %d dimensions: %w", name, nDims, ErrBadDimensionCount)
		}

		shape := make([]uint64, nDims)
		for d := range shape {
			if shape[d], err = br.u64(); err != nil {
				return fmt.Errorf("read dimension %d for %q: %w", d, name, err)
			}
			if shape[d] == 0 {
				return fmt.Errorf("tensor %q dimension %d: %w", name, d, ErrZeroDimension)
			}
		}

		typeCode, err := br.u32()
		if err != nil {
			return fmt.Errorf("read type for %q: %w", name, err)
		}
		ttype := TensorType(typeCode)
		if !ttype.Valid() {
			return fmt.Errorf("tensor %q type %d: %w", name, typeCode, ErrUnknownQuantType)
		}

		offset, err := br.u64()
		if err != nil {
			return fmt.Errorf("read offset for %q: %w", name, err)
		}

		ti := TensorInfo{Name: name, Shape: shape, Type: ttype, Offset: offset}
		count, err := checkedNumElements(shape)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		if ti.Size, err = payloadSize(ttype, count); err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		// The payload end must fit in an int64 file offset.
		if ti.Offset > uint64(math.MaxInt64)-uint64(ti.Size) {
			return fmt.Errorf("tensor %q payload end past offset %d overflows: %w", name, ti.Offset, ErrLengthExceedsFile)
		}
		f.TensorInfos = append(f.TensorInfos, ti)
	}
	return nil
}

// resolveDataSection computes the aligned origin of the tensor data section
// and assigns every tensor its absolute file offset. Declared payload
// regions must be back-to-back in wire order; files whose regions overlap or
// run backwards are rejected. Whether the payloads are actually present on
// disk is checked at Load time, so metadata of a file truncated inside the
// data section can still be inspected.
func (f *File) resolveDataSection(br *byteReader) error {
	f.Alignment = defaultAlignment
	if kv, ok := f.kvByKey[alignmentKey]; ok {
		a, isUint := kv.uintStrict()
		if !isUint || a == 0 || a&(a-1) != 0 {
			return fmt.Errorf("%s %v: %w", alignmentKey, kv.Raw(), ErrBadAlignment)
		}
		f.Alignment = a
	}

	pos := uint64(br.position())
	f.dataOffset = int64((pos + f.Alignment - 1) / f.Alignment * f.Alignment)

	var nextFree uint64
	for i := range f.TensorInfos {
		ti := &f.TensorInfos[i]
		if ti.Offset < nextFree {
			return fmt.Errorf("tensor %q payload at relative offset %d overlaps region ending at %d", ti.Name, ti.Offset, nextFree)
		}
		if uint64(f.dataOffset)+ti.Offset+uint64(ti.Size) > math.MaxInt64 {
			return fmt.Errorf("tensor %q payload end overflows: %w", ti.Name, ErrLengthExceedsFile)
		}
		ti.AbsoluteOffset = f.dataOffset + int64(ti.Offset)
		nextFree = ti.Offset + uint64(ti.Size)
		f.tensorByName[ti.Name] = ti
	}
	return nil
}

// Path returns the local file path of the GGUF file.
func (f *File) Path() string {
	return f.path
}

// DataOffset returns the byte offset where the tensor data section begins.
// It is always a multiple of Alignment.
func (f *File) DataOffset() int64 {
	return f.dataOffset
}

// GetKeyValue looks up a metadata entry by its key.
func (f *File) GetKeyValue(key string) (KeyValue, bool) {
	kv, ok := f.kvByKey[key]
	if !ok {
		return KeyValue{}, false
	}
	return *kv, true
}

// GetTensorInfo looks up a tensor descriptor by name.
func (f *File) GetTensorInfo(name string) (TensorInfo, bool) {
	ti, ok := f.tensorByName[name]
	if !ok {
		return TensorInfo{}, false
	}
	return *ti, true
}

// ListTensorNames returns the names of all tensors in wire order.
func (f *File) ListTensorNames() []string {
	names := make([]string, len(f.TensorInfos))
	for i, ti := range f.TensorInfos {
		names[i] = ti.Name
	}
	return names
}

// NumParameters returns the total element count across all tensors.
func (f *File) NumParameters() uint64 {
	var n uint64
	for i := range f.TensorInfos {
		n += f.TensorInfos[i].NumElements()
	}
	return n
}
