package gguf

import (
	"fmt"
	"io"
	"slices"

	"golang.org/x/exp/mmap"
)

// Load reads the raw payload bytes of the named tensor. The returned buffer
// is owned by the caller; the File keeps no reference to it and caches
// nothing. Quantized payloads come back in their on-disk block encoding.
//
// Load uses positional reads on the File's handle and is safe to call from
// multiple goroutines.
func (f *File) Load(name string) ([]byte, error) {
	ti, ok := f.tensorByName[name]
	if !ok {
		return nil, fmt.Errorf("gguf: tensor %q: %w", name, ErrTensorNotFound)
	}
	// Bound the declared region by the file size before allocating: a tiny
	// hostile file can declare a multi-terabyte tensor.
	if ti.AbsoluteOffset+ti.Size > f.size {
		return nil, fmt.Errorf("gguf: tensor %q needs %d bytes at offset %d, file has %d: %w",
			name, ti.Size, ti.AbsoluteOffset, f.size, ErrTruncated)
	}
	buf := make([]byte, ti.Size)
	n, err := f.handle.ReadAt(buf, ti.AbsoluteOffset)
	if n < len(buf) {
		if err == nil || err == io.EOF {
			return nil, fmt.Errorf("gguf: tensor %q needs %d bytes at offset %d, file has %d: %w",
				name, ti.Size, ti.AbsoluteOffset, int64(n), ErrTruncated)
		}
		return nil, fmt.Errorf("gguf: read tensor %q: %w", name, err)
	}
	return buf, nil
}

// TensorData pairs a tensor descriptor with its raw payload bytes.
type TensorData struct {
	Info TensorInfo
	Data []byte
}

// IterTensors returns an iterator over all tensors with their raw payloads,
// sorted by file offset for sequential I/O.
func (f *File) IterTensors() func(yield func(TensorData, error) bool) {
	return func(yield func(TensorData, error) bool) {
		sorted := make([]TensorInfo, len(f.TensorInfos))
		copy(sorted, f.TensorInfos)
		slices.SortFunc(sorted, func(a, b TensorInfo) int {
			switch {
			case a.Offset < b.Offset:
				return -1
			case a.Offset > b.Offset:
				return 1
			default:
				return 0
			}
		})

		for _, info := range sorted {
			data, err := f.Load(info.Name)
			if err != nil {
				yield(TensorData{}, err)
				return
			}
			if !yield(TensorData{Info: info, Data: data}, nil) {
				return
			}
		}
	}
}

// MMapReader provides memory-mapped access to tensor payloads in a GGUF
// file. It opens its own mapping of the file, independent of the File's
// handle, and is safe for concurrent use.
type MMapReader struct {
	reader     *mmap.ReaderAt
	file       *File
	dataOffset int64
}

// NewMMapReader opens a memory-mapped reader over the already-parsed file.
func NewMMapReader(f *File) (*MMapReader, error) {
	reader, err := mmap.Open(f.Path())
	if err != nil {
		return nil, fmt.Errorf("gguf: mmap %s: %w", f.Path(), err)
	}
	return &MMapReader{reader: reader, file: f, dataOffset: f.DataOffset()}, nil
}

// Close closes the underlying memory-mapped file.
func (mr *MMapReader) Close() error {
	return mr.reader.Close()
}

// Load reads the raw payload bytes of the named tensor from the mapping.
func (mr *MMapReader) Load(name string) ([]byte, error) {
	ti, ok := mr.file.GetTensorInfo(name)
	if !ok {
		return nil, fmt.Errorf("gguf: tensor %q: %w", name, ErrTensorNotFound)
	}
	if ti.AbsoluteOffset+ti.Size > mr.file.size {
		return nil, fmt.Errorf("gguf: tensor %q needs %d bytes at offset %d, file has %d: %w",
			name, ti.Size, ti.AbsoluteOffset, mr.file.size, ErrTruncated)
	}
	buf := make([]byte, ti.Size)
	n, err := mr.reader.ReadAt(buf, mr.dataOffset+int64(ti.Offset))
	if n < len(buf) {
		if err == nil || err == io.EOF {
			return nil, fmt.Errorf("gguf: tensor %q needs %d bytes at offset %d: %w",
				name, ti.Size, ti.AbsoluteOffset, ErrTruncated)
		}
		return nil, fmt.Errorf("gguf: read tensor %q: %w", name, err)
	}
	return buf, nil
}
