package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// byteReader decodes the fixed-width little-endian primitives and
// length-prefixed strings the GGUF wire format is built from. It tracks its
// own position over an io.ReaderAt, so it can be seeked to absolute offsets
// and can bound length prefixes by the bytes remaining in the file.
type byteReader struct {
	r       io.ReaderAt
	pos     int64
	size    int64
	scratch [8]byte
}

func newByteReader(r io.ReaderAt, size int64) *byteReader {
	return &byteReader{r: r, size: size}
}

// position returns the current absolute offset.
func (br *byteReader) position() int64 {
	return br.pos
}

// seek moves the cursor to an absolute offset.
func (br *byteReader) seek(offset int64) {
	br.pos = offset
}

// remaining returns how many bytes are left between the cursor and the end
// of the file.
func (br *byteReader) remaining() int64 {
	if br.pos >= br.size {
		return 0
	}
	return br.size - br.pos
}

// read fills p from the current position, advancing the cursor. A short read
// is reported as ErrTruncated; any other failure is the underlying I/O error.
func (br *byteReader) read(p []byte) error {
	n, err := br.r.ReadAt(p, br.pos)
	br.pos += int64(n)
	if n == len(p) {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF || err == nil {
		return fmt.Errorf("need %d bytes at offset %d, got %d: %w", len(p), br.pos-int64(n), n, ErrTruncated)
	}
	return err
}

// fixed reads n <= 8 bytes into the scratch buffer.
func (br *byteReader) fixed(n int) ([]byte, error) {
	buf := br.scratch[:n]
	if err := br.read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (br *byteReader) u8() (uint8, error) {
	buf, err := br.fixed(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (br *byteReader) u16() (uint16, error) {
	buf, err := br.fixed(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (br *byteReader) u32() (uint32, error) {
	buf, err := br.fixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (br *byteReader) u64() (uint64, error) {
	buf, err := br.fixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func (br *byteReader) i8() (int8, error) {
	v, err := br.u8()
	return int8(v), err
}

func (br *byteReader) i16() (int16, error) {
	v, err := br.u16()
	return int16(v), err
}

func (br *byteReader) i32() (int32, error) {
	v, err := br.u32()
	return int32(v), err
}

func (br *byteReader) i64() (int64, error) {
	v, err := br.u64()
	return int64(v), err
}

func (br *byteReader) f32() (float32, error) {
	v, err := br.u32()
	return math.Float32frombits(v), err
}

func (br *byteReader) f64() (float64, error) {
	v, err := br.u64()
	return math.Float64frombits(v), err
}

func (br *byteReader) boolByte() (bool, error) {
	v, err := br.u8()
	return v != 0, err
}

// str reads a GGUF string: a uint64 length prefix followed by that many
// UTF-8 bytes. The length is bounded by the remaining file size, so a
// corrupted prefix fails fast instead of attempting a huge allocation.
func (br *byteReader) str() (string, error) {
	length, err := br.u64()
	if err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	if length > uint64(br.remaining()) {
		return "", fmt.Errorf("string length %d with %d bytes remaining: %w", length, br.remaining(), ErrLengthExceedsFile)
	}
	buf := make([]byte, length)
	if err := br.read(buf); err != nil {
		return "", fmt.Errorf("read string data: %w", err)
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("string at offset %d: %w", br.pos-int64(length), ErrInvalidUTF8)
	}
	return string(buf), nil
}
