package gguf

import "fmt"

// valueType is the wire type tag of a GGUF metadata value.
type valueType uint32

const (
	valueTypeUint8   valueType = 0
	valueTypeInt8    valueType = 1
	valueTypeUint16  valueType = 2
	valueTypeInt16   valueType = 3
	valueTypeUint32  valueType = 4
	valueTypeInt32   valueType = 5
	valueTypeFloat32 valueType = 6
	valueTypeBool    valueType = 7
	valueTypeString  valueType = 8
	valueTypeArray   valueType = 9
	valueTypeUint64  valueType = 10
	valueTypeInt64   valueType = 11
	valueTypeFloat64 valueType = 12
)

// maxArrayDepth bounds metadata array nesting. The grammar allows arrays of
// arrays, so an explicit counter keeps adversarial files from unwinding the
// stack.
const maxArrayDepth = 64

// KeyValue is one metadata entry from a GGUF file.
type KeyValue struct {
	Key string
	Value
}

// Value wraps a GGUF metadata value with typed accessors. The underlying Go
// type preserves the wire type exactly (a Uint32 value stays a uint32), so
// width-sensitive callers can still tell them apart; the accessors widen to
// 64-bit for convenience and return zero values on a type mismatch rather
// than errors.
//
// Homogeneous arrays of scalars or strings are held as flat Go slices
// ([]uint32, []string, ...); arrays of arrays are held as []Value.
type Value struct {
	data any
}

// Raw returns the underlying value without type conversion.
func (v Value) Raw() any {
	return v.data
}

// String returns the value as a string, or "" if it is not a string.
func (v Value) String() string {
	s, _ := v.data.(string)
	return s
}

// Strings returns the value as a string slice, or nil if it is not one.
func (v Value) Strings() []string {
	s, _ := v.data.([]string)
	return s
}

// Bool returns the value as a bool, or false if it is not a bool.
func (v Value) Bool() bool {
	b, _ := v.data.(bool)
	return b
}

// Values returns the elements of an array-of-arrays value, or nil if the
// value is not a nested array.
func (v Value) Values() []Value {
	s, _ := v.data.([]Value)
	return s
}

// Int returns the value as an int64. Works for any signed or unsigned
// integer type. Returns 0 if the value is not an integer.
func (v Value) Int() int64 {
	n, _ := v.asInt64()
	return n
}

// Uint returns the value as a uint64. Works for any signed or unsigned
// integer type. Returns 0 if the value is not an integer.
func (v Value) Uint() uint64 {
	n, _ := v.asInt64()
	return uint64(n)
}

func (v Value) asInt64() (int64, bool) {
	switch n := v.data.(type) {
	case uint8:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// uintStrict returns the value widened to uint64 only when the wire type was
// Uint32 or Uint64. The well-known model keys (context length, block count,
// ...) are written with either width depending on the converter, but never as
// signed or float values.
func (v Value) uintStrict() (uint64, bool) {
	switch n := v.data.(type) {
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	default:
		return 0, false
	}
}

// Float returns the value as a float64. Works for float32 and float64.
// Returns 0 if the value is not a float.
func (v Value) Float() float64 {
	switch n := v.data.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

// Ints returns the value as an int64 slice, widening from any integer
// element type, or nil if it is not an integer array.
func (v Value) Ints() []int64 {
	switch s := v.data.(type) {
	case []int64:
		return s
	case []int32:
		return widenSlice[int32, int64](s)
	case []int16:
		return widenSlice[int16, int64](s)
	case []int8:
		return widenSlice[int8, int64](s)
	case []uint64:
		return widenSlice[uint64, int64](s)
	case []uint32:
		return widenSlice[uint32, int64](s)
	case []uint16:
		return widenSlice[uint16, int64](s)
	case []uint8:
		return widenSlice[uint8, int64](s)
	default:
		return nil
	}
}

// Uints returns the value as a uint64 slice, widening from any unsigned
// element type, or nil if it is not an unsigned integer array.
func (v Value) Uints() []uint64 {
	switch s := v.data.(type) {
	case []uint64:
		return s
	case []uint32:
		return widenSlice[uint32, uint64](s)
	case []uint16:
		return widenSlice[uint16, uint64](s)
	case []uint8:
		return widenSlice[uint8, uint64](s)
	default:
		return nil
	}
}

// Floats returns the value as a float64 slice, or nil if it is not a float
// array.
func (v Value) Floats() []float64 {
	switch s := v.data.(type) {
	case []float64:
		return s
	case []float32:
		return widenSlice[float32, float64](s)
	default:
		return nil
	}
}

type numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func widenSlice[S, D numeric](src []S) []D {
	out := make([]D, len(src))
	for i, n := range src {
		out[i] = D(n)
	}
	return out
}

// decodeValue reads one value of the given wire type. depth counts array
// nesting of the enclosing context.
func decodeValue(br *byteReader, vtype valueType, depth int) (Value, error) {
	switch vtype {
	case valueTypeUint8:
		v, err := br.u8()
		return Value{data: v}, err
	case valueTypeInt8:
		v, err := br.i8()
		return Value{data: v}, err
	case valueTypeUint16:
		v, err := br.u16()
		return Value{data: v}, err
	case valueTypeInt16:
		v, err := br.i16()
		return Value{data: v}, err
	case valueTypeUint32:
		v, err := br.u32()
		return Value{data: v}, err
	case valueTypeInt32:
		v, err := br.i32()
		return Value{data: v}, err
	case valueTypeFloat32:
		v, err := br.f32()
		return Value{data: v}, err
	case valueTypeBool:
		v, err := br.boolByte()
		return Value{data: v}, err
	case valueTypeString:
		s, err := br.str()
		return Value{data: s}, err
	case valueTypeUint64:
		v, err := br.u64()
		return Value{data: v}, err
	case valueTypeInt64:
		v, err := br.i64()
		return Value{data: v}, err
	case valueTypeFloat64:
		v, err := br.f64()
		return Value{data: v}, err
	case valueTypeArray:
		return decodeArray(br, depth+1)
	default:
		return Value{}, fmt.Errorf("value type %d: %w", vtype, ErrUnknownValueType)
	}
}

// decodeArray reads a typed array: uint32 element type, uint64 count, then
// the elements back to back.
func decodeArray(br *byteReader, depth int) (Value, error) {
	if depth > maxArrayDepth {
		return Value{}, fmt.Errorf("nesting depth %d: %w", depth, ErrArrayTooDeep)
	}
	elemCode, err := br.u32()
	if err != nil {
		return Value{}, fmt.Errorf("read array element type: %w", err)
	}
	count, err := br.u64()
	if err != nil {
		return Value{}, fmt.Errorf("read array count: %w", err)
	}
	// Every element occupies at least one byte on the wire, so a count past
	// the remaining file size cannot be satisfied.
	if count > uint64(br.remaining()) {
		return Value{}, fmt.Errorf("array length %d with %d bytes remaining: %w", count, br.remaining(), ErrLengthExceedsFile)
	}

	switch elemType := valueType(elemCode); elemType {
	case valueTypeUint8:
		return decodeArrayOf(br, count, (*byteReader).u8)
	case valueTypeInt8:
		return decodeArrayOf(br, count, (*byteReader).i8)
	case valueTypeUint16:
		return decodeArrayOf(br, count, (*byteReader).u16)
	case valueTypeInt16:
		return decodeArrayOf(br, count, (*byteReader).i16)
	case valueTypeUint32:
		return decodeArrayOf(br, count, (*byteReader).u32)
	case valueTypeInt32:
		return decodeArrayOf(br, count, (*byteReader).i32)
	case valueTypeFloat32:
		return decodeArrayOf(br, count, (*byteReader).f32)
	case valueTypeBool:
		return decodeArrayOf(br, count, (*byteReader).boolByte)
	case valueTypeString:
		return decodeArrayOf(br, count, (*byteReader).str)
	case valueTypeUint64:
		return decodeArrayOf(br, count, (*byteReader).u64)
	case valueTypeInt64:
		return decodeArrayOf(br, count, (*byteReader).i64)
	case valueTypeFloat64:
		return decodeArrayOf(br, count, (*byteReader).f64)
	case valueTypeArray:
		vals := make([]Value, count)
		for i := range vals {
			vals[i], err = decodeArray(br, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("read nested array element %d: %w", i, err)
			}
		}
		return Value{data: vals}, nil
	default:
		return Value{}, fmt.Errorf("array element type %d: %w", elemCode, ErrUnknownValueType)
	}
}

// decodeArrayOf reads count elements with the given primitive reader into a
// flat slice.
func decodeArrayOf[T any](br *byteReader, count uint64, read func(*byteReader) (T, error)) (Value, error) {
	vals := make([]T, count)
	for i := range vals {
		v, err := read(br)
		if err != nil {
			return Value{}, fmt.Errorf("read array element %d: %w", i, err)
		}
		vals[i] = v
	}
	return Value{data: vals}, nil
}
