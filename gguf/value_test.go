package gguf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataScalarTypes(t *testing.T) {
	path := buildMinimalGGUF(t, 7, 0,
		func(b *ggufBuilder) {
			b.writeKVString("general.architecture", "llama")
			b.writeKVUint32("llama.block_count", 32)
			b.writeKVUint64("llama.vocab_size", 128256)
			b.writeKVFloat32("llama.rope.freq_base", 10000.0)
			b.writeKVBool("llama.use_parallel_residual", true)
			b.writeKVBool("llama.tie_embeddings", false)
			b.writeString("general.quantized_by")
			b.writeUint32(uint32(valueTypeInt8))
			b.writeUint8(0xff) // int8(-1)
		},
		nil, nil)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	kv, ok := f.GetKeyValue("general.architecture")
	require.True(t, ok)
	assert.Equal(t, "llama", kv.String())

	kv, ok = f.GetKeyValue("llama.block_count")
	require.True(t, ok)
	assert.Equal(t, uint64(32), kv.Uint())
	assert.Equal(t, int64(32), kv.Int())

	kv, ok = f.GetKeyValue("llama.vocab_size")
	require.True(t, ok)
	assert.Equal(t, uint64(128256), kv.Uint())

	kv, ok = f.GetKeyValue("llama.rope.freq_base")
	require.True(t, ok)
	assert.Equal(t, float64(10000.0), kv.Float())

	kv, ok = f.GetKeyValue("llama.use_parallel_residual")
	require.True(t, ok)
	assert.True(t, kv.Bool())

	kv, ok = f.GetKeyValue("llama.tie_embeddings")
	require.True(t, ok)
	assert.False(t, kv.Bool())

	kv, ok = f.GetKeyValue("general.quantized_by")
	require.True(t, ok)
	assert.Equal(t, int64(-1), kv.Int())

	_, ok = f.GetKeyValue("does.not.exist")
	assert.False(t, ok)
}

func TestMetadataPreservesWireWidth(t *testing.T) {
	// A Uint32(5) and a Uint64(5) must remain distinguishable after
	// decoding; only the accessors widen.
	path := buildMinimalGGUF(t, 2, 0,
		func(b *ggufBuilder) {
			b.writeKVUint32("narrow", 5)
			b.writeKVUint64("wide", 5)
		},
		nil, nil)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	narrow, _ := f.GetKeyValue("narrow")
	wide, _ := f.GetKeyValue("wide")
	assert.IsType(t, uint32(0), narrow.Raw())
	assert.IsType(t, uint64(0), wide.Raw())
	assert.Equal(t, narrow.Uint(), wide.Uint())
}

func TestMetadataStringArray(t *testing.T) {
	path := buildMinimalGGUF(t, 1, 0,
		func(b *ggufBuilder) {
			b.writeKVStringArray("tokens", []string{"a", "b", "c"})
		},
		nil, nil)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	kv, ok := f.GetKeyValue("tokens")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, kv.Strings())
}

func TestMetadataNumericArrays(t *testing.T) {
	path := buildMinimalGGUF(t, 2, 0,
		func(b *ggufBuilder) {
			b.writeKVInt32Array("token_types", []int32{1, -2, 3})
			b.writeString("scores")
			b.writeUint32(uint32(valueTypeArray))
			b.writeUint32(uint32(valueTypeFloat32))
			b.writeUint64(2)
			b.writeFloat32(0.5)
			b.writeFloat32(-1.5)
		},
		nil, nil)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	kv, ok := f.GetKeyValue("token_types")
	require.True(t, ok)
	assert.Equal(t, []int64{1, -2, 3}, kv.Ints())

	kv, ok = f.GetKeyValue("scores")
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, -1.5}, kv.Floats())
}

func TestMetadataNestedArray(t *testing.T) {
	// An array of two int32 arrays: [[1, 2], [3]].
	path := buildMinimalGGUF(t, 1, 0,
		func(b *ggufBuilder) {
			b.writeString("nested")
			b.writeUint32(uint32(valueTypeArray))
			b.writeUint32(uint32(valueTypeArray))
			b.writeUint64(2)

			b.writeUint32(uint32(valueTypeInt32))
			b.writeUint64(2)
			b.writeInt32(1)
			b.writeInt32(2)

			b.writeUint32(uint32(valueTypeInt32))
			b.writeUint64(1)
			b.writeInt32(3)
		},
		nil, nil)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	kv, ok := f.GetKeyValue("nested")
	require.True(t, ok)
	inner := kv.Values()
	require.Len(t, inner, 2)
	assert.Equal(t, []int64{1, 2}, inner[0].Ints())
	assert.Equal(t, []int64{3}, inner[1].Ints())
}

func TestMetadataArrayTooDeep(t *testing.T) {
	// Arrays nested past the depth limit. Each level is an array whose
	// single element is the next array down.
	b := newGGUFBuilder()
	b.writeHeader(0, 1)
	b.writeString("deep")
	b.writeUint32(uint32(valueTypeArray))
	for i := 0; i < maxArrayDepth+1; i++ {
		b.writeUint32(uint32(valueTypeArray))
		b.writeUint64(1)
	}
	b.writeUint32(uint32(valueTypeInt32))
	b.writeUint64(0)

	_, err := Open(b.writeFile(t))
	assert.ErrorIs(t, err, ErrArrayTooDeep)
}

func TestMetadataUnknownValueType(t *testing.T) {
	path := buildMinimalGGUF(t, 1, 0,
		func(b *ggufBuilder) {
			b.writeString("weird")
			b.writeUint32(13) // one past the last defined type tag
			b.writeUint32(0)
		},
		nil, nil)

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnknownValueType)
}

func TestMetadataUnknownArrayElementType(t *testing.T) {
	path := buildMinimalGGUF(t, 1, 0,
		func(b *ggufBuilder) {
			b.writeString("weird")
			b.writeUint32(uint32(valueTypeArray))
			b.writeUint32(99)
			b.writeUint64(1)
		},
		nil, nil)

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnknownValueType)
}

func TestMetadataArrayLengthExceedsFile(t *testing.T) {
	b := newGGUFBuilder()
	b.writeHeader(0, 1)
	b.writeString("huge")
	b.writeUint32(uint32(valueTypeArray))
	b.writeUint32(uint32(valueTypeUint8))
	b.writeUint64(1 << 40)

	_, err := Open(b.writeFile(t))
	assert.ErrorIs(t, err, ErrLengthExceedsFile)
}

func TestMetadataTruncatedValue(t *testing.T) {
	b := newGGUFBuilder()
	b.writeHeader(0, 1)
	b.writeString("cut")
	b.writeUint32(uint32(valueTypeUint64))
	b.writeUint16(7) // only 2 of 8 bytes

	_, err := Open(b.writeFile(t))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestValueAccessorMismatches(t *testing.T) {
	v := Value{data: "text"}
	assert.Zero(t, v.Uint())
	assert.Zero(t, v.Int())
	assert.Zero(t, v.Float())
	assert.False(t, v.Bool())
	assert.Nil(t, v.Ints())
	assert.Nil(t, v.Values())

	n := Value{data: uint32(7)}
	assert.Equal(t, "", n.String())
	assert.Nil(t, n.Strings())
	assert.Equal(t, uint64(7), n.Uint())
}
