package gguf

// Convenience accessors for the well-known model metadata keys. The integer
// keys are written as either Uint32 or Uint64 depending on the converter that
// produced the file; these accessors take either width and widen to uint64,
// reporting ok=false when the key is missing or holds an unexpected type.

// Architecture returns the model architecture string (e.g. "llama",
// "gemma"), or "" if the metadata key "general.architecture" is not present.
func (f *File) Architecture() string {
	kv, ok := f.GetKeyValue("general.architecture")
	if !ok {
		return ""
	}
	return kv.String()
}

// FileType returns the general.file_type metadata value, an enum describing
// the dominant quantization of the file's tensors.
func (f *File) FileType() (uint64, bool) {
	return f.uintKey("general.file_type")
}

// ContextLength returns <arch>.context_length, the training context size.
func (f *File) ContextLength() (uint64, bool) {
	return f.archUintKey("context_length")
}

// EmbeddingLength returns <arch>.embedding_length, the embedding dimension.
func (f *File) EmbeddingLength() (uint64, bool) {
	return f.archUintKey("embedding_length")
}

// BlockCount returns <arch>.block_count, the number of transformer blocks.
func (f *File) BlockCount() (uint64, bool) {
	return f.archUintKey("block_count")
}

// HeadCount returns <arch>.attention.head_count.
func (f *File) HeadCount() (uint64, bool) {
	return f.archUintKey("attention.head_count")
}

// HeadCountKV returns <arch>.attention.head_count_kv, the number of
// key/value heads used by grouped-query attention.
func (f *File) HeadCountKV() (uint64, bool) {
	return f.archUintKey("attention.head_count_kv")
}

func (f *File) uintKey(key string) (uint64, bool) {
	kv, ok := f.GetKeyValue(key)
	if !ok {
		return 0, false
	}
	return kv.uintStrict()
}

// archUintKey resolves an architecture-scoped key, e.g. "block_count" to
// "llama.block_count" for a file whose general.architecture is "llama".
func (f *File) archUintKey(suffix string) (uint64, bool) {
	arch := f.Architecture()
	if arch == "" {
		return 0, false
	}
	return f.uintKey(arch + "." + suffix)
}
