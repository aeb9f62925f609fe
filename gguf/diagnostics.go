package gguf

import "fmt"

// DiagnosticKind classifies a non-fatal anomaly observed while decoding.
type DiagnosticKind int

const (
	// DiagDuplicateMetadataKey means a metadata key appeared more than once;
	// the last occurrence wins.
	DiagDuplicateMetadataKey DiagnosticKind = iota
)

// Diagnostic records a non-fatal anomaly found during Open. Diagnostics
// never abort decoding; they are collected on the File for callers that
// care about file hygiene.
type Diagnostic struct {
	Kind DiagnosticKind
	// Key is the metadata key the diagnostic refers to.
	Key string
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case DiagDuplicateMetadataKey:
		return fmt.Sprintf("duplicate metadata key %q", d.Key)
	default:
		return fmt.Sprintf("unknown diagnostic (kind %d, key %q)", d.Kind, d.Key)
	}
}
