// gguf-inspect prints the metadata and tensor table of a GGUF model file.
//
// Usage: gguf-inspect <path-to-gguf-file>
//
// Exits 0 on success and 1 on any decode failure.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gomlx/go-gguf/gguf"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path_to_gguf_file>\n", os.Args[0])
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "gguf-inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	f, err := gguf.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Println(titleStyle.Render("Model"))
	fmt.Printf("  Model Family: %s\n", orNone(f.Architecture()))
	fmt.Printf("  Number of Parameters: %d\n", f.NumParameters())
	if fileType, ok := f.FileType(); ok {
		fmt.Printf("  File Type: %d\n", fileType)
	}
	fmt.Printf("  Number of Tensors: %d\n", len(f.TensorInfos))
	fmt.Printf("  Alignment: %d, data section at byte %d\n", f.Alignment, f.DataOffset())

	for _, d := range f.Diagnostics {
		fmt.Println(warnStyle.Render("  warning: " + d.String()))
	}

	fmt.Println(titleStyle.Render("Metadata"))
	for _, kv := range f.KeyValues {
		fmt.Printf("  %s = %s\n", keyStyle.Render(kv.Key), formatValue(kv.Value))
	}

	fmt.Println(titleStyle.Render("Tensors"))
	for _, ti := range f.TensorInfos {
		fmt.Printf("  %s %s shape=%v %d bytes at offset %d\n",
			keyStyle.Render(ti.Name), ti.Type, ti.Shape, ti.Size, ti.AbsoluteOffset)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// formatValue renders a metadata value compactly; long arrays are
// summarized instead of dumped (tokenizer vocabularies easily run to six
// figures).
func formatValue(v gguf.Value) string {
	switch raw := v.Raw().(type) {
	case string:
		return fmt.Sprintf("%q", raw)
	case []string:
		if len(raw) > 8 {
			return fmt.Sprintf("[%q, %q, ...] (%d strings)", raw[0], raw[1], len(raw))
		}
		return fmt.Sprintf("%q", raw)
	case []gguf.Value:
		parts := make([]string, 0, len(raw))
		for _, inner := range raw {
			parts = append(parts, formatValue(inner))
			if len(parts) == 8 && len(raw) > 8 {
				parts = append(parts, fmt.Sprintf("... (%d arrays)", len(raw)))
				break
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		s := fmt.Sprintf("%v", raw)
		if len(s) > 96 {
			s = s[:96] + fmt.Sprintf("... (%d chars)", len(s))
		}
		return s
	}
}
