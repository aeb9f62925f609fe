// Package files holds small filesystem helpers shared by the downloading
// code.
package files

import "os"

// Exists returns true if the given path exists, whether a file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Size returns the size of the file at path in bytes, or -1 if it cannot be
// stat'ed.
func Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}
