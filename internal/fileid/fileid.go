// Package fileid derives stable identifiers from file paths. Recompiling the
// same corpus produces the same IDs, so index writes replace instead of
// duplicate.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const prefix = "file:"

// DocID returns a stable document ID for the given path.
// Same path always yields the same ID.
func DocID(path string) string {
	normalized := filepath.ToSlash(filepath.Clean(path))
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}

// ChunkID returns a stable ID for the index-th chunk of the file at path.
func ChunkID(path string, index int) string {
	return fmt.Sprintf("%s:%d", DocID(path), index)
}
