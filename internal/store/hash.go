package store

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// HashBytes returns the hex xxh3 digest of src. It is stored per file so an
// mtime-only change can skip re-extraction.
func HashBytes(src []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(src))
}
