package persistence

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Checksum returns the hex encoded BLAKE2b-256 digest of value.
func Checksum(value []byte) string {
	sum := blake2b.Sum256(value)
	return hex.EncodeToString(sum[:])
}

// Verify reports ErrCorrupt when the blob's value does not match its checksum.
// Blobs written without a checksum are accepted as they are.
func Verify(b Blob) error {
	if b.Checksum == "" {
		return nil
	}
	if got := Checksum(b.Value); got != b.Checksum {
		return fmt.Errorf("%w: key %q", ErrCorrupt, b.Key)
	}
	return nil
}
