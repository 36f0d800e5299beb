package persistence

import "time"

// Blob is one opaque value stored under a key.
//
// Revision starts at 1 for a newly written key and increases by one on every
// successful write. A zero Revision in a write means "the key must not exist".
type Blob struct {
	Key       string
	Value     []byte
	Checksum  string
	Revision  int64
	UpdatedAt time.Time
}

func cloneBlob(b Blob) Blob {
	clone := b
	if b.Value != nil {
		clone.Value = append([]byte(nil), b.Value...)
	}
	return clone
}
