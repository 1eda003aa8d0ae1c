package models

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Digest sizes accepted as content hashes.
const (
	SHA1Size   = 20 // legacy uploads
	SHA256Size = 32
)

// ErrInvalidHash is returned when a hex string is not a SHA-1 or SHA-256 digest.
var ErrInvalidHash = errors.New("invalid content hash")

// Hash is the raw digest of a file's content. It is the deduplication key
// for uploads and files and determines the object's storage path.
type Hash []byte

// ParseHash decodes a hex digest of either supported length.
func ParseHash(s string) (Hash, error) {
	if len(s) != 2*SHA1Size && len(s) != 2*SHA256Size {
		return nil, fmt.Errorf("%w: %d hex characters", ErrInvalidHash, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return Hash(raw), nil
}

// Hex returns the lowercase hex form.
func (h Hash) Hex() string {
	return hex.EncodeToString(h)
}

func (h Hash) String() string {
	return h.Hex()
}

// Legacy reports whether h is a SHA-1 digest.
func (h Hash) Legacy() bool {
	return len(h) == SHA1Size
}
