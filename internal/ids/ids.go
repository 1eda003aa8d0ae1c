// Package ids generates the random 64-bit identifiers used for uploads and
// files, and converts them to and from their public string form.
//
// Identifiers are drawn uniformly from [-MaxInt64, MaxInt64]. Uniqueness is
// not guaranteed by generation alone: Allocate retries until the supplied
// existence check reports a free value, and must run inside the same
// transaction as the insert that uses the result.
package ids

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidID is returned by Decode for malformed public identifiers.
var ErrInvalidID = errors.New("invalid id")

// maxAttempts bounds Allocate. With a 64-bit space a second attempt is
// already astronomically unlikely; hitting the bound means the check is broken.
const maxAttempts = 16

// readRandom is a seam for tests.
var readRandom = rand.Read

// ExistsFunc reports whether an identifier is already taken.
type ExistsFunc func(ctx context.Context, id int64) (bool, error)

// Generate returns a uniformly random identifier.
func Generate() (int64, error) {
	var buf [8]byte
	for {
		if _, err := readRandom(buf[:]); err != nil {
			return 0, fmt.Errorf("read random: %w", err)
		}
		id := int64(binary.LittleEndian.Uint64(buf[:]))
		// MinInt64 has no positive counterpart; keep the range symmetric
		if id != math.MinInt64 {
			return id, nil
		}
	}
}

// Allocate generates identifiers until exists reports one as free.
func Allocate(ctx context.Context, exists ExistsFunc) (int64, error) {
	for i := 0; i < maxAttempts; i++ {
		id, err := Generate()
		if err != nil {
			return 0, err
		}
		taken, err := exists(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("check id: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
	return 0, fmt.Errorf("no free id after %d attempts", maxAttempts)
}

// Encode returns the public form of id: unpadded base64url of its 8
// little-endian bytes.
func Encode(id int64) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	return base64.RawURLEncoding.EncodeToString(buf[:])
}

// Decode parses the output of Encode.
func Decode(s string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not base64url", ErrInvalidID, s)
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidID, s, len(raw))
	}
	return int64(binary.LittleEndian.Uint64(raw)), nil
}
