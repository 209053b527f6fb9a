// Package checksum computes BLAKE3 digests of deck files and layout inputs.
package checksum

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"lukechampine.com/blake3"
)

// Sum returns the hex-encoded BLAKE3-256 digest of data.
func Sum(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint accumulates typed fields into a single digest. Every field is
// length- or width-prefixed so adjacent values cannot run together.
type Fingerprint struct {
	h   *blake3.Hasher
	buf [8]byte
}

// NewFingerprint returns an empty Fingerprint.
func NewFingerprint() *Fingerprint {
	return &Fingerprint{h: blake3.New(32, nil)}
}

// Int64 adds v.
func (f *Fingerprint) Int64(v int64) *Fingerprint {
	binary.BigEndian.PutUint64(f.buf[:], uint64(v))
	f.h.Write(f.buf[:])
	return f
}

// Float64 adds v.
func (f *Fingerprint) Float64(v float64) *Fingerprint {
	binary.BigEndian.PutUint64(f.buf[:], math.Float64bits(v))
	f.h.Write(f.buf[:])
	return f
}

// String adds s.
func (f *Fingerprint) String(s string) *Fingerprint {
	f.Int64(int64(len(s)))
	f.h.Write([]byte(s))
	return f
}

// Hex returns the hex-encoded digest of everything added so far.
func (f *Fingerprint) Hex() string {
	return hex.EncodeToString(f.h.Sum(nil))
}
