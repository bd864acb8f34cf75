// SPDX-License-Identifier: MPL-2.0

// Package stablehash produces short, deterministic digests used for
// fingerprints, source identifiers, and cache keys. The digests must be
// stable across processes and scarb versions, so all inputs are fed through
// a keyless BLAKE3 hasher in an explicitly defined order.
package stablehash

import (
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/zeebo/blake3"
)

// DigestLen is the number of hex characters in a rendered digest. Short
// digests keep target directory names readable while remaining unique for
// any realistic workspace size.
const DigestLen = 16

// Hasher accumulates values into a stable digest.
type Hasher struct {
	h *blake3.Hasher
}

// New returns an empty Hasher.
func New() *Hasher {
	return &Hasher{h: blake3.New()}
}

// WriteString hashes a length-prefixed string. The length prefix prevents
// ambiguity between consecutive fields ("ab"+"c" vs "a"+"bc").
func (s *Hasher) WriteString(v string) {
	s.writeLen(len(v))
	_, _ = s.h.WriteString(v)
}

// WriteBytes hashes a length-prefixed byte slice.
func (s *Hasher) WriteBytes(v []byte) {
	s.writeLen(len(v))
	_, _ = s.h.Write(v)
}

// WriteUint64 hashes a fixed-width integer.
func (s *Hasher) WriteUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = s.h.Write(buf[:])
}

// WriteBool hashes a boolean as a single byte.
func (s *Hasher) WriteBool(v bool) {
	if v {
		_, _ = s.h.Write([]byte{1})
	} else {
		_, _ = s.h.Write([]byte{0})
	}
}

// WriteStringsSorted hashes a set of strings independent of input order.
func (s *Hasher) WriteStringsSorted(vs []string) {
	sorted := make([]string, len(vs))
	copy(sorted, vs)
	sort.Strings(sorted)
	s.writeLen(len(sorted))
	for _, v := range sorted {
		s.WriteString(v)
	}
}

// WriteFile hashes the contents of the file at path.
func (s *Hasher) WriteFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s.WriteString(path)
	if _, err := io.Copy(s.h, f); err != nil {
		return err
	}
	return nil
}

func (s *Hasher) writeLen(n int) {
	s.WriteUint64(uint64(n))
}

// Digest returns the accumulated digest as DigestLen hex characters.
func (s *Hasher) Digest() string {
	sum := s.h.Sum(nil)
	const hexdigits = "0123456789abcdef"
	out := make([]byte, DigestLen)
	for i := range DigestLen {
		b := sum[i/2]
		if i%2 == 0 {
			b >>= 4
		}
		out[i] = hexdigits[b&0xf]
	}
	return string(out)
}

// String hashes a single string and returns its digest. Convenience for
// ident-style uses (source id idents, cache keys).
func String(v string) string {
	h := New()
	h.WriteString(v)
	return h.Digest()
}
