// SPDX-License-Identifier: MPL-2.0

package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ChecksumError is returned when a downloaded archive does not match the
// checksum its registry index declared. The archive bytes must not be
// interpreted once this error is raised.
type ChecksumError struct {
	Expected Checksum
	Got      Checksum
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf(
		"failed to verify the checksum of downloaded archive\nexpected: %s\ngot:      %s",
		e.Expected, e.Got)
}

// ErrChecksum is the sentinel wrapped by ChecksumError.
var ErrChecksum = errors.New("checksum mismatch")

// Unwrap lets callers detect checksum failures with errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksum }

// Checksum is a SHA-256 digest in the registry wire format
// `sha256:<64 hex digits>`.
type Checksum struct {
	hexDigest string
}

const checksumPrefix = "sha256:"

// ParseChecksum parses the wire format.
func ParseChecksum(s string) (Checksum, error) {
	rest, ok := strings.CutPrefix(s, checksumPrefix)
	if !ok {
		return Checksum{}, fmt.Errorf("checksum `%s` does not start with %q", s, checksumPrefix)
	}
	if len(rest) != sha256.Size*2 {
		return Checksum{}, fmt.Errorf("checksum `%s` has invalid digest length", s)
	}
	if _, err := hex.DecodeString(rest); err != nil {
		return Checksum{}, fmt.Errorf("checksum `%s` is not valid hex: %w", s, err)
	}
	return Checksum{hexDigest: strings.ToLower(rest)}, nil
}

// ChecksumOf digests everything readable from r.
func ChecksumOf(r io.Reader) (Checksum, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Checksum{}, fmt.Errorf("failed to digest archive: %w", err)
	}
	return Checksum{hexDigest: hex.EncodeToString(h.Sum(nil))}, nil
}

// ChecksumOfBytes digests a byte slice.
func ChecksumOfBytes(b []byte) Checksum {
	sum := sha256.Sum256(b)
	return Checksum{hexDigest: hex.EncodeToString(sum[:])}
}

// MarshalText implements encoding.TextMarshaler for index records.
func (c Checksum) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for index records.
func (c *Checksum) UnmarshalText(text []byte) error {
	parsed, err := ParseChecksum(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IsZero reports whether no checksum is set.
func (c Checksum) IsZero() bool { return c.hexDigest == "" }

// Equal compares digests byte for byte.
func (c Checksum) Equal(other Checksum) bool { return c.hexDigest == other.hexDigest }

func (c Checksum) String() string { return checksumPrefix + c.hexDigest }
