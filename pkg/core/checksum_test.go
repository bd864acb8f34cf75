// SPDX-License-Identifier: MPL-2.0

package core

import (
	"errors"
	"strings"
	"testing"
)

func TestChecksum_RoundTrip(t *testing.T) {
	t.Parallel()
	sum := ChecksumOfBytes([]byte("hello"))
	parsed, err := ParseChecksum(sum.String())
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Equal(sum) {
		t.Error("parsed checksum differs from original")
	}
}

func TestParseChecksum_Invalid(t *testing.T) {
	t.Parallel()
	for _, s := range []string{
		"md5:abcdef",
		"sha256:tooshort",
		"sha256:" + strings.Repeat("zz", 32),
	} {
		if _, err := ParseChecksum(s); err == nil {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestChecksumError_Message(t *testing.T) {
	t.Parallel()
	err := &ChecksumError{
		Expected: ChecksumOfBytes([]byte("a")),
		Got:      ChecksumOfBytes([]byte("b")),
	}
	if !strings.Contains(err.Error(), "failed to verify the checksum of downloaded archive") {
		t.Errorf("unexpected message: %q", err)
	}
	if !errors.Is(err, ErrChecksum) {
		t.Error("ChecksumError must unwrap to ErrChecksum")
	}
}

func TestVersionReq_Matching(t *testing.T) {
	t.Parallel()
	req, err := ParseVersionReq("^1.2.0")
	if err != nil {
		t.Fatal(err)
	}
	if !req.Matches(mustVersion(t, "1.3.0")) {
		t.Error("^1.2.0 should match 1.3.0")
	}
	if req.Matches(mustVersion(t, "2.0.0")) {
		t.Error("^1.2.0 should not match 2.0.0")
	}
	if !AnyVersionReq().Matches(mustVersion(t, "0.0.1")) {
		t.Error("* should match anything")
	}

	exact := ExactVersionReq(mustVersion(t, "1.2.3"))
	if !exact.Matches(mustVersion(t, "1.2.3")) || exact.Matches(mustVersion(t, "1.2.4")) {
		t.Error("exact requirement must match only its version")
	}
}
