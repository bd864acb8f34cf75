// SPDX-License-Identifier: MPL-2.0

package core

import (
	"testing"

	"github.com/Masterminds/semver/v3"
)

func TestSourceId_Interning(t *testing.T) {
	t.Parallel()
	a, err := NewGitSourceId("https://example.com/foo.git", GitRef{Kind: GitRefTag, Value: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewGitSourceId("https://example.com/foo.git", GitRef{Kind: GitRefTag, Value: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("equal sources must intern to the same id")
	}

	c, err := NewGitSourceId("https://example.com/foo.git", GitRef{Kind: GitRefTag, Value: "v2"})
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Error("different refs must yield different ids")
	}
}

func TestSourceId_PrettyURLRoundTrip(t *testing.T) {
	t.Parallel()
	path, err := NewPathSourceId("/tmp/pkgs/foo")
	if err != nil {
		t.Fatal(err)
	}
	git, err := NewGitSourceId("https://github.com/example/lib.git", GitRef{Kind: GitRefBranch, Value: "main"})
	if err != nil {
		t.Fatal(err)
	}
	registry, err := NewRegistrySourceId("https://registry.example.com")
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []SourceId{path, git, registry, StdSourceId()} {
		parsed, err := SourceIdFromPrettyURL(id.PrettyURL())
		if err != nil {
			t.Fatalf("round trip of %s failed: %v", id.PrettyURL(), err)
		}
		if parsed != id {
			t.Errorf("round trip of %s produced %s", id.PrettyURL(), parsed.PrettyURL())
		}
	}
}

func TestSourceId_RegistryKinds(t *testing.T) {
	t.Parallel()
	local, err := NewRegistrySourceId("file:///srv/registry")
	if err != nil {
		t.Fatal(err)
	}
	if local.Kind() != SourceKindRegistryLocal {
		t.Errorf("file URL should be a local registry, got %v", local.Kind())
	}
	remote, err := NewRegistrySourceId("https://registry.example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if remote.Kind() != SourceKindRegistryHTTP {
		t.Errorf("https URL should be an HTTP registry, got %v", remote.Kind())
	}
}

func TestNewPathSourceId_RequiresAbsolute(t *testing.T) {
	t.Parallel()
	if _, err := NewPathSourceId("relative/dir"); err == nil {
		t.Error("relative paths must be rejected")
	}
}

func TestPackageId_Display(t *testing.T) {
	t.Parallel()
	src, err := NewPathSourceId("/tmp/pkgs/foo")
	if err != nil {
		t.Fatal(err)
	}
	id := NewPackageId(MustPackageName("foo"), semver.MustParse("0.1.0"), src)
	if got, want := id.String(), "foo 0.1.0 (/tmp/pkgs/foo)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	again := NewPackageId(MustPackageName("foo"), semver.MustParse("0.1.0"), src)
	if id != again {
		t.Error("equal package ids must intern to the same handle")
	}
}

func TestPackageId_Tarball(t *testing.T) {
	t.Parallel()
	src, _ := NewRegistrySourceId("https://registry.example.com")
	id := NewPackageId(MustPackageName("bar"), semver.MustParse("1.0.0"), src)
	if got := id.Tarball(); got != "bar-1.0.0.tar.zst" {
		t.Errorf("Tarball() = %q", got)
	}
}
