// SPDX-License-Identifier: MPL-2.0

package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"

	"scarb/pkg/core"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestRender(t *testing.T) {
	t.Parallel()
	registry, err := core.NewRegistrySourceId("https://scarbs.xyz/")
	if err != nil {
		t.Fatal(err)
	}
	git, err := core.NewGitSourceId("https://github.com/starkware-libs/cairo.git",
		core.GitRef{Kind: core.GitRefTag, Value: "test"})
	if err != nil {
		t.Fatal(err)
	}

	lock := New([]PackageLock{
		{
			Name:         "third",
			Version:      mustVersion(t, "2.1.0"),
			SourceId:     git,
		},
		{
			Name:         "core",
			Version:      mustVersion(t, "1.0.0"),
			SourceId:     registry,
			Checksum:     core.ChecksumOfBytes([]byte("archive")),
			Dependencies: []string{"starknet", "locker"},
		},
		{
			Name:         "starknet",
			Version:      mustVersion(t, "1.0.0"),
			Dependencies: []string{"core"},
		},
	})

	want := Header + `
version = "1"

[[package]]
name = "core"
source = "registry+https://scarbs.xyz"
version = "1.0.0"
checksum = "` + core.ChecksumOfBytes([]byte("archive")).String() + `"
dependencies = [
 "locker",
 "starknet",
]

[[package]]
name = "starknet"
version = "1.0.0"
dependencies = [
 "core",
]

[[package]]
name = "third"
source = "git+https://github.com/starkware-libs/cairo.git?tag=test"
version = "2.1.0"
`
	if got := lock.Render(); got != want {
		t.Errorf("rendered lockfile mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	registry, err := core.NewRegistrySourceId("https://scarbs.xyz/")
	if err != nil {
		t.Fatal(err)
	}
	lock := New([]PackageLock{
		{Name: "hello", Version: mustVersion(t, "0.1.0")},
		{
			Name:         "dep",
			Version:      mustVersion(t, "1.0.0"),
			SourceId:     registry,
			Checksum:     core.ChecksumOfBytes([]byte("x")),
			Dependencies: []string{"hello"},
		},
	})

	parsed, err := Parse(lock.Render())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Render() != lock.Render() {
		t.Errorf("round-trip changed content:\n%s\nvs\n%s", parsed.Render(), lock.Render())
	}
	dep := parsed.PackagesMatching("dep")
	if len(dep) != 1 {
		t.Fatalf("PackagesMatching = %v", dep)
	}
	if !dep[0].Checksum.Equal(core.ChecksumOfBytes([]byte("x"))) {
		t.Error("checksum lost in round-trip")
	}
	if dep[0].SourceId != registry {
		t.Error("source id lost in round-trip")
	}
}

func TestParse_LeadingComments(t *testing.T) {
	t.Parallel()
	content := "# custom preamble\n" + Header + "\nversion = \"1\"\n"
	lock, err := Parse(content)
	if err != nil {
		t.Fatal(err)
	}
	if !lock.IsEmpty() {
		t.Errorf("packages = %v", lock.Packages)
	}
}

func TestParse_UnsupportedVersion(t *testing.T) {
	t.Parallel()
	if _, err := Parse(Header + "\nversion = \"9\"\n"); err == nil {
		t.Error("unknown lockfile version must be rejected")
	}
}

func TestReadFromPath_Missing(t *testing.T) {
	t.Parallel()
	lock, err := ReadFromPath(filepath.Join(t.TempDir(), "Scarb.lock"))
	if err != nil {
		t.Fatal(err)
	}
	if !lock.IsEmpty() {
		t.Error("missing lockfile must parse as empty")
	}
}

func TestWriteToPath_PreservesUpToDateFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "Scarb.lock")
	lock := New([]PackageLock{{Name: "hello", Version: mustVersion(t, "0.1.0")}})
	if err := lock.WriteToPath(path); err != nil {
		t.Fatal(err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := lock.WriteToPath(path); err != nil {
		t.Fatal(err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("rewriting identical content must not touch the file")
	}
}
