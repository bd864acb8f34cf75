// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"

	"scarb/internal/dirs"
	"scarb/internal/flock"
	"scarb/pkg/core"
	"scarb/pkg/lockfile"
	"scarb/pkg/registry"
	"scarb/pkg/source"
)

var compilerVersion = semver.MustParse("2.7.0")

func testCache(t *testing.T, std *source.StdSource) *source.Cache {
	t.Helper()
	appDirs := &dirs.AppDirs{
		Cache:  flock.NewOutputFilesystem(filepath.Join(t.TempDir(), "cache")),
		Config: flock.NewFilesystem(filepath.Join(t.TempDir(), "config")),
	}
	cache, err := source.NewCache(source.NewMap(appDirs, false, std))
	if err != nil {
		t.Fatal(err)
	}
	return cache
}

func writePackageDir(t *testing.T, name, version, extra string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := "[package]\nname = \"" + name + "\"\nversion = \"" + version + "\"\nno-core = true\n" + extra
	if err := os.WriteFile(filepath.Join(dir, core.ManifestFileName), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "lib.cairo"), []byte("fn f() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// publishDirs stands up a local registry holding the packages at the
// given directories.
func publishDirs(t *testing.T, pkgDirs ...string) core.SourceId {
	t.Helper()
	root := t.TempDir()
	regSid, err := core.NewRegistrySourceId("file://" + root)
	if err != nil {
		t.Fatal(err)
	}
	client, err := registry.NewLocalClient(regSid)
	if err != nil {
		t.Fatal(err)
	}
	for _, dir := range pkgDirs {
		pathSid, err := core.NewPathSourceId(dir)
		if err != nil {
			t.Fatal(err)
		}
		pkgSrc := source.NewPathSource(dir, pathSid)
		summaries, err := pkgSrc.Query(context.Background(), core.ManifestDependency{
			Name:       core.MustPackageName(filepath.Base(dir)),
			VersionReq: core.AnyVersionReq(),
			SourceId:   pathSid,
		})
		if err != nil || len(summaries) != 1 {
			t.Fatalf("loading %s: %v", dir, err)
		}
		pkg, err := pkgSrc.Download(context.Background(), summaries[0].PackageId)
		if err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		if err := registry.CreateArchive(pkg, &buf); err != nil {
			t.Fatal(err)
		}
		tarball := filepath.Join(t.TempDir(), pkg.Id.Tarball())
		if err := os.WriteFile(tarball, buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := client.Publish(context.Background(), pkg, tarball); err != nil {
			t.Fatal(err)
		}
	}
	return regSid
}

func memberSummary(t *testing.T, name, version string, deps ...core.ManifestDependency) *core.Summary {
	t.Helper()
	sid, err := core.NewPathSourceId(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatal(err)
	}
	return &core.Summary{
		PackageId:    core.NewPackageId(core.MustPackageName(name), semver.MustParse(version), sid),
		Dependencies: deps,
		NoCore:       true,
	}
}

func dep(t *testing.T, name, req string, sid core.SourceId, kind core.DepKind) core.ManifestDependency {
	t.Helper()
	versionReq, err := core.ParseVersionReq(req)
	if err != nil {
		t.Fatal(err)
	}
	return core.ManifestDependency{
		Name:            core.MustPackageName(name),
		VersionReq:      versionReq,
		SourceId:        sid,
		Kind:            kind,
		DefaultFeatures: true,
	}
}

func selectedVersion(t *testing.T, resolve *core.Resolve, name core.PackageName) *semver.Version {
	t.Helper()
	for _, id := range resolve.PackageIds() {
		if id.Name() == name {
			return id.Version()
		}
	}
	t.Fatalf("package %s not in solution", name)
	return nil
}

func TestResolve_PicksNewest(t *testing.T) {
	t.Parallel()
	regSid := publishDirs(t,
		writePackageDir(t, "foo", "1.0.0", ""),
		writePackageDir(t, "foo", "1.1.0", ""),
	)
	member := memberSummary(t, "hello", "0.1.0",
		dep(t, "foo", "1.0.0", regSid, core.DepKindNormal()))

	resolve, err := Resolve(context.Background(), []*core.Summary{member},
		testCache(t, nil), nil, nil, compilerVersion, Opts{})
	if err != nil {
		t.Fatal(err)
	}
	if got := selectedVersion(t, resolve, "foo"); !got.Equal(semver.MustParse("1.1.0")) {
		t.Errorf("selected foo %s, want 1.1.0", got)
	}
	deps := resolve.DependenciesOf(member.PackageId, core.TargetKindLib)
	if len(deps) != 1 || deps[0].Name() != "foo" {
		t.Errorf("member dependencies = %v", deps)
	}
}

func TestResolve_LockfilePins(t *testing.T) {
	t.Parallel()
	regSid := publishDirs(t,
		writePackageDir(t, "foo", "1.0.0", ""),
		writePackageDir(t, "foo", "1.1.0", ""),
	)
	member := memberSummary(t, "hello", "0.1.0",
		dep(t, "foo", "1.0.0", regSid, core.DepKindNormal()))
	lock := lockfile.New([]lockfile.PackageLock{{
		Name:     "foo",
		Version:  semver.MustParse("1.0.0"),
		SourceId: regSid,
	}})

	resolve, err := Resolve(context.Background(), []*core.Summary{member},
		testCache(t, nil), nil, lock, compilerVersion, Opts{})
	if err != nil {
		t.Fatal(err)
	}
	if got := selectedVersion(t, resolve, "foo"); !got.Equal(semver.MustParse("1.0.0")) {
		t.Errorf("selected foo %s, want locked 1.0.0", got)
	}

	// --update ignores the pin.
	resolve, err = Resolve(context.Background(), []*core.Summary{member},
		testCache(t, nil), nil, lock, compilerVersion, Opts{Update: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := selectedVersion(t, resolve, "foo"); !got.Equal(semver.MustParse("1.1.0")) {
		t.Errorf("selected foo %s, want 1.1.0 after update", got)
	}
}

func TestResolve_VersionConflict(t *testing.T) {
	t.Parallel()
	regSid := publishDirs(t,
		writePackageDir(t, "foo", "1.0.0", ""),
		writePackageDir(t, "bar", "1.0.0", "\n[dependencies]\nfoo = \"2.0.0\"\n"),
	)
	member := memberSummary(t, "hello", "0.1.0",
		dep(t, "foo", "1.0.0", regSid, core.DepKindNormal()),
		dep(t, "bar", "1.0.0", regSid, core.DepKindNormal()))

	_, err := Resolve(context.Background(), []*core.Summary{member},
		testCache(t, nil), nil, nil, compilerVersion, Opts{})
	if err == nil {
		t.Fatal("conflicting requirements must fail the solve")
	}
	if !strings.Contains(err.Error(), "Version solving failed:") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(err.Error(), "foo") {
		t.Errorf("error must name the conflicting package, got %v", err)
	}
}

func TestResolve_MissingPackage(t *testing.T) {
	t.Parallel()
	regSid := publishDirs(t, writePackageDir(t, "foo", "1.0.0", ""))
	member := memberSummary(t, "hello", "0.1.0",
		dep(t, "nonexistent", "1.0.0", regSid, core.DepKindNormal()))

	_, err := Resolve(context.Background(), []*core.Summary{member},
		testCache(t, nil), nil, nil, compilerVersion, Opts{})
	if err == nil || !strings.Contains(err.Error(), "cannot find package nonexistent") {
		t.Errorf("error = %v", err)
	}
}

func TestResolve_IncompatibleSources(t *testing.T) {
	t.Parallel()
	regSid := publishDirs(t, writePackageDir(t, "foo", "1.0.0", ""))
	fooDir := writePackageDir(t, "foo", "1.0.0", "")
	pathSid, err := core.NewPathSourceId(fooDir)
	if err != nil {
		t.Fatal(err)
	}

	member := memberSummary(t, "hello", "0.1.0",
		dep(t, "foo", "1.0.0", regSid, core.DepKindNormal()),
		dep(t, "foo", "1.0.0", pathSid, core.DepKindDev()))

	_, err = Resolve(context.Background(), []*core.Summary{member},
		testCache(t, nil), nil, nil, compilerVersion, Opts{})
	if err == nil || !strings.Contains(err.Error(), "incompatible sources") {
		t.Errorf("error = %v", err)
	}
}

func TestResolve_DevDependencyEdges(t *testing.T) {
	t.Parallel()
	// foo's own dev-dependency names a package that does not exist
	// anywhere; it must not propagate past the workspace root.
	regSid := publishDirs(t,
		writePackageDir(t, "foo", "1.0.0", "\n[dev-dependencies]\nnowhere = \"1.0.0\"\n"),
	)
	member := memberSummary(t, "hello", "0.1.0",
		dep(t, "foo", "1.0.0", regSid, core.DepKindDev()))

	resolve, err := Resolve(context.Background(), []*core.Summary{member},
		testCache(t, nil), nil, nil, compilerVersion, Opts{})
	if err != nil {
		t.Fatal(err)
	}

	if deps := resolve.DependenciesOf(member.PackageId, core.TargetKindLib); len(deps) != 0 {
		t.Errorf("dev-dependency leaked into lib build: %v", deps)
	}
	deps := resolve.DependenciesOf(member.PackageId, core.TargetKindTest)
	if len(deps) != 1 || deps[0].Name() != "foo" {
		t.Errorf("test dependencies = %v", deps)
	}
}

func TestResolve_ImplicitCore(t *testing.T) {
	t.Parallel()
	stdRoot := t.TempDir()
	coreDir := filepath.Join(stdRoot, "core")
	if err := os.MkdirAll(filepath.Join(coreDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := "[package]\nname = \"core\"\nversion = \"" + compilerVersion.String() + "\"\nno-core = true\n"
	if err := os.WriteFile(filepath.Join(coreDir, core.ManifestFileName), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(coreDir, "src", "lib.cairo"), []byte("fn f() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	std := source.NewStdSource(stdRoot, compilerVersion)

	member := memberSummary(t, "hello", "0.1.0")
	member.NoCore = false

	resolve, err := Resolve(context.Background(), []*core.Summary{member},
		testCache(t, std), nil, nil, compilerVersion, Opts{})
	if err != nil {
		t.Fatal(err)
	}
	if got := selectedVersion(t, resolve, core.CorePackageName); !got.Equal(compilerVersion) {
		t.Errorf("core pinned to %s, want %s", got, compilerVersion)
	}
}

func TestResolve_CycleDetection(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	aDir := filepath.Join(base, "a")
	bDir := filepath.Join(base, "b")
	for dir, other := range map[string]string{aDir: bDir, bDir: aDir} {
		if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
			t.Fatal(err)
		}
		name := filepath.Base(dir)
		manifest := "[package]\nname = \"" + name + "\"\nversion = \"0.1.0\"\nno-core = true\n" +
			"\n[dependencies]\n" + filepath.Base(other) + " = { path = \"" + filepath.ToSlash(other) + "\" }\n"
		if err := os.WriteFile(filepath.Join(dir, core.ManifestFileName), []byte(manifest), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "src", "lib.cairo"), []byte("fn f() {}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	aSid, err := core.NewPathSourceId(aDir)
	if err != nil {
		t.Fatal(err)
	}
	bSid, err := core.NewPathSourceId(bDir)
	if err != nil {
		t.Fatal(err)
	}
	member := memberSummary(t, "hello", "0.1.0",
		dep(t, "a", "0.1.0", aSid, core.DepKindNormal()),
		dep(t, "b", "0.1.0", bSid, core.DepKindNormal()))

	_, err = Resolve(context.Background(), []*core.Summary{member},
		testCache(t, nil), nil, nil, compilerVersion, Opts{})
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error = %v", err)
	}
}
