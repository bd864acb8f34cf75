// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"

	"scarb/internal/dag"
	"scarb/internal/flock"
	"scarb/internal/ui"
	"scarb/pkg/core"
)

var testCompilerVersion = semver.MustParse("2.7.0")

type pkgSpec struct {
	name     string
	version  string
	targets  []core.Target
	deps     []core.ManifestDependency
	features core.FeaturesManifest
}

func makePkg(t *testing.T, spec pkgSpec) *core.Package {
	t.Helper()
	dir := filepath.Join(t.TempDir(), spec.name)
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "lib.cairo"), []byte("fn f() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sid, err := core.NewPathSourceId(dir)
	if err != nil {
		t.Fatal(err)
	}
	id := core.NewPackageId(core.MustPackageName(spec.name), semver.MustParse(spec.version), sid)
	targets := spec.targets
	if targets == nil {
		targets = []core.Target{core.NewTarget(core.TargetKindLib, id.Name())}
	}
	return &core.Package{
		Id:           id,
		ManifestPath: filepath.Join(dir, core.ManifestFileName),
		Manifest: &core.Manifest{
			Summary: core.Summary{
				PackageId:    id,
				Dependencies: spec.deps,
				NoCore:       true,
			},
			Targets:        targets,
			Edition:        core.DefaultEdition,
			Features:       spec.features,
			CompilerConfig: core.DefaultCompilerConfig(core.DevProfile()),
		},
	}
}

func libDep(pkg *core.Package, kind core.DepKind, features ...string) core.ManifestDependency {
	return core.ManifestDependency{
		Name:            pkg.Id.Name(),
		VersionReq:      core.ExactVersionReq(pkg.Id.Version()),
		SourceId:        pkg.Id.SourceId(),
		Kind:            kind,
		Features:        features,
		DefaultFeatures: true,
	}
}

// buildResolve assembles a resolve graph from explicit edges.
func buildResolve(pkgs []*core.Package, edges map[*core.Package][]*core.Package, devEdges map[*core.Package][]*core.Package) (*core.Resolve, map[core.PackageId]*core.Package) {
	graph := dag.New[core.PackageId, core.DependencyEdge]()
	summaries := make(map[core.PackageId]*core.Summary)
	packages := make(map[core.PackageId]*core.Package)
	for _, pkg := range pkgs {
		graph.AddNode(pkg.Id)
		summaries[pkg.Id] = &pkg.Manifest.Summary
		packages[pkg.Id] = pkg
	}
	for from, tos := range edges {
		for _, to := range tos {
			graph.AddEdge(from.Id, to.Id, core.DependencyEdge{}, core.MergeEdges)
		}
	}
	for from, tos := range devEdges {
		for _, to := range tos {
			graph.AddEdge(from.Id, to.Id, core.DependencyEdge{core.TargetKindTest}, core.MergeEdges)
		}
	}
	return &core.Resolve{Graph: graph, Summaries: summaries}, packages
}

func TestPlan_ComponentOrderAndPlugins(t *testing.T) {
	t.Parallel()
	corePkg := makePkg(t, pkgSpec{name: "core", version: "2.7.0"})
	util := makePkg(t, pkgSpec{name: "util", version: "1.0.0"})
	macros := makePkg(t, pkgSpec{name: "macros", version: "1.0.0", targets: []core.Target{
		core.NewTarget(core.TargetKindCairoPlugin, "macros"),
	}})
	hello := makePkg(t, pkgSpec{name: "hello", version: "0.1.0", deps: []core.ManifestDependency{
		libDep(corePkg, core.DepKindNormal()),
		libDep(util, core.DepKindNormal()),
		libDep(macros, core.DepKindNormal()),
	}})

	resolve, packages := buildResolve(
		[]*core.Package{hello, corePkg, util, macros},
		map[*core.Package][]*core.Package{hello: {corePkg, util, macros}},
		nil)

	units, err := Plan([]*core.Package{hello}, resolve, packages, PlanOpts{Profile: core.DevProfile()})
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}

	plugin, ok := units[0].(*ProcMacroUnit)
	if !ok || plugin.Main().Id != macros.Id {
		t.Fatalf("first unit = %v, want proc-macro unit for macros", units[0])
	}
	unit, ok := units[1].(*CairoUnit)
	if !ok {
		t.Fatalf("second unit = %T, want CairoUnit", units[1])
	}

	var names []string
	for _, c := range unit.Components {
		names = append(names, c.Name)
	}
	if len(names) != 3 || names[0] != "hello" || names[1] != "core" || names[2] != "util" {
		t.Errorf("component order = %v", names)
	}
	if len(unit.Plugins) != 1 || unit.Plugins[0] != macros.Id {
		t.Errorf("unit plugins = %v", unit.Plugins)
	}
}

func TestPlan_TestTargets(t *testing.T) {
	t.Parallel()
	devDep := makePkg(t, pkgSpec{name: "asserts", version: "1.0.0"})
	hello := makePkg(t, pkgSpec{
		name:    "hello",
		version: "0.1.0",
		targets: []core.Target{
			core.NewTarget(core.TargetKindLib, "hello"),
			core.NewTarget(core.TargetKindTest, "hello"),
		},
		deps: []core.ManifestDependency{libDep(devDep, core.DepKindDev())},
	})

	resolve, packages := buildResolve(
		[]*core.Package{hello, devDep},
		nil,
		map[*core.Package][]*core.Package{hello: {devDep}})

	units, err := Plan([]*core.Package{hello}, resolve, packages, PlanOpts{Profile: core.DevProfile()})
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units without tests, want 1", len(units))
	}
	libUnit := units[0].(*CairoUnit)
	if len(libUnit.Components) != 1 {
		t.Errorf("lib unit must not see dev-dependencies: %v", libUnit.Components)
	}

	units, err = Plan([]*core.Package{hello}, resolve, packages, PlanOpts{Profile: core.DevProfile(), WithTests: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units with tests, want 2", len(units))
	}
	testUnit := units[1].(*CairoUnit)
	if testUnit.Target.Kind != core.TargetKindTest {
		t.Fatalf("second unit kind = %s", testUnit.Target.Kind)
	}
	if len(testUnit.Components) != 2 {
		t.Errorf("test unit must include dev-dependencies: %v", testUnit.Components)
	}
}

func TestPlan_FeatureUnification(t *testing.T) {
	t.Parallel()
	util := makePkg(t, pkgSpec{name: "util", version: "1.0.0", features: core.FeaturesManifest{
		"x": nil,
	}})
	hello := makePkg(t, pkgSpec{
		name:    "hello",
		version: "0.1.0",
		deps:    []core.ManifestDependency{libDep(util, core.DepKindNormal(), "x")},
		features: core.FeaturesManifest{
			"default": {"a"},
			"a":       nil,
		},
	})

	resolve, packages := buildResolve(
		[]*core.Package{hello, util},
		map[*core.Package][]*core.Package{hello: {util}},
		nil)

	units, err := Plan([]*core.Package{hello}, resolve, packages, PlanOpts{Profile: core.DevProfile()})
	if err != nil {
		t.Fatal(err)
	}
	unit := units[0].(*CairoUnit)

	main := unit.MainComponent()
	if strings.Join(main.Features, ",") != "a,default" {
		t.Errorf("main features = %v", main.Features)
	}
	for _, c := range unit.Components {
		if c.Name == "util" && strings.Join(c.Features, ",") != "x" {
			t.Errorf("util features = %v", c.Features)
		}
	}

	cfg := strings.Join(unit.Cfg.Strings(), " ")
	if !strings.Contains(cfg, `feature: "a"`) || !strings.Contains(cfg, `gas: "enabled"`) {
		t.Errorf("cfg = %s", cfg)
	}
}

func TestFingerprint_Determinism(t *testing.T) {
	t.Parallel()
	hello := makePkg(t, pkgSpec{name: "hello", version: "0.1.0"})
	resolve, packages := buildResolve([]*core.Package{hello}, nil, nil)

	units, err := Plan([]*core.Package{hello}, resolve, packages, PlanOpts{Profile: core.DevProfile()})
	if err != nil {
		t.Fatal(err)
	}
	unit := units[0].(*CairoUnit)

	first, err := Fingerprint(unit, testCompilerVersion)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Fingerprint(unit, testCompilerVersion)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("fingerprint of unchanged inputs must be stable")
	}

	if err := os.WriteFile(filepath.Join(hello.Root(), "src", "lib.cairo"), []byte("fn f() -> felt252 { 1 }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := Fingerprint(unit, testCompilerVersion)
	if err != nil {
		t.Fatal(err)
	}
	if changed == first {
		t.Error("source edit must change the fingerprint")
	}

	otherVersion, err := Fingerprint(unit, semver.MustParse("2.8.0"))
	if err != nil {
		t.Fatal(err)
	}
	if otherVersion == changed {
		t.Error("compiler upgrade must change the fingerprint")
	}
}

// fakeCompiler records invocations and writes the expected artifacts.
type fakeCompiler struct {
	calls int
	fail  bool
}

func (c *fakeCompiler) Compile(_ context.Context, unit *CairoUnit, outputDir string, onDiagnostic DiagnosticCallback) error {
	c.calls++
	if c.fail {
		onDiagnostic(Diagnostic{Severity: SeverityError, Message: "type mismatch"})
		return context.Canceled
	}
	for _, artifact := range unit.Artifacts(outputDir) {
		if err := os.WriteFile(artifact, []byte("{}"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestDriver_FreshnessSkip(t *testing.T) {
	t.Parallel()
	hello := makePkg(t, pkgSpec{name: "hello", version: "0.1.0"})
	resolve, packages := buildResolve([]*core.Package{hello}, nil, nil)
	units, err := Plan([]*core.Package{hello}, resolve, packages, PlanOpts{Profile: core.DevProfile()})
	if err != nil {
		t.Fatal(err)
	}

	targetFs := flock.NewOutputFilesystem(filepath.Join(t.TempDir(), "target"))
	fake := &fakeCompiler{}
	var out, errOut bytes.Buffer
	u := ui.New(ui.VerbosityNormal, ui.FormatText, &out, &errOut)
	driver := NewDriver(targetFs, fake, nil, u, testCompilerVersion)

	if err := driver.Build(context.Background(), units); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 1 {
		t.Fatalf("compiler invoked %d times, want 1", fake.calls)
	}
	if !strings.Contains(out.String(), "Compiling") || !strings.Contains(out.String(), "Finished") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := driver.Build(context.Background(), units); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 1 {
		t.Errorf("fresh unit recompiled; compiler invoked %d times", fake.calls)
	}
	if strings.Contains(out.String(), "Compiling") {
		t.Errorf("fresh build printed a Compiling line: %q", out.String())
	}

	// Editing a source makes the unit stale again.
	if err := os.WriteFile(filepath.Join(hello.Root(), "src", "lib.cairo"), []byte("fn f() -> felt252 { 2 }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := driver.Build(context.Background(), units); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 2 {
		t.Errorf("stale unit not recompiled; compiler invoked %d times", fake.calls)
	}
}

func TestDriver_CompileFailure(t *testing.T) {
	t.Parallel()
	hello := makePkg(t, pkgSpec{name: "hello", version: "0.1.0"})
	resolve, packages := buildResolve([]*core.Package{hello}, nil, nil)
	units, err := Plan([]*core.Package{hello}, resolve, packages, PlanOpts{Profile: core.DevProfile()})
	if err != nil {
		t.Fatal(err)
	}

	targetFs := flock.NewOutputFilesystem(filepath.Join(t.TempDir(), "target"))
	var out, errOut bytes.Buffer
	u := ui.New(ui.VerbosityNormal, ui.FormatText, &out, &errOut)
	driver := NewDriver(targetFs, &fakeCompiler{fail: true}, nil, u, testCompilerVersion)

	if err := driver.Build(context.Background(), units); err == nil {
		t.Fatal("failing compilation must fail the build")
	}
	if !strings.Contains(errOut.String(), "type mismatch") {
		t.Errorf("diagnostics not forwarded: %q", errOut.String())
	}
}

// fakePluginBuilder reports a fixed freshness and records builds.
type fakePluginBuilder struct {
	fresh  bool
	builds int
}

func (b *fakePluginBuilder) Fresh(_ *ProcMacroUnit) bool { return b.fresh }

func (b *fakePluginBuilder) EnsureBuilt(_ context.Context, unit *ProcMacroUnit) (string, error) {
	b.builds++
	return "lib" + string(unit.Main().Id.Name()) + ".so", nil
}

func TestDriver_PluginFreshnessSkip(t *testing.T) {
	t.Parallel()
	macros := makePkg(t, pkgSpec{name: "macros", version: "0.1.0"})
	units := []Unit{NewProcMacroUnit(macros, core.DevProfile())}
	targetFs := flock.NewOutputFilesystem(filepath.Join(t.TempDir(), "target"))

	stale := &fakePluginBuilder{}
	var out, errOut bytes.Buffer
	u := ui.New(ui.VerbosityVerbose, ui.FormatText, &out, &errOut)
	driver := NewDriver(targetFs, &fakeCompiler{}, stale, u, testCompilerVersion)
	if err := driver.Build(context.Background(), units); err != nil {
		t.Fatal(err)
	}
	if stale.builds != 1 {
		t.Fatalf("stale plugin built %d times, want 1", stale.builds)
	}
	if !strings.Contains(out.String(), "Compiling") {
		t.Errorf("stale plugin build printed no Compiling line: %q", out.String())
	}

	fresh := &fakePluginBuilder{fresh: true}
	out.Reset()
	driver = NewDriver(targetFs, &fakeCompiler{}, fresh, u, testCompilerVersion)
	if err := driver.Build(context.Background(), units); err != nil {
		t.Fatal(err)
	}
	if fresh.builds != 0 {
		t.Errorf("fresh plugin rebuilt %d times", fresh.builds)
	}
	if strings.Contains(out.String(), "Compiling") {
		t.Errorf("fresh plugin printed a Compiling line: %q", out.String())
	}
	if !strings.Contains(out.String(), "Fresh") {
		t.Errorf("fresh plugin printed no Fresh line: %q", out.String())
	}
}

func TestCfgSet(t *testing.T) {
	t.Parallel()
	set := NewCfgSet("lib", false, []string{"b", "a"})
	got := strings.Join(set.Strings(), ", ")
	want := `target: "lib", gas: "disabled", feature: "a", feature: "b"`
	if got != want {
		t.Errorf("cfg = %s, want %s", got, want)
	}
}
