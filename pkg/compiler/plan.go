// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"fmt"
	"sort"

	"scarb/pkg/core"
)

// PlanOpts selects what the planner emits.
type PlanOpts struct {
	Profile core.Profile
	// Features is the user's feature selection, applied to the root
	// package of every unit.
	Features core.FeaturesOpts
	// WithTests additionally plans the test targets of every member.
	WithTests bool
}

// Plan turns a resolved graph into an ordered list of compilation
// units: one CairoUnit per (member, target) pair plus one ProcMacroUnit
// per procedural-macro package in any unit's closure. Proc-macro units
// come first; within each group units are ordered so dependencies build
// before dependents.
func Plan(
	members []*core.Package,
	resolve *core.Resolve,
	packages map[core.PackageId]*core.Package,
	opts PlanOpts,
) ([]Unit, error) {
	p := &planner{
		resolve:  resolve,
		packages: packages,
		opts:     opts,
		plugins:  make(map[core.PackageId]*ProcMacroUnit),
	}

	topo, err := resolve.Graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	p.topo = topo

	var cairoUnits []*CairoUnit
	for _, member := range members {
		for _, target := range member.Manifest.Targets {
			if target.Kind == core.TargetKindTest && !opts.WithTests {
				continue
			}
			if target.Kind == core.TargetKindCairoPlugin {
				p.pluginUnit(member)
				continue
			}
			unit, err := p.cairoUnit(member, target)
			if err != nil {
				return nil, err
			}
			cairoUnits = append(cairoUnits, unit)
		}
	}

	// Dependencies come last in the topological order of the resolve
	// graph, so build order is its reverse.
	rank := make(map[core.PackageId]int, len(p.topo))
	for i, id := range p.topo {
		rank[id] = len(p.topo) - i
	}
	sort.SliceStable(cairoUnits, func(i, j int) bool {
		return rank[cairoUnits[i].Main().Id] < rank[cairoUnits[j].Main().Id]
	})

	var pluginUnits []*ProcMacroUnit
	for _, id := range p.topo {
		if unit, ok := p.plugins[id]; ok {
			pluginUnits = append(pluginUnits, unit)
		}
	}
	// Plugins before any unit that may expand through them.
	units := make([]Unit, 0, len(pluginUnits)+len(cairoUnits))
	for i := len(pluginUnits) - 1; i >= 0; i-- {
		units = append(units, pluginUnits[i])
	}
	for _, unit := range cairoUnits {
		units = append(units, unit)
	}
	return units, nil
}

type planner struct {
	resolve  *core.Resolve
	packages map[core.PackageId]*core.Package
	opts     PlanOpts
	topo     []core.PackageId
	plugins  map[core.PackageId]*ProcMacroUnit
}

func (p *planner) pluginUnit(pkg *core.Package) *ProcMacroUnit {
	if unit, ok := p.plugins[pkg.Id]; ok {
		return unit
	}
	unit := NewProcMacroUnit(pkg, p.opts.Profile)
	p.plugins[pkg.Id] = unit
	return unit
}

func (p *planner) cairoUnit(member *core.Package, target core.Target) (*CairoUnit, error) {
	closure := p.resolve.Closure(member.Id, target.Kind)

	features, err := p.resolveFeatures(member, closure)
	if err != nil {
		return nil, err
	}

	unit := &CairoUnit{
		unitBase: unitBase{main: member},
		Target:   target,
		Profile:  p.opts.Profile,
		Config:   member.Manifest.CompilerConfig,
	}

	var components []Component
	for _, id := range closure {
		pkg, ok := p.packages[id]
		if !ok {
			return nil, fmt.Errorf("package %s is resolved but not downloaded", id)
		}
		if pkg.Manifest.IsCairoPlugin() {
			unit.Plugins = append(unit.Plugins, id)
			p.pluginUnit(pkg)
			continue
		}
		component := Component{
			Package:    pkg,
			Name:       string(id.Name()),
			Edition:    pkg.Manifest.Edition,
			Features:   features[id],
			SourceRoot: p.sourceRoot(pkg, member, target),
		}
		components = append(components, component)
	}

	// Main component first, `core` second.
	sort.SliceStable(components, func(i, j int) bool {
		ri, rj := componentRank(components[i], member.Id), componentRank(components[j], member.Id)
		return ri < rj
	})
	unit.Components = components
	unit.Cfg = NewCfgSet(string(target.Kind), unit.Config.EnableGas, features[member.Id])
	return unit, nil
}

func componentRank(c Component, mainId core.PackageId) int {
	switch {
	case c.Package.Id == mainId:
		return 0
	case c.Package.Id.IsCore():
		return 1
	default:
		return 2
	}
}

// sourceRoot resolves the crate root of a component: the unit's target
// overrides it for the main package, everything else uses its own lib
// target (or the default layout).
func (p *planner) sourceRoot(pkg, member *core.Package, target core.Target) string {
	if pkg.Id == member.Id {
		return target.SourceRoot(pkg.Root())
	}
	for _, t := range pkg.Manifest.Targets {
		if t.Kind == core.TargetKindLib {
			return t.SourceRoot(pkg.Root())
		}
	}
	return core.NewTarget(core.TargetKindLib, pkg.Id.Name()).SourceRoot(pkg.Root())
}

// resolveFeatures computes the effective feature set of every package
// in the closure. The root follows the user's selection; dependencies
// get the features requested on their incoming edges plus `dep/feat`
// activations, walked in dependency order so every request is known
// before a package is resolved.
func (p *planner) resolveFeatures(member *core.Package, closure []core.PackageId) (map[core.PackageId][]string, error) {
	inClosure := make(map[core.PackageName]core.PackageId, len(closure))
	for _, id := range closure {
		inClosure[id.Name()] = id
	}

	type request struct {
		listed     []string
		useDefault bool
	}
	requests := map[core.PackageId]*request{
		member.Id: {useDefault: true},
	}
	enabled := make(map[core.PackageId][]string, len(closure))

	for _, id := range p.topo {
		req, ok := requests[id]
		if !ok {
			continue
		}
		pkg := p.packages[id]
		if pkg == nil || pkg.Manifest.IsCairoPlugin() {
			continue
		}

		var feats []string
		var depFeats map[core.PackageName][]string
		var err error
		if id == member.Id {
			feats, depFeats, err = pkg.Manifest.Features.Resolve(p.opts.Features)
		} else {
			feats, depFeats, err = pkg.Manifest.Features.Resolve(core.FeaturesOpts{
				Selector:  core.SelectorOnlyListed,
				Listed:    dedupSorted(req.listed),
				NoDefault: !req.useDefault,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve features of %s: %w", id, err)
		}
		enabled[id] = feats

		for _, dep := range pkg.Manifest.Summary.Dependencies {
			depId, ok := inClosure[dep.Name]
			if !ok {
				continue
			}
			depReq := requests[depId]
			if depReq == nil {
				depReq = &request{}
				requests[depId] = depReq
			}
			depReq.listed = append(depReq.listed, dep.Features...)
			depReq.listed = append(depReq.listed, depFeats[dep.Name]...)
			if dep.DefaultFeatures {
				depReq.useDefault = true
			}
		}
	}
	return enabled, nil
}

func dedupSorted(vs []string) []string {
	sort.Strings(vs)
	out := vs[:0]
	for i, v := range vs {
		if i == 0 || vs[i-1] != v {
			out = append(out, v)
		}
	}
	return out
}
