// SPDX-License-Identifier: MPL-2.0

// Package resolver turns workspace member summaries into a locked
// dependency graph. Candidate versions come from a source cache,
// `[patch]` rewrites apply before any source lookup, and an existing
// lockfile pins versions unless an update is requested.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"scarb/internal/dag"
	"scarb/pkg/core"
	"scarb/pkg/lockfile"
	"scarb/pkg/source"
)

// Opts controls a resolve run.
type Opts struct {
	// Update ignores the lockfile's version pins and picks the newest
	// matching candidates.
	Update bool
}

type (
	// selectionKey identifies one resolution slot: packages of the same
	// name from different sources occupy different slots, and the
	// post-solve validation rejects solutions using more than one.
	selectionKey struct {
		name     core.PackageName
		sourceId core.SourceId
	}

	edge struct {
		from   core.PackageId
		to     core.PackageId
		weight core.DependencyEdge
	}

	solver struct {
		cache           *source.Cache
		patches         *core.PatchMap
		lock            *lockfile.Lockfile
		compilerVersion *semver.Version
		update          bool

		roots    map[core.PackageId]bool
		selected map[selectionKey]*core.Summary
		order    []core.PackageId
		edges    []edge
		// incompatibilities collects human-readable conflict records;
		// any entry fails the solve after the graph walk completes.
		incompatibilities []string
	}
)

// Resolve solves versions for the given workspace members and assembles
// the dependency graph. Members are roots with exactly pinned versions;
// every summary that does not opt out gets an implicit dependency on
// `core` pinned to the compiler version.
func Resolve(
	ctx context.Context,
	members []*core.Summary,
	cache *source.Cache,
	patches *core.PatchMap,
	lock *lockfile.Lockfile,
	compilerVersion *semver.Version,
	opts Opts,
) (*core.Resolve, error) {
	if patches == nil {
		patches = core.NewPatchMap()
	}
	if lock == nil {
		lock = lockfile.New(nil)
	}
	s := &solver{
		cache:           cache,
		patches:         patches,
		lock:            lock,
		compilerVersion: compilerVersion,
		update:          opts.Update,
		roots:           make(map[core.PackageId]bool, len(members)),
		selected:        make(map[selectionKey]*core.Summary),
	}

	queue := make([]*core.Summary, 0, len(members))
	for _, member := range members {
		s.roots[member.PackageId] = true
		s.select_(member)
		queue = append(queue, member)
	}

	for len(queue) > 0 {
		summary := queue[0]
		queue = queue[1:]
		next, err := s.visit(ctx, summary)
		if err != nil {
			return nil, err
		}
		queue = append(queue, next...)
	}

	if len(s.incompatibilities) > 0 {
		return nil, s.renderFailure()
	}
	if err := s.validateSources(); err != nil {
		return nil, err
	}
	return s.assemble()
}

func (s *solver) select_(summary *core.Summary) {
	id := summary.PackageId
	s.selected[selectionKey{id.Name(), id.SourceId()}] = summary
	s.order = append(s.order, id)
}

// visit resolves the direct dependencies of summary and returns the
// newly selected summaries to visit next.
func (s *solver) visit(ctx context.Context, summary *core.Summary) ([]*core.Summary, error) {
	isRoot := s.roots[summary.PackageId]
	deps := core.PropagationFilter(isRoot).Apply(summary.FullDependencies(s.compilerVersion))

	var next []*core.Summary
	for _, dep := range deps {
		dep = s.patches.Lookup(dep)

		key := selectionKey{dep.Name, dep.SourceId}
		if chosen, ok := s.selected[key]; ok {
			if !dep.VersionReq.Matches(chosen.PackageId.Version()) {
				s.incompatible(fmt.Sprintf(
					"%s requires %s %s, but %s is in use",
					summary.PackageId, dep.Name, dep.VersionReq, chosen.PackageId))
				continue
			}
			s.addEdge(summary.PackageId, chosen.PackageId, dep.Kind)
			continue
		}

		candidates, err := s.cache.Query(ctx, dep)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", dep, err)
		}
		if len(candidates) == 0 {
			s.incompatible(fmt.Sprintf(
				"cannot find package %s %s, required by %s",
				dep.Name, dep.VersionReq, summary.PackageId))
			continue
		}

		chosen := s.pick(dep, candidates)
		s.select_(chosen)
		s.addEdge(summary.PackageId, chosen.PackageId, dep.Kind)
		next = append(next, chosen)
	}
	return next, nil
}

// pick chooses among candidates that already satisfy the requirement:
// the locked version when the lockfile pins one (and updates were not
// requested), otherwise the newest.
func (s *solver) pick(dep core.ManifestDependency, candidates []*core.Summary) *core.Summary {
	if !s.update {
		if locked := s.lockedVersion(dep); locked != nil {
			for _, c := range candidates {
				if c.PackageId.Version().Equal(locked) {
					return c
				}
			}
		}
	}

	newest := candidates[0]
	for _, c := range candidates[1:] {
		if c.PackageId.Version().GreaterThan(newest.PackageId.Version()) {
			newest = c
		}
	}
	return newest
}

func (s *solver) lockedVersion(dep core.ManifestDependency) *semver.Version {
	for _, p := range s.lock.PackagesMatching(dep.Name) {
		// Path packages are stored without a source; everything else
		// must come from the same source to count as a pin.
		if !p.SourceId.IsZero() && p.SourceId != dep.SourceId {
			continue
		}
		if p.SourceId.IsZero() && !dep.SourceId.IsPath() {
			continue
		}
		if dep.VersionReq.Matches(p.Version) {
			return p.Version
		}
	}
	return nil
}

func (s *solver) addEdge(from, to core.PackageId, kind core.DepKind) {
	if from == to {
		return
	}
	var weight core.DependencyEdge
	if target, ok := kind.TargetKind(); ok {
		weight = core.DependencyEdge{target}
	} else {
		weight = core.DependencyEdge{}
	}
	s.edges = append(s.edges, edge{from: from, to: to, weight: weight})
}

func (s *solver) incompatible(record string) {
	s.incompatibilities = append(s.incompatibilities, record)
}

func (s *solver) renderFailure() error {
	records := make([]string, 0, len(s.incompatibilities))
	seen := make(map[string]bool)
	for _, r := range s.incompatibilities {
		if !seen[r] {
			seen[r] = true
			records = append(records, r)
		}
	}
	sort.Strings(records)

	var b strings.Builder
	b.WriteString("Version solving failed:")
	for _, r := range records {
		b.WriteString("\n- ")
		b.WriteString(r)
	}
	return fmt.Errorf("%s", b.String())
}

// validateSources rejects solutions where one package name is served by
// two different sources.
func (s *solver) validateSources() error {
	bySources := make(map[core.PackageName][]core.SourceId)
	for key := range s.selected {
		bySources[key.name] = append(bySources[key.name], key.sourceId)
	}
	for name, sources := range bySources {
		if len(sources) < 2 {
			continue
		}
		pretty := make([]string, len(sources))
		for i, sid := range sources {
			pretty[i] = sid.PrettyURL()
		}
		sort.Strings(pretty)
		return fmt.Errorf(
			"found dependencies on the same package `%s` coming from incompatible sources:\nsource 1: %s\nsource 2: %s",
			name, pretty[0], pretty[1])
	}
	return nil
}

func (s *solver) assemble() (*core.Resolve, error) {
	graph := dag.New[core.PackageId, core.DependencyEdge]()
	summaries := make(map[core.PackageId]*core.Summary, len(s.order))
	for _, id := range s.order {
		graph.AddNode(id)
		summaries[id] = s.selected[selectionKey{id.Name(), id.SourceId()}]
	}
	for _, e := range s.edges {
		graph.AddEdge(e.from, e.to, e.weight, core.MergeEdges)
	}

	if _, err := graph.TopologicalSort(); err != nil {
		return nil, fmt.Errorf("failed to resolve dependency graph: %w", err)
	}
	return &core.Resolve{Graph: graph, Summaries: summaries}, nil
}
