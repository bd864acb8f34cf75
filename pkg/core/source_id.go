// SPDX-License-Identifier: MPL-2.0

package core

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"scarb/internal/stablehash"
)

// SourceKind discriminates the backends that can produce packages.
type SourceKind int

const (
	// SourceKindPath is a local directory containing a single manifest.
	SourceKindPath SourceKind = iota
	// SourceKindGit is a git repository checked out at a specific reference.
	SourceKindGit
	// SourceKindRegistryLocal is a registry laid out in a local directory tree.
	SourceKindRegistryLocal
	// SourceKindRegistryHTTP is a remote registry spoken to over HTTP.
	SourceKindRegistryHTTP
	// SourceKindStd is the standard library distributed with the compiler.
	SourceKindStd
)

const (
	pathSourceProtocol          = "path"
	gitSourceProtocol           = "git"
	registrySourceProtocol      = "registry"
	registryLocalSourceProtocol = "registry+file"
	stdSourceProtocol           = "std"
)

// GitRefKind selects how a git source pins its revision.
type GitRefKind int

const (
	// GitRefDefaultBranch tracks the remote HEAD.
	GitRefDefaultBranch GitRefKind = iota
	// GitRefBranch tracks a named branch.
	GitRefBranch
	// GitRefTag pins a tag.
	GitRefTag
	// GitRefRev pins an exact revision.
	GitRefRev
)

// GitRef identifies a specific commit in a git repository.
type GitRef struct {
	Kind  GitRefKind
	Value string
}

func (r GitRef) String() string {
	switch r.Kind {
	case GitRefBranch:
		return "branch=" + r.Value
	case GitRefTag:
		return "tag=" + r.Value
	case GitRefRev:
		return "rev=" + r.Value
	default:
		return "HEAD"
	}
}

// SourceId is an interned, cheaply comparable identifier of a package
// source. Two SourceIds constructed from the same canonical URL and kind
// are equal as Go values, which makes SourceId usable as a map key
// throughout the resolver and planner.
type SourceId struct {
	inner *sourceIdInner
}

type sourceIdInner struct {
	kind   SourceKind
	url    string // canonical URL
	gitRef GitRef
}

var sourceIdCache = struct {
	sync.Mutex
	m map[sourceIdKey]*sourceIdInner
}{m: make(map[sourceIdKey]*sourceIdInner)}

type sourceIdKey struct {
	kind   SourceKind
	url    string
	gitRef GitRef
}

func internSourceId(kind SourceKind, canonicalURL string, ref GitRef) SourceId {
	key := sourceIdKey{kind, canonicalURL, ref}
	sourceIdCache.Lock()
	defer sourceIdCache.Unlock()
	if inner, ok := sourceIdCache.m[key]; ok {
		return SourceId{inner}
	}
	inner := &sourceIdInner{kind: kind, url: canonicalURL, gitRef: ref}
	sourceIdCache.m[key] = inner
	return SourceId{inner}
}

// NewPathSourceId returns the SourceId for a local directory. The path must
// be absolute so that the canonical URL is stable regardless of the working
// directory.
func NewPathSourceId(dir string) (SourceId, error) {
	if !filepath.IsAbs(dir) {
		return SourceId{}, fmt.Errorf("path (%s) is not absolute", dir)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(dir))}
	return internSourceId(SourceKindPath, u.String(), GitRef{}), nil
}

// NewGitSourceId returns the SourceId for a git repository at a reference.
func NewGitSourceId(repoURL string, ref GitRef) (SourceId, error) {
	canonical, err := canonicalizeGitURL(repoURL)
	if err != nil {
		return SourceId{}, err
	}
	return internSourceId(SourceKindGit, canonical, ref), nil
}

// NewRegistrySourceId returns the SourceId for a registry rooted at url.
// file:// URLs denote local registries, anything else is HTTP.
func NewRegistrySourceId(registryURL string) (SourceId, error) {
	u, err := url.Parse(registryURL)
	if err != nil {
		return SourceId{}, fmt.Errorf("cannot parse registry URL %s: %w", registryURL, err)
	}
	kind := SourceKindRegistryHTTP
	if u.Scheme == "file" {
		kind = SourceKindRegistryLocal
	}
	return internSourceId(kind, strings.TrimSuffix(u.String(), "/"), GitRef{}), nil
}

// DefaultRegistryURL is the registry consulted when a dependency names
// neither a source nor a registry.
const DefaultRegistryURL = "https://scarbs.xyz/"

// DefaultRegistrySourceId returns the SourceId of the default registry.
func DefaultRegistrySourceId() SourceId {
	return internSourceId(SourceKindRegistryHTTP, strings.TrimSuffix(DefaultRegistryURL, "/"), GitRef{})
}

// StdSourceId returns the SourceId of the standard library distribution.
func StdSourceId() SourceId {
	return internSourceId(SourceKindStd, "std:", GitRef{})
}

// IsZero reports whether this SourceId is the uninitialized zero value.
func (s SourceId) IsZero() bool { return s.inner == nil }

// Kind returns the source kind.
func (s SourceId) Kind() SourceKind { return s.inner.kind }

// CanonicalURL returns the canonical URL used for patch matching and
// equality.
func (s SourceId) CanonicalURL() string { return s.inner.url }

// GitRef returns the git reference, meaningful only for git sources.
func (s SourceId) GitRef() GitRef { return s.inner.gitRef }

// IsPath reports whether this is a local path source.
func (s SourceId) IsPath() bool { return s.inner.kind == SourceKindPath }

// IsGit reports whether this is a git source.
func (s SourceId) IsGit() bool { return s.inner.kind == SourceKindGit }

// IsRegistry reports whether this is a registry source of either flavor.
func (s SourceId) IsRegistry() bool {
	return s.inner.kind == SourceKindRegistryLocal || s.inner.kind == SourceKindRegistryHTTP
}

// IsStd reports whether this is the standard library source.
func (s SourceId) IsStd() bool { return s.inner.kind == SourceKindStd }

// ToPath returns the directory of a path source.
func (s SourceId) ToPath() (string, error) {
	if !s.IsPath() {
		return "", fmt.Errorf("source %s is not a path source", s)
	}
	u, err := url.Parse(s.inner.url)
	if err != nil {
		return "", fmt.Errorf("corrupted path source URL %s: %w", s.inner.url, err)
	}
	return filepath.FromSlash(u.Path), nil
}

// Ident returns a short filesystem-safe identifier for this source, used in
// cache directory names: `<last URL segment>-<hash>`.
func (s SourceId) Ident() string {
	base := s.inner.url
	base = strings.TrimSuffix(base, "/")
	base = strings.TrimSuffix(base, ".git")
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if base == "" {
		base = "source"
	}
	return fmt.Sprintf("%s-%s", base, stablehash.String(s.PrettyURL()))
}

// PrettyURL renders this SourceId in the stable textual form stored in
// lockfiles, e.g. `git+https://example.com/foo.git?tag=v1` or
// `registry+https://registry.example.com`.
func (s SourceId) PrettyURL() string {
	switch s.inner.kind {
	case SourceKindPath:
		return pathSourceProtocol + "+" + s.inner.url
	case SourceKindGit:
		u := s.inner.url
		switch s.inner.gitRef.Kind {
		case GitRefBranch:
			u += "?branch=" + url.QueryEscape(s.inner.gitRef.Value)
		case GitRefTag:
			u += "?tag=" + url.QueryEscape(s.inner.gitRef.Value)
		case GitRefRev:
			u += "?rev=" + url.QueryEscape(s.inner.gitRef.Value)
		}
		return gitSourceProtocol + "+" + u
	case SourceKindRegistryLocal, SourceKindRegistryHTTP:
		return registrySourceProtocol + "+" + s.inner.url
	case SourceKindStd:
		return stdSourceProtocol
	default:
		panic(fmt.Sprintf("unknown source kind %d", s.inner.kind))
	}
}

// SourceIdFromPrettyURL parses the textual form produced by PrettyURL.
func SourceIdFromPrettyURL(pretty string) (SourceId, error) {
	if pretty == stdSourceProtocol {
		return StdSourceId(), nil
	}

	proto, rest, found := strings.Cut(pretty, "+")
	if !found {
		return SourceId{}, fmt.Errorf("invalid source: %s", pretty)
	}

	switch proto {
	case gitSourceProtocol:
		u, err := url.Parse(rest)
		if err != nil {
			return SourceId{}, fmt.Errorf("cannot parse source URL: %s: %w", pretty, err)
		}
		ref := GitRef{Kind: GitRefDefaultBranch}
		for k, vs := range u.Query() {
			if len(vs) == 0 {
				continue
			}
			switch k {
			case "branch":
				ref = GitRef{Kind: GitRefBranch, Value: vs[0]}
			case "tag":
				ref = GitRef{Kind: GitRefTag, Value: vs[0]}
			case "rev":
				ref = GitRef{Kind: GitRefRev, Value: vs[0]}
			}
		}
		u.RawQuery = ""
		return NewGitSourceId(u.String(), ref)

	case pathSourceProtocol:
		u, err := url.Parse(rest)
		if err != nil {
			return SourceId{}, fmt.Errorf("cannot parse source URL: %s: %w", pretty, err)
		}
		return NewPathSourceId(filepath.FromSlash(u.Path))

	case registrySourceProtocol:
		return NewRegistrySourceId(rest)

	default:
		return SourceId{}, fmt.Errorf("unsupported source protocol: %s", proto)
	}
}

// String renders path sources as bare paths and everything else as the
// pretty URL, matching the display format of package ids.
func (s SourceId) String() string {
	if s.IsPath() {
		p, err := s.ToPath()
		if err == nil {
			return p
		}
	}
	return s.PrettyURL()
}

// canonicalizeGitURL normalizes a git URL so that equivalent spellings
// intern to the same SourceId: trailing slashes are dropped and a `.git`
// suffix is preserved as written but compared case-sensitively otherwise.
func canonicalizeGitURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("cannot parse git URL %s: %w", raw, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("git URL must be absolute: %s", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	return u.String(), nil
}
