// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"scarb/internal/flock"
	"scarb/pkg/core"
)

// GitSource serves packages from a git repository pinned to a
// reference. The repository is cloned once into a content-addressed
// cache directory and behaves like a path source afterwards.
type GitSource struct {
	sourceId core.SourceId
	cacheFs  *flock.Filesystem
	offline  bool

	once sync.Once
	pkgs []*core.Package
	err  error
}

// NewGitSource creates a git source backed by the shared git cache.
func NewGitSource(sourceId core.SourceId, cacheFs *flock.Filesystem, offline bool) *GitSource {
	return &GitSource{sourceId: sourceId, cacheFs: cacheFs, offline: offline}
}

func (s *GitSource) Query(ctx context.Context, dep core.ManifestDependency) ([]*core.Summary, error) {
	pkgs, err := s.packages(ctx)
	if err != nil {
		return nil, err
	}
	return matching(dep, pkgs), nil
}

func (s *GitSource) Download(ctx context.Context, id core.PackageId) (*core.Package, error) {
	pkgs, err := s.packages(ctx)
	if err != nil {
		return nil, err
	}
	for _, pkg := range pkgs {
		if pkg.Id == id {
			return pkg, nil
		}
	}
	return nil, fmt.Errorf("package %s not found in git source %s", id, s.sourceId)
}

func (s *GitSource) packages(ctx context.Context) ([]*core.Package, error) {
	s.once.Do(func() {
		checkout, err := s.ensureCheckout(ctx)
		if err != nil {
			s.err = fmt.Errorf("failed to fetch git source %s: %w", s.sourceId, err)
			return
		}
		s.pkgs, s.err = loadPackages(filepath.Join(checkout, core.ManifestFileName), s.sourceId)
	})
	return s.pkgs, s.err
}

// ensureCheckout clones or updates the repository and checks out the
// pinned reference, returning the working-tree path. In offline mode
// an existing checkout is used as-is.
func (s *GitSource) ensureCheckout(ctx context.Context) (string, error) {
	dir := filepath.Join(s.cacheFs.Path(), "checkouts", s.sourceId.Ident())

	repo, err := git.PlainOpen(dir)
	switch {
	case err == nil && s.offline:
		return dir, nil
	case err != nil && s.offline:
		return "", fmt.Errorf("no cached checkout for %s while offline", s.sourceId)
	case err != nil:
		if _, err := s.cacheFs.PathExistent(); err != nil {
			return "", err
		}
		slog.Debug("cloning git repository", "url", s.sourceId.CanonicalURL(), "dir", dir)
		repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:  s.sourceId.CanonicalURL(),
			Tags: git.AllTags,
		})
		if err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("failed to clone %s: %w", s.sourceId.CanonicalURL(), err)
		}
	default:
		// The revision may already be present; fetch failures are only
		// fatal when the subsequent checkout misses.
		fetchErr := repo.FetchContext(ctx, &git.FetchOptions{Tags: git.AllTags, Force: true})
		if fetchErr != nil && fetchErr != git.NoErrAlreadyUpToDate {
			slog.Debug("git fetch failed, using cached refs", "url", s.sourceId.CanonicalURL(), "error", fetchErr)
		}
	}

	if err := s.checkoutRef(repo); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *GitSource) checkoutRef(repo *git.Repository) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}

	hash, err := s.resolveRef(repo)
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", s.sourceId.GitRef(), err)
	}
	return nil
}

func (s *GitSource) resolveRef(repo *git.Repository) (plumbing.Hash, error) {
	ref := s.sourceId.GitRef()
	var rev plumbing.Revision
	switch ref.Kind {
	case core.GitRefDefaultBranch:
		rev = plumbing.Revision(plumbing.HEAD)
	case core.GitRefBranch:
		rev = plumbing.Revision("refs/remotes/origin/" + ref.Value)
	case core.GitRefTag:
		rev = plumbing.Revision("refs/tags/" + ref.Value)
	case core.GitRefRev:
		rev = plumbing.Revision(ref.Value)
	}
	hash, err := repo.ResolveRevision(rev)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve %s in %s: %w", ref, s.sourceId.CanonicalURL(), err)
	}
	return *hash, nil
}
