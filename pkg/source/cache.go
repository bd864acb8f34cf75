// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"scarb/pkg/core"
)

// queryCacheSize bounds the memoized query results. A solve touches
// each dependency a handful of times; collisions past this size only
// cost a re-query.
const queryCacheSize = 4096

type (
	// Cache memoizes Query and Download results of an underlying
	// source map for the duration of a resolve. Entries are write-once:
	// concurrent identical requests are coalesced and the first result,
	// success or failure, is served to everyone.
	Cache struct {
		inner *Map

		group   singleflight.Group
		queries *lru.Cache[string, queryResult]

		dlGroup   singleflight.Group
		dlMu      sync.Mutex
		downloads map[core.PackageId]downloadResult
	}

	queryResult struct {
		summaries []*core.Summary
		err       error
	}

	downloadResult struct {
		pkg *core.Package
		err error
	}
)

// NewCache wraps a source map with memoization.
func NewCache(inner *Map) (*Cache, error) {
	queries, err := lru.New[string, queryResult](queryCacheSize)
	if err != nil {
		return nil, err
	}
	return &Cache{
		inner:     inner,
		queries:   queries,
		downloads: make(map[core.PackageId]downloadResult),
	}, nil
}

// Sources exposes the underlying source map.
func (c *Cache) Sources() *Map { return c.inner }

// Query memoizes Map.Query by (name, requirement, source).
func (c *Cache) Query(ctx context.Context, dep core.ManifestDependency) ([]*core.Summary, error) {
	key := queryKey(dep)
	if cached, ok := c.queries.Get(key); ok {
		return cached.summaries, cached.err
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		summaries, err := c.inner.Query(ctx, dep)
		result := queryResult{summaries: summaries, err: err}
		c.queries.Add(key, result)
		return result, nil
	})
	result := v.(queryResult)
	return result.summaries, result.err
}

// Download memoizes Map.Download by package id. Downloads are few and
// pinned for the process lifetime, so the map never evicts.
func (c *Cache) Download(ctx context.Context, id core.PackageId) (*core.Package, error) {
	key := id.Serialized()
	v, _, _ := c.dlGroup.Do(key, func() (any, error) {
		c.dlMu.Lock()
		cached, ok := c.downloads[id]
		c.dlMu.Unlock()
		if ok {
			return cached, nil
		}
		pkg, err := c.inner.Download(ctx, id)
		result := downloadResult{pkg: pkg, err: err}
		c.dlMu.Lock()
		c.downloads[id] = result
		c.dlMu.Unlock()
		return result, nil
	})
	result := v.(downloadResult)
	return result.pkg, result.err
}

func queryKey(dep core.ManifestDependency) string {
	return fmt.Sprintf("%s %s (%s)", dep.Name, dep.VersionReq, dep.SourceId)
}
