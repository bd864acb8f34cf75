// SPDX-License-Identifier: MPL-2.0

package procmacro

import (
	"sync"

	"scarb/pkg/core"
)

// Repository holds the loaded plugin instances of this process, keyed
// by package id. Libraries are opened exactly once; inserts happen at
// most once per package.
type Repository struct {
	mu        sync.RWMutex
	instances map[core.PackageId]*Instance
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{instances: make(map[core.PackageId]*Instance)}
}

var shared = NewRepository()

// Shared returns the process-wide repository.
func Shared() *Repository { return shared }

// Get returns the loaded instance for the package, if present.
func (r *Repository) Get(id core.PackageId) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instance, ok := r.instances[id]
	return instance, ok
}

// GetOrLoad returns the instance for the package, loading the shared
// library on first use. Concurrent callers for the same package load
// once; the loser of the race reuses the winner's instance.
func (r *Repository) GetOrLoad(id core.PackageId, libPath string) (*Instance, error) {
	if instance, ok := r.Get(id); ok {
		return instance, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if instance, ok := r.instances[id]; ok {
		return instance, nil
	}
	instance, err := load(id, libPath)
	if err != nil {
		return nil, err
	}
	r.instances[id] = instance
	return instance, nil
}
