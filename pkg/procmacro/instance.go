// SPDX-License-Identifier: MPL-2.0

package procmacro

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"

	"scarb/pkg/core"
)

// Instance is one loaded plugin library. The expansion metadata is
// cached at load time and read lock-free afterwards; expansion calls
// are serialized with a per-instance mutex because the plugin ABI is
// not declared thread-safe.
type Instance struct {
	packageId core.PackageId
	abi       abi
	// expansions is immutable after load.
	expansions []Expansion

	// mu serializes expand and post-process calls.
	mu sync.Mutex
}

// load opens the shared library and caches the plugin's metadata. The
// handle is kept for the process lifetime; plugins are never unloaded.
func load(packageId core.PackageId, libPath string) (*Instance, error) {
	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("failed to load procedural macro %s from %s: %w", packageId, libPath, err)
	}
	shim, err := openABI(handle)
	if err != nil {
		return nil, fmt.Errorf("procedural macro %s: %w", packageId, err)
	}
	expansions, err := shim.listExpansions()
	if err != nil {
		return nil, fmt.Errorf("procedural macro %s: %w", packageId, err)
	}
	return &Instance{
		packageId:  packageId,
		abi:        shim,
		expansions: expansions,
	}, nil
}

// PackageId identifies the plugin package this instance was built from.
func (i *Instance) PackageId() core.PackageId { return i.packageId }

// ABIVersion reports the plugin interface generation in use.
func (i *Instance) ABIVersion() ABIVersion { return i.abi.version() }

// Expansions lists every macro the plugin declares, executable
// attribute markers included.
func (i *Instance) Expansions() []Expansion { return i.expansions }

// ExecutableAttributes returns the runtime-only attribute names the
// plugin declares, without their marker prefix.
func (i *Instance) ExecutableAttributes() []string {
	var out []string
	for _, e := range i.expansions {
		if e.IsExecutable() {
			out = append(out, e.ExecutableName())
		}
	}
	return out
}

// Expand routes one expansion request through the plugin. Requests for
// undeclared or executable expansions fail without crossing the FFI
// boundary.
func (i *Instance) Expand(req ExpandRequest) (*ExpansionResult, error) {
	declared := false
	for _, e := range i.expansions {
		if e.Name == req.Name && !e.IsExecutable() {
			declared = true
			break
		}
	}
	if !declared {
		return nil, fmt.Errorf("procedural macro %s does not declare expansion `%s`", i.packageId, req.Name)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.abi.expand(req)
}

// PostProcess runs the plugin's post-compilation pass over the aux
// data collected from its expansions. A no-op for V1 plugins.
func (i *Instance) PostProcess(auxData [][]byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.abi.postProcess(auxData)
}

// Doc returns the plugin-provided documentation of an item, if any.
func (i *Instance) Doc(itemName string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.abi.doc(itemName)
}
