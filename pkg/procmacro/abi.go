// SPDX-License-Identifier: MPL-2.0

package procmacro

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// ABIVersion identifies the plugin interface generation a library
// implements.
type ABIVersion int

const (
	ABIv1 ABIVersion = 1
	ABIv2 ABIVersion = 2
)

// abi is the version-specific shim between the host and a loaded
// library. Implementations convert between Go values and the plugin's
// buffers and free plugin allocations with the plugin's own free
// function.
type abi interface {
	version() ABIVersion
	listExpansions() ([]Expansion, error)
	expand(req ExpandRequest) (*ExpansionResult, error)
	// postProcess runs after all expansions of a unit. V1 has no such
	// pass and returns nil immediately.
	postProcess(auxData [][]byte) error
	// doc returns plugin-provided documentation for an item, empty when
	// unsupported.
	doc(itemName string) (string, error)
}

// V1 symbols.
const (
	symListExpansions = "list_expansions"
	symExpand         = "expand"
	symFreeResult     = "free_result"
)

// V2 symbols.
const (
	symListExpansionsV2 = "list_expansions_v2"
	symExpandV2         = "expand_v2"
	symFreeResultV2     = "free_expansion_result_v2"
	symPostProcessV2    = "post_process_v2"
	symDocV2            = "doc_v2"
)

type (
	abiV1 struct {
		listFn   func() uintptr
		expandFn func(name, args, item uintptr) uintptr
		freeFn   func(uintptr)
	}

	abiV2 struct {
		listFn        func() uintptr
		expandFn      func(request uintptr) uintptr
		freeFn        func(uintptr)
		postProcessFn func(request uintptr)
		docFn         func(itemName uintptr) uintptr
	}
)

// openABI loads the version-appropriate shim from an opened library:
// V2 when the library exports the V2 entry points, V1 otherwise.
func openABI(handle uintptr) (abi, error) {
	if _, err := purego.Dlsym(handle, symListExpansionsV2); err == nil {
		shim := &abiV2{}
		purego.RegisterLibFunc(&shim.listFn, handle, symListExpansionsV2)
		purego.RegisterLibFunc(&shim.expandFn, handle, symExpandV2)
		purego.RegisterLibFunc(&shim.freeFn, handle, symFreeResultV2)
		purego.RegisterLibFunc(&shim.postProcessFn, handle, symPostProcessV2)
		purego.RegisterLibFunc(&shim.docFn, handle, symDocV2)
		return shim, nil
	}
	if _, err := purego.Dlsym(handle, symListExpansions); err != nil {
		return nil, fmt.Errorf("library exports neither %s nor %s: %w",
			symListExpansionsV2, symListExpansions, err)
	}
	shim := &abiV1{}
	purego.RegisterLibFunc(&shim.listFn, handle, symListExpansions)
	purego.RegisterLibFunc(&shim.expandFn, handle, symExpand)
	purego.RegisterLibFunc(&shim.freeFn, handle, symFreeResult)
	return shim, nil
}

// hostBuffer builds a length-prefixed buffer owned by the host. The
// plugin must treat it as read-only and never free it.
func hostBuffer(data []byte) []byte {
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	return buf
}

func bufferPtr(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&buf[0]))
}

// readPluginBuffer copies a plugin-allocated length-prefixed buffer
// into host memory. The caller frees the plugin buffer afterwards.
func readPluginBuffer(ptr uintptr) []byte {
	if ptr == 0 {
		return nil
	}
	n := binary.LittleEndian.Uint32(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), 4))
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(ptr+4)), n))
	return out
}

func (a *abiV1) version() ABIVersion { return ABIv1 }

func (a *abiV1) listExpansions() ([]Expansion, error) {
	ptr := a.listFn()
	data := readPluginBuffer(ptr)
	a.freeFn(ptr)
	var out []Expansion
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("plugin returned malformed expansion list: %w", err)
	}
	return out, nil
}

func (a *abiV1) expand(req ExpandRequest) (*ExpansionResult, error) {
	name := hostBuffer([]byte(req.Name))
	args := hostBuffer([]byte(req.Args))
	item := hostBuffer([]byte(req.Item))

	ptr := a.expandFn(bufferPtr(name), bufferPtr(args), bufferPtr(item))
	runtime.KeepAlive(name)
	runtime.KeepAlive(args)
	runtime.KeepAlive(item)

	data := readPluginBuffer(ptr)
	a.freeFn(ptr)

	var result ExpansionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("plugin returned malformed expansion result: %w", err)
	}
	return &result, nil
}

func (a *abiV1) postProcess([][]byte) error { return nil }

func (a *abiV1) doc(string) (string, error) { return "", nil }

func (a *abiV2) version() ABIVersion { return ABIv2 }

func (a *abiV2) listExpansions() ([]Expansion, error) {
	ptr := a.listFn()
	data := readPluginBuffer(ptr)
	a.freeFn(ptr)
	var out []Expansion
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("plugin returned malformed expansion list: %w", err)
	}
	return out, nil
}

func (a *abiV2) expand(req ExpandRequest) (*ExpansionResult, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	request := hostBuffer(encoded)

	ptr := a.expandFn(bufferPtr(request))
	runtime.KeepAlive(request)

	data := readPluginBuffer(ptr)
	a.freeFn(ptr)

	var result ExpansionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("plugin returned malformed expansion result: %w", err)
	}
	return &result, nil
}

func (a *abiV2) postProcess(auxData [][]byte) error {
	encoded, err := json.Marshal(auxData)
	if err != nil {
		return err
	}
	request := hostBuffer(encoded)
	a.postProcessFn(bufferPtr(request))
	runtime.KeepAlive(request)
	return nil
}

func (a *abiV2) doc(itemName string) (string, error) {
	name := hostBuffer([]byte(itemName))
	ptr := a.docFn(bufferPtr(name))
	runtime.KeepAlive(name)

	data := readPluginBuffer(ptr)
	a.freeFn(ptr)
	return string(data), nil
}
