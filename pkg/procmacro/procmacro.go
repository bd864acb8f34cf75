// SPDX-License-Identifier: MPL-2.0

// Package procmacro hosts procedural-macro plugins: native shared
// libraries built from plugin packages and loaded once per process.
// Two plugin ABI versions coexist; both exchange length-prefixed JSON
// buffers across the C boundary, and every buffer is released by the
// side that allocated it.
package procmacro

import (
	"fmt"
	"strings"
)

type (
	// TokenStream is a Cairo token stream in its textual form.
	TokenStream string

	// ExpansionKind says how an expansion is invoked in source code.
	ExpansionKind string

	// Expansion is one macro a plugin declares.
	Expansion struct {
		Name string        `json:"name"`
		Kind ExpansionKind `json:"kind"`
	}

	// Span is a half-open byte range in the call-site file.
	Span struct {
		Start uint `json:"start"`
		End   uint `json:"end"`
	}

	// DiagnosticSeverity grades plugin diagnostics.
	DiagnosticSeverity string

	// Diagnostic is one message a plugin attaches to an expansion result.
	Diagnostic struct {
		Severity DiagnosticSeverity `json:"severity"`
		Span     *Span              `json:"span,omitempty"`
		Message  string             `json:"message"`
	}

	// ResultKind is the outcome taxonomy of one expansion.
	ResultKind string

	// ExpansionResult is what a plugin returns for one expansion
	// request.
	ExpansionResult struct {
		Kind ResultKind `json:"kind"`
		// TokenStream is the replacement code for ResultReplace.
		TokenStream TokenStream `json:"token_stream,omitempty"`
		// AuxData is opaque plugin payload carried to post-processing.
		AuxData []byte `json:"aux_data,omitempty"`
		// Diagnostics are reported regardless of the result kind; any
		// error severity fails the compilation.
		Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	}

	// ExpandRequest is one expansion invocation routed to a plugin.
	ExpandRequest struct {
		Name     string      `json:"name"`
		CallSite Span        `json:"call_site"`
		Args     TokenStream `json:"args"`
		Item     TokenStream `json:"item"`
	}
)

const (
	ExpansionAttr   ExpansionKind = "attr"
	ExpansionDerive ExpansionKind = "derive"
	ExpansionInline ExpansionKind = "inline"
)

const (
	SeverityWarning DiagnosticSeverity = "warning"
	SeverityError   DiagnosticSeverity = "error"
)

const (
	// ResultUnchanged leaves the item as written.
	ResultUnchanged ResultKind = "unchanged"
	// ResultReplace substitutes the item with TokenStream.
	ResultReplace ResultKind = "replace"
	// ResultRemove deletes the item.
	ResultRemove ResultKind = "remove"
)

// ExecAttrPrefix marks attribute expansions that only declare runtime
// metadata. The plugin never expands them; the compiler records them
// on the annotated item.
const ExecAttrPrefix = "__exec_attr_"

// IsExecutable reports whether the expansion declares an executable
// attribute.
func (e Expansion) IsExecutable() bool {
	return e.Kind == ExpansionAttr && strings.HasPrefix(e.Name, ExecAttrPrefix)
}

// ExecutableName returns the attribute name without the marker prefix.
func (e Expansion) ExecutableName() string {
	return strings.TrimPrefix(e.Name, ExecAttrPrefix)
}

func (e Expansion) String() string {
	return fmt.Sprintf("%s(%s)", e.Kind, e.Name)
}

// HasErrors reports whether any diagnostic is an error.
func (r *ExpansionResult) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
