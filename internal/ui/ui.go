// SPDX-License-Identifier: MPL-2.0

// Package ui implements the user-facing output channel: right-aligned
// status lines (Compiling, Finished, ...), warnings and errors on
// stderr, and a machine-readable NDJSON mode for tooling consumers.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

type (
	// Verbosity controls how much of the output stream is emitted.
	Verbosity int

	// OutputFormat selects between human-readable text and NDJSON.
	OutputFormat int

	// Ui is the single funnel for user-visible output. All messages go
	// through it so that verbosity and output format are honored
	// uniformly. Safe for concurrent use.
	Ui struct {
		verbosity Verbosity
		format    OutputFormat
		out       io.Writer
		err       io.Writer
		mu        sync.Mutex
	}

	// Message is anything the Ui can emit. Text is used in text mode;
	// structured messages additionally implement jsonMessage.
	Message interface {
		Text() string
	}

	jsonMessage interface {
		JSON() any
	}
)

const (
	// VerbosityQuiet suppresses everything except errors and values.
	VerbosityQuiet Verbosity = iota
	// VerbosityNormal is the default output level.
	VerbosityNormal
	// VerbosityVerbose additionally emits progress detail.
	VerbosityVerbose
)

const (
	// FormatText emits human-readable lines.
	FormatText OutputFormat = iota
	// FormatJSON emits one JSON object per line.
	FormatJSON
)

// ParseVerbosity maps the SCARB_UI_VERBOSITY values to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	switch s {
	case "quiet":
		return VerbosityQuiet, nil
	case "", "normal":
		return VerbosityNormal, nil
	case "verbose":
		return VerbosityVerbose, nil
	default:
		return VerbosityNormal, fmt.Errorf("invalid verbosity level: %q", s)
	}
}

// New creates a Ui writing values to out and diagnostics to err.
func New(verbosity Verbosity, format OutputFormat, out, err io.Writer) *Ui {
	return &Ui{verbosity: verbosity, format: format, out: out, err: err}
}

// Default returns a Ui bound to the process stdout/stderr.
func Default(verbosity Verbosity, format OutputFormat) *Ui {
	return New(verbosity, format, os.Stdout, os.Stderr)
}

// Verbosity reports the configured output level.
func (u *Ui) Verbosity() Verbosity { return u.verbosity }

// OutputFormat reports the configured output format.
func (u *Ui) OutputFormat() OutputFormat { return u.format }

var (
	statusStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	causedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusIndent = 12
)

// Print emits a value: the primary output of a command. Values are
// printed even in quiet mode.
func (u *Ui) Print(m Message) {
	u.emit(u.out, m)
}

// PrintStatus emits a cargo-style status line, e.g.
//
//	   Compiling hello v0.1.0 (/work/hello/Scarb.toml)
//
// The status word is right-aligned and highlighted.
func (u *Ui) PrintStatus(status, message string) {
	if u.verbosity < VerbosityNormal {
		return
	}
	u.emit(u.err, statusMessage{status: status, message: message})
}

// VerboseStatus is PrintStatus gated on verbose mode.
func (u *Ui) VerboseStatus(status, message string) {
	if u.verbosity < VerbosityVerbose {
		return
	}
	u.emit(u.err, statusMessage{status: status, message: message})
}

// Warn emits a warning line on stderr.
func (u *Ui) Warn(message string) {
	if u.verbosity < VerbosityNormal {
		return
	}
	u.emit(u.err, diagMessage{kind: "warn", label: warnStyle.Render("warn:"), message: message})
}

// Error emits an error line on stderr. Errors are never suppressed.
func (u *Ui) Error(message string) {
	u.emit(u.err, diagMessage{kind: "error", label: errorStyle.Render("error:"), message: message})
}

// PrintErrorChain renders err and its full Unwrap chain the way the
// CLI reports failures: the top error, then one indented "Caused by:"
// line per cause.
func (u *Ui) PrintErrorChain(err error) {
	u.Error(err.Error())
	// The chain repeats the wrapped text; only multi-line rendering of
	// distinct causes is useful in verbose mode.
	if u.verbosity < VerbosityVerbose {
		return
	}
	for cause := unwrapOnce(err); cause != nil; cause = unwrapOnce(cause) {
		fmt.Fprintf(u.err, "%s %s\n", causedStyle.Render("Caused by:"), cause.Error())
	}
}

func unwrapOnce(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func (u *Ui) emit(w io.Writer, m Message) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.format == FormatJSON {
		var payload any = map[string]string{"message": m.Text()}
		if jm, ok := m.(jsonMessage); ok {
			payload = jm.JSON()
		}
		data, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintln(u.err, "error: failed to serialize message:", err)
			return
		}
		fmt.Fprintln(u.out, string(data))
		return
	}
	fmt.Fprintln(w, m.Text())
}

type (
	statusMessage struct {
		status  string
		message string
	}

	diagMessage struct {
		kind    string
		label   string
		message string
	}

	// TextMessage is a plain pre-rendered value line.
	TextMessage string

	// JSONValue wraps an arbitrary structured value; in text mode it is
	// rendered as compact JSON as well.
	JSONValue struct {
		Value any
	}
)

func (m statusMessage) Text() string {
	padded := fmt.Sprintf("%*s", statusIndent, m.status)
	return statusStyle.Render(padded) + " " + m.message
}

func (m statusMessage) JSON() any {
	return map[string]string{"status": m.status, "message": m.message}
}

func (m diagMessage) Text() string {
	return m.label + " " + m.message
}

func (m diagMessage) JSON() any {
	return map[string]string{"type": m.kind, "message": m.message}
}

func (m TextMessage) Text() string { return string(m) }

func (v JSONValue) Text() string {
	data, err := json.Marshal(v.Value)
	if err != nil {
		return fmt.Sprintf("%v", v.Value)
	}
	return string(data)
}

func (v JSONValue) JSON() any { return v.Value }
