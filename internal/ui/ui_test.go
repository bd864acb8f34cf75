// SPDX-License-Identifier: MPL-2.0

package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseVerbosity(t *testing.T) {
	t.Parallel()
	for spec, want := range map[string]Verbosity{
		"":        VerbosityNormal,
		"normal":  VerbosityNormal,
		"quiet":   VerbosityQuiet,
		"verbose": VerbosityVerbose,
	} {
		got, err := ParseVerbosity(spec)
		if err != nil {
			t.Errorf("ParseVerbosity(%q): %v", spec, err)
		}
		if got != want {
			t.Errorf("ParseVerbosity(%q) = %v, want %v", spec, got, want)
		}
	}
	if _, err := ParseVerbosity("loud"); err == nil {
		t.Error("unknown verbosity must be rejected")
	}
}

func TestStatusLine(t *testing.T) {
	t.Parallel()
	var out, errw bytes.Buffer
	u := New(VerbosityNormal, FormatText, &out, &errw)

	u.PrintStatus("Compiling", "hello v0.1.0")
	line := errw.String()
	if !strings.Contains(line, "Compiling hello v0.1.0") {
		t.Errorf("status line = %q", line)
	}
	// The status word is right-aligned within a fixed column.
	if !strings.HasPrefix(stripANSI(line), "   Compiling") {
		t.Errorf("status word not right-aligned: %q", line)
	}
	if out.Len() != 0 {
		t.Error("status lines must go to stderr")
	}
}

func TestQuietSuppressesStatus(t *testing.T) {
	t.Parallel()
	var out, errw bytes.Buffer
	u := New(VerbosityQuiet, FormatText, &out, &errw)

	u.PrintStatus("Compiling", "hello v0.1.0")
	u.Warn("something")
	if errw.Len() != 0 {
		t.Errorf("quiet mode leaked output: %q", errw.String())
	}

	u.Error("boom")
	if !strings.Contains(errw.String(), "boom") {
		t.Error("errors must never be suppressed")
	}

	u.Print(TextMessage("value"))
	if out.String() != "value\n" {
		t.Errorf("values must print in quiet mode, got %q", out.String())
	}
}

func TestJSONMode(t *testing.T) {
	t.Parallel()
	var out, errw bytes.Buffer
	u := New(VerbosityNormal, FormatJSON, &out, &errw)

	u.PrintStatus("Finished", "release target(s)")
	u.Print(JSONValue{Value: map[string]int{"n": 1}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 NDJSON lines, got %d: %q", len(lines), out.String())
	}
	var status map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &status); err != nil {
		t.Fatal(err)
	}
	if status["status"] != "Finished" {
		t.Errorf("status payload = %v", status)
	}
	var value map[string]int
	if err := json.Unmarshal([]byte(lines[1]), &value); err != nil {
		t.Fatal(err)
	}
	if value["n"] != 1 {
		t.Errorf("value payload = %v", value)
	}
}

// stripANSI removes escape sequences so alignment can be asserted
// regardless of whether the test runs with a color profile.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
