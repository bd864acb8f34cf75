// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scarb/internal/fsx"
)

type (
	// DiagnosticSeverity grades compiler diagnostics.
	DiagnosticSeverity string

	// Diagnostic is one message emitted by the compiler front-end while
	// building a unit.
	Diagnostic struct {
		Severity DiagnosticSeverity `json:"severity"`
		Message  string             `json:"message"`
	}

	// DiagnosticCallback receives diagnostics as they are produced.
	DiagnosticCallback func(Diagnostic)

	// CairoCompiler is the compiler front-end collaborator: it consumes
	// one unit and writes the unit's artifacts into outputDir.
	CairoCompiler interface {
		Compile(ctx context.Context, unit *CairoUnit, outputDir string, onDiagnostic DiagnosticCallback) error
	}

	// ExecCompiler shells out to an external compiler binary. The unit
	// is described in a JSON file passed via --unit-config; diagnostics
	// come back as NDJSON on stderr, artifacts are written straight to
	// --output-dir.
	ExecCompiler struct {
		// Binary is the compiler executable path or name.
		Binary string
	}

	// unitConfig is the JSON document handed to the external compiler.
	unitConfig struct {
		Name             string            `json:"name"`
		TargetKind       string            `json:"target_kind"`
		TargetParams     map[string]any    `json:"target_params,omitempty"`
		Components       []componentConfig `json:"components"`
		Cfg              []string          `json:"cfg"`
		SierraReplaceIds bool              `json:"sierra_replace_ids"`
		EnableGas        bool              `json:"enable_gas"`
		InliningStrategy string            `json:"inlining_strategy"`
		AllowWarnings    bool              `json:"allow_warnings"`
	}

	componentConfig struct {
		Name       string   `json:"name"`
		SourceRoot string   `json:"source_root"`
		Edition    string   `json:"edition"`
		Features   []string `json:"features,omitempty"`
	}
)

const (
	SeverityWarning DiagnosticSeverity = "warning"
	SeverityError   DiagnosticSeverity = "error"
)

// NewExecCompiler returns a compiler invoking the given binary.
func NewExecCompiler(binary string) *ExecCompiler {
	return &ExecCompiler{Binary: binary}
}

func (c *ExecCompiler) Compile(ctx context.Context, unit *CairoUnit, outputDir string, onDiagnostic DiagnosticCallback) error {
	config := unitConfig{
		Name:             unit.Target.Name,
		TargetKind:       string(unit.Target.Kind),
		TargetParams:     unit.Target.Params,
		Cfg:              unit.Cfg.Strings(),
		SierraReplaceIds: unit.Config.SierraReplaceIds,
		EnableGas:        unit.Config.EnableGas,
		InliningStrategy: unit.Config.InliningStrategy,
		AllowWarnings:    unit.Config.AllowWarnings,
	}
	for _, component := range unit.Components {
		config.Components = append(config.Components, componentConfig{
			Name:       component.Name,
			SourceRoot: component.SourceRoot,
			Edition:    string(component.Edition),
			Features:   component.Features,
		})
	}
	encoded, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	configPath := filepath.Join(outputDir, fmt.Sprintf(".%s.unit.json", unit.Id()))
	if err := fsx.WriteFileAtomic(configPath, encoded, 0o644); err != nil {
		return err
	}
	defer os.Remove(configPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Binary,
		"--unit-config", configPath,
		"--output-dir", outputDir,
	)
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	errorCount := forwardDiagnostics(&stderr, onDiagnostic)
	if runErr != nil {
		return fmt.Errorf("compiler exited with error: %w", runErr)
	}
	if errorCount > 0 {
		return fmt.Errorf("compilation failed with %d error(s)", errorCount)
	}
	return nil
}

// forwardDiagnostics decodes NDJSON diagnostics; lines that are not
// valid JSON pass through verbatim as warnings.
func forwardDiagnostics(r *bytes.Buffer, onDiagnostic DiagnosticCallback) int {
	errorCount := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var diag Diagnostic
		if err := json.Unmarshal([]byte(line), &diag); err != nil {
			diag = Diagnostic{Severity: SeverityWarning, Message: line}
		}
		if diag.Severity == SeverityError {
			errorCount++
		}
		if onDiagnostic != nil {
			onDiagnostic(diag)
		}
	}
	return errorCount
}
