// SPDX-License-Identifier: MPL-2.0

package scripts

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRun_CapturesOutputAndEnv(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	code, err := Run(context.Background(),
		`echo "building $GREETING"`,
		t.TempDir(),
		[]string{"GREETING=world"},
		nil, nil, &stdout, &stderr)
	if err != nil || code != 0 {
		t.Fatalf("code = %d, err = %v", code, err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "building world" {
		t.Errorf("stdout = %q", got)
	}
}

func TestRun_PositionalArgs(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	code, err := Run(context.Background(),
		`echo "$1 $2"`,
		t.TempDir(),
		nil,
		[]string{"-v", "--env=staging"},
		nil, &stdout, &stdout)
	if err != nil || code != 0 {
		t.Fatalf("code = %d, err = %v", code, err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "-v --env=staging" {
		t.Errorf("stdout = %q", got)
	}
}

func TestRun_ExitCodePropagates(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	code, err := Run(context.Background(), "exit 7", t.TempDir(), nil, nil, nil, &out, &out)
	if code != 7 {
		t.Errorf("code = %d, want 7", code)
	}
	if err == nil {
		t.Error("nonzero exit must also surface as an error")
	}
}

func TestRun_SyntaxError(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	code, err := Run(context.Background(), "if then fi", t.TempDir(), nil, nil, nil, &out, &out)
	if err == nil || code == 0 {
		t.Errorf("code = %d, err = %v", code, err)
	}
	if !strings.Contains(err.Error(), "syntax error") {
		t.Errorf("err = %v", err)
	}
}
