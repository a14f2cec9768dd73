package hyperv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/talhyve/talhyve/internal/util/prerequisites"
)

// Runner executes a PowerShell script and returns its stdout.
type Runner interface {
	Run(ctx context.Context, op, script string) ([]byte, error)
}

// ExecRunner runs scripts through the host PowerShell binary.
type ExecRunner struct {
	shell string
}

// NewExecRunner locates the PowerShell binary in PATH.
func NewExecRunner() (*ExecRunner, error) {
	tools := prerequisites.DefaultTools()
	path, ok := prerequisites.Resolve(tools[0])
	if !ok {
		return nil, prerequisites.Check(tools)
	}
	return &ExecRunner{shell: path}, nil
}

// Run executes the script non-interactively. A non-zero exit becomes a
// CommandError carrying the stderr text.
func (r *ExecRunner) Run(ctx context.Context, op, script string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.shell, "-NoProfile", "-NonInteractive", "-Command", script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &CommandError{Op: op, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return bytes.TrimSpace(stdout.Bytes()), nil
}

// psQuote returns s as a single-quoted PowerShell string literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// decodeList parses ConvertTo-Json output into a slice. PowerShell emits a
// bare object for single results and an array otherwise; both forms are
// accepted, and empty output decodes to an empty slice.
func decodeList[T any](op string, data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%s: failed to parse output: %w", op, err)
		}
		return items, nil
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("%s: failed to parse output: %w", op, err)
	}
	return []T{item}, nil
}
