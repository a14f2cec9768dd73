// Package prerequisites verifies required host tools before any side effect.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool is a host binary the CLI depends on.
type Tool struct {
	// Names lists the binary names to look for in PATH; the first match wins.
	Names []string

	// Description explains what the tool is used for.
	Description string
}

// DefaultTools returns the tools every operation needs.
// PowerShell is the only management surface Hyper-V exposes, so it is
// mandatory for all four operations.
func DefaultTools() []Tool {
	return []Tool{
		{
			Names:       []string{"powershell.exe", "powershell", "pwsh"},
			Description: "Required for all Hyper-V VM and neighbor-table operations",
		},
	}
}

// Check verifies that each tool resolves in PATH. A missing tool is a
// precondition failure: the caller must abort before creating anything.
func Check(tools []Tool) error {
	var missing []string
	for _, tool := range tools {
		if _, ok := Resolve(tool); !ok {
			missing = append(missing, fmt.Sprintf("%s (%s)", strings.Join(tool.Names, "/"), tool.Description))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Resolve returns the PATH location of the first available binary name.
func Resolve(tool Tool) (string, bool) {
	for _, name := range tool.Names {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// CheckDefault checks the default required tools.
func CheckDefault() error {
	return Check(DefaultTools())
}
