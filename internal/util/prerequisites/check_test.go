package prerequisites

import (
	"strings"
	"testing"
)

func TestCheck_MissingTool(t *testing.T) {
	t.Parallel()
	err := Check([]Tool{{
		Names:       []string{"definitely-not-a-real-binary-name"},
		Description: "test tool",
	}})
	if err == nil {
		t.Fatal("expected error for missing tool")
	}
	if !strings.Contains(err.Error(), "definitely-not-a-real-binary-name") {
		t.Errorf("error should name the missing tool: %v", err)
	}
}

func TestCheck_FoundTool(t *testing.T) {
	t.Parallel()
	// "go" is guaranteed present in the test environment.
	err := Check([]Tool{{Names: []string{"go"}, Description: "toolchain"}})
	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	t.Parallel()
	path, ok := Resolve(Tool{Names: []string{"no-such-binary-zzz", "go"}})
	if !ok || path == "" {
		t.Errorf("expected fallback name to resolve, got (%q, %v)", path, ok)
	}
}
