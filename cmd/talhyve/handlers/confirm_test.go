package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmDestructive_Answers(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		aborted bool
	}{
		{"plain yes", "yes", false},
		{"trimmed and case-folded", "  Yes ", false},
		{"no", "no", true},
		{"empty", "", true},
		{"y is not enough", "y", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubPrompt(t, tt.answer)

			err := confirmDestructive("Sure?", "desc", false)
			if tt.aborted {
				assert.ErrorIs(t, err, ErrAborted)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfirmDestructive_ForceSkipsPrompt(t *testing.T) {
	origTTY := stdinIsTerminal
	t.Cleanup(func() { stdinIsTerminal = origTTY })
	stdinIsTerminal = func() bool { return false }

	assert.NoError(t, confirmDestructive("Sure?", "desc", true))
}

func TestConfirmDestructive_NonInteractiveRequiresForce(t *testing.T) {
	origTTY := stdinIsTerminal
	t.Cleanup(func() { stdinIsTerminal = origTTY })
	stdinIsTerminal = func() bool { return false }

	err := confirmDestructive("Sure?", "desc", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}
