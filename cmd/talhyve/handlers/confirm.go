package handlers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrAborted means the user declined a confirmation prompt. Handlers treat
// it as a clean exit, not a failure.
var ErrAborted = errors.New("aborted")

// Replaced in tests: prompts cannot run against a test's stdin.
var (
	stdinIsTerminal = func() bool {
		fd := os.Stdin.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}

	runConfirmPrompt = func(title, description string) (string, error) {
		var answer string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(title).
					Description(description).
					Placeholder("yes").
					Value(&answer),
			),
		)
		if err := form.Run(); err != nil {
			return "", err
		}
		return answer, nil
	}
)

// confirmDestructive gates an irreversible operation behind a typed "yes".
// --force skips the prompt. Without a terminal the operation refuses to
// proceed rather than hanging on input nobody will provide.
func confirmDestructive(title, description string, force bool) error {
	if force {
		return nil
	}
	if !stdinIsTerminal() {
		return fmt.Errorf("stdin is not a terminal; re-run with --force to skip confirmation")
	}

	answer, err := runConfirmPrompt(title, description)
	if err != nil {
		return fmt.Errorf("confirmation prompt failed: %w", err)
	}
	if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
		return ErrAborted
	}
	return nil
}
