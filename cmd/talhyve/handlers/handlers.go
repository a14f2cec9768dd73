// Package handlers implements the command execution logic for the CLI.
//
// Handlers assemble the provisioning context (configuration, Hyper-V
// client, logger) and delegate to the lifecycle flows under
// internal/provisioning. Infrastructure construction goes through factory
// function variables so tests can substitute fakes.
package handlers

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/talhyve/talhyve/internal/config"
	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/provisioning"
	"github.com/talhyve/talhyve/internal/util/prerequisites"
)

// Factory function variables - can be replaced in tests.
var (
	// loadConfig loads the cluster configuration.
	loadConfig = config.Load

	// checkPrerequisites verifies required host tools before any side effect.
	checkPrerequisites = prerequisites.CheckDefault

	// newHostService builds the PowerShell-backed Hyper-V client.
	newHostService = func() (hyperv.Service, error) {
		runner, err := hyperv.NewExecRunner()
		if err != nil {
			return nil, err
		}
		return hyperv.NewClient(runner), nil
	}
)

// buildContext loads the configuration, verifies the host, and assembles
// the provisioning context every lifecycle operation runs against.
func buildContext(ctx context.Context, configPath string) (*provisioning.Context, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := checkPrerequisites(); err != nil {
		return nil, err
	}

	host, err := newHostService()
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	return provisioning.NewContext(ctx, cfg, host, logger), nil
}

// printWarningSummary repeats the warnings collected during a run so they
// are not lost in the operation log.
func printWarningSummary(warnings []string) {
	if len(warnings) == 0 {
		return
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f59e0b"))
	itemStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, headerStyle.Render(fmt.Sprintf("  %d warning(s):", len(warnings))))
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, itemStyle.Render("  - "+w))
	}
}
