package handlers

import (
	"path/filepath"
	"testing"

	"github.com/talhyve/talhyve/internal/config"
	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/platform/hyperv/fakes"
)

// stubEnvironment replaces the infrastructure seams so handlers run
// against an in-memory Hyper-V host and a synthetic configuration.
func stubEnvironment(t *testing.T) *fakes.FakeHyperV {
	t.Helper()

	host := fakes.New()
	origLoad, origCheck, origHost := loadConfig, checkPrerequisites, newHostService
	t.Cleanup(func() {
		loadConfig, checkPrerequisites, newHostService = origLoad, origCheck, origHost
	})

	loadConfig = func(_ string) (*config.Config, error) {
		cfg := config.Default()
		cfg.ClusterName = "lab"
		cfg.OutputDir = filepath.Join(t.TempDir(), "lab")
		cfg.VHDDir = filepath.Join(cfg.OutputDir, "disks")
		return cfg, nil
	}
	checkPrerequisites = func() error { return nil }
	newHostService = func() (hyperv.Service, error) { return host, nil }

	return host
}

// stubPrompt replaces the terminal seams with a scripted answer.
func stubPrompt(t *testing.T, answer string) *promptRecorder {
	t.Helper()

	rec := &promptRecorder{answer: answer}
	origTTY, origPrompt := stdinIsTerminal, runConfirmPrompt
	t.Cleanup(func() {
		stdinIsTerminal, runConfirmPrompt = origTTY, origPrompt
	})

	stdinIsTerminal = func() bool { return true }
	runConfirmPrompt = func(title, description string) (string, error) {
		rec.title = title
		rec.description = description
		return rec.answer, nil
	}
	return rec
}

type promptRecorder struct {
	answer      string
	title       string
	description string
}
