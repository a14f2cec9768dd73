// Package main is the entry point for the talhyve CLI.
//
// talhyve provisions Talos Linux Kubernetes clusters on local Hyper-V.
// It drives the hypervisor through PowerShell, pushes machine configs over
// the Talos API, and installs the platform stack with Helm. No agent runs
// inside the VMs; all state lives in the hypervisor and in a per-cluster
// artifact directory.
//
// Commands: create, scale, destroy.
//
// For detailed usage information, run:
//
//	talhyve --help
package main

import (
	"fmt"
	"os"

	"github.com/talhyve/talhyve/cmd/talhyve/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
