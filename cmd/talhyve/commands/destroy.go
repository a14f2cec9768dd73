package commands

import (
	"github.com/spf13/cobra"

	"github.com/talhyve/talhyve/cmd/talhyve/handlers"
)

// Destroy returns the destroy command.
//
// The destroy command removes every VM carrying the cluster's name prefix,
// their disks, and the local credential artifacts. It never talks to the
// cluster itself, so it works on unreachable and half-created clusters.
func Destroy() *cobra.Command {
	var configPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy a cluster and all associated resources",
		Long: `Destroy removes all cluster resources from the local Hyper-V host.

This command deletes everything associated with the cluster:
  - All VMs named <cluster>-control-plane-NN and <cluster>-worker-NN
  - Their VHDX disks, including orphaned disks at the deterministic path
  - The artifact directory (talosconfig, kubeconfig, secrets)

Per-VM failures are collected and reported together so a single stuck VM
does not leave the rest of the cluster behind. The operation asks for
confirmation before touching anything; in non-interactive sessions
--force is required.

Example:
  talhyve destroy -c lab.yaml

WARNING: This operation is irreversible. All cluster data will be lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), configPath, force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: talhyve.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")

	return cmd
}
