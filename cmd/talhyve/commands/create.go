package commands

import (
	"github.com/spf13/cobra"

	"github.com/talhyve/talhyve/cmd/talhyve/handlers"
)

// Create returns the command for provisioning a new cluster.
//
// The command provisions one control-plane and one worker VM on the local
// Hyper-V host, bootstraps etcd, retrieves credentials, and installs the
// platform stack (Cilium, MetalLB, ingress-nginx, kube-prometheus-stack).
//
// Optional flags:
//
//	--config, -c: Path to cluster configuration YAML file (default: auto-detect talhyve.yaml)
//	--force: Proceed even when VMs with the cluster's name prefix already exist
//	--skip-addons: Leave the cluster bare after bootstrap
func Create() *cobra.Command {
	var configPath string
	var force bool
	var skipAddons bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new Talos cluster on the local Hyper-V host",
		Long: `Create provisions a complete single-control-plane cluster.

The command walks each node through the full lifecycle:
  1. Download (or reuse) the Talos boot ISO
  2. Create a Gen2 VM booting from the ISO
  3. Resolve the VM's DHCP address from the host neighbor table
  4. Push the machine config over the insecure maintenance API
  5. Reboot from disk and re-resolve the address
  6. Wait for the authenticated Talos API

The first control plane's address becomes the cluster endpoint, etcd is
bootstrapped there, and credentials (talosconfig, kubeconfig, machine
config templates) are written to the cluster's artifact directory. Unless
--skip-addons is given, the platform stack is then installed via Helm.

Examples:
  # Create a cluster using talhyve.yaml in the current directory
  talhyve create

  # Create a cluster from a specific config file, without addons
  talhyve create -c lab.yaml --skip-addons`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Create(cmd.Context(), configPath, force, skipAddons)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: talhyve.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "Proceed even when VMs with the cluster prefix already exist")
	cmd.Flags().BoolVar(&skipAddons, "skip-addons", false, "Skip the Helm platform stack")

	return cmd
}
