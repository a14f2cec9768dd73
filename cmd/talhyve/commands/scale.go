package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talhyve/talhyve/cmd/talhyve/handlers"
	"github.com/talhyve/talhyve/internal/util/naming"
)

// Scale returns the parent command for growing and shrinking a cluster.
func Scale() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Add or remove nodes of an existing cluster",
	}

	cmd.AddCommand(scaleAdd())
	cmd.AddCommand(scaleRemove())

	return cmd
}

func scaleAdd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "add <control-plane|worker>",
		Short: "Add one node of the given role",
		Long: `Add provisions one additional node and joins it to the cluster.

The node goes through the same lifecycle as during create, but the cluster
identity (secrets, endpoint, credentials) is read from the artifact
directory a previous create persisted. The node name is the next free
index for the role; indices are never reused.

Examples:
  # Add a worker
  talhyve scale add worker

  # Add a control plane (etcd membership is verified afterwards)
  talhyve scale add control-plane`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{naming.RoleControlPlane, naming.RoleWorker},
		RunE: func(cmd *cobra.Command, args []string) error {
			role := args[0]
			if role != naming.RoleControlPlane && role != naming.RoleWorker {
				return fmt.Errorf("unknown role %q: must be %s or %s", role, naming.RoleControlPlane, naming.RoleWorker)
			}
			return handlers.ScaleAdd(cmd.Context(), configPath, role)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: talhyve.yaml)")

	return cmd
}

func scaleRemove() *cobra.Command {
	var configPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "remove <node>",
		Short: "Drain and remove one node",
		Long: `Remove takes a node out of the cluster and deletes its VM and disk.

The node may be given as a VM name, a Kubernetes node name, or a node
internal IP. Workers are cordoned and drained first; a drain failure
aborts the removal unless --force is given. Control planes are removed
without draining, with a warning about etcd quorum.

The operation asks for confirmation before touching anything. In
non-interactive sessions --force is required.

Examples:
  # Remove a worker by VM name
  talhyve scale remove talhyve-worker-02

  # Remove a node even when its drain fails
  talhyve scale remove talhyve-worker-02 --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.ScaleRemove(cmd.Context(), configPath, args[0], force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: talhyve.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation and downgrade drain failure to a warning")

	return cmd
}
