package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/talhyve/talhyve/internal/provisioning/cluster"
	"github.com/talhyve/talhyve/internal/provisioning/node"
)

// Scale flow functions - replaced in tests.
var (
	scaleAddNode         = cluster.ScaleAdd
	prepareFromArtifacts = cluster.PrepareFromArtifacts
	resolveRemoveTarget  = node.ResolveTarget
	removeNode           = node.Remove
)

// ScaleAdd handles the scale add command.
//
// It joins one node of the given role to an existing cluster, reusing the
// identity persisted by create.
func ScaleAdd(ctx context.Context, configPath, role string) error {
	pctx, err := buildContext(ctx, configPath)
	if err != nil {
		return err
	}

	result, err := scaleAddNode(pctx, role)
	if err != nil {
		return fmt.Errorf("scale add failed: %w", err)
	}

	pctx.Logger.Printf("Node %s (%s) added to cluster %s", result.Name, result.IP, pctx.Config.ClusterName)
	printWarningSummary(pctx.Warnings.List())
	return nil
}

// ScaleRemove handles the scale remove command.
//
// The target may be a VM name, a Kubernetes node name, or a node internal
// IP. Removal is gated behind a confirmation prompt; a declined prompt
// exits cleanly without touching anything.
//
// Cluster credentials are loaded best-effort: a cluster that is already
// unhealthy must still be shrinkable, so a failure to prepare clients
// degrades to hypervisor-only removal with a warning.
func ScaleRemove(ctx context.Context, configPath, nameOrNode string, force bool) error {
	pctx, err := buildContext(ctx, configPath)
	if err != nil {
		return err
	}

	if err := prepareFromArtifacts(pctx); err != nil {
		pctx.Warnf("cluster credentials unavailable, removing at the hypervisor level only: %v", err)
	}

	target, err := resolveRemoveTarget(pctx, nameOrNode)
	if err != nil {
		return err
	}

	role := "worker"
	if target.ControlPlane {
		role = "control plane"
	}
	err = confirmDestructive(
		fmt.Sprintf("Remove %s %s?", role, target.VM.Name),
		"The VM and its disk will be deleted. Type 'yes' to continue.",
		force,
	)
	if errors.Is(err, ErrAborted) {
		fmt.Fprintln(os.Stderr, "Aborted, nothing was removed.")
		return nil
	}
	if err != nil {
		return err
	}

	if err := removeNode(pctx, target, node.RemoveOptions{Force: force}); err != nil {
		return fmt.Errorf("scale remove failed: %w", err)
	}

	pctx.Logger.Printf("Node %s removed from cluster %s", target.VM.Name, pctx.Config.ClusterName)
	printWarningSummary(pctx.Warnings.List())
	return nil
}
