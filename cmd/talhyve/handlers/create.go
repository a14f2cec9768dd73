package handlers

import (
	"context"
	"fmt"

	"github.com/talhyve/talhyve/internal/provisioning/cluster"
)

// createCluster runs the create flow - replaced in tests.
var createCluster = cluster.Create

// Create handles the create command.
//
// It provisions a fresh single-control-plane cluster and installs the
// platform stack. Warnings collected during the run (health lag, addon
// failures) are repeated at the end; only lifecycle failures make the
// command exit non-zero.
func Create(ctx context.Context, configPath string, force, skipAddons bool) error {
	pctx, err := buildContext(ctx, configPath)
	if err != nil {
		return err
	}

	pctx.Logger.Printf("Creating cluster %s...", pctx.Config.ClusterName)
	if err := createCluster(pctx, cluster.CreateOptions{Force: force, SkipAddons: skipAddons}); err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	pctx.Logger.Printf("Cluster %s is up; kubeconfig at %s", pctx.Config.ClusterName, pctx.Artifacts.KubeconfigPath())
	printWarningSummary(pctx.Warnings.List())
	return nil
}
