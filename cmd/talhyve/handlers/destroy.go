package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/talhyve/talhyve/internal/provisioning"
	"github.com/talhyve/talhyve/internal/provisioning/destroy"
	"github.com/talhyve/talhyve/internal/util/naming"
)

// destroyCluster runs the destroy flow - replaced in tests.
var destroyCluster = destroy.Destroy

// Destroy handles the destroy command.
//
// It enumerates the cluster's VMs up front so the confirmation prompt can
// show what is about to be deleted, then hands off to the destroy flow.
// A declined prompt exits cleanly.
func Destroy(ctx context.Context, configPath string, force bool) error {
	pctx, err := buildContext(ctx, configPath)
	if err != nil {
		return err
	}

	description, err := describeDoomed(pctx)
	if err != nil {
		return err
	}
	err = confirmDestructive(
		fmt.Sprintf("Destroy cluster %s?", pctx.Config.ClusterName),
		description,
		force,
	)
	if errors.Is(err, ErrAborted) {
		fmt.Fprintln(os.Stderr, "Aborted, nothing was destroyed.")
		return nil
	}
	if err != nil {
		return err
	}

	if err := destroyCluster(pctx); err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	pctx.Logger.Printf("Cluster %s destroyed", pctx.Config.ClusterName)
	printWarningSummary(pctx.Warnings.List())
	return nil
}

func describeDoomed(pctx *provisioning.Context) (string, error) {
	vms, err := pctx.VMs.ListVMs(pctx, naming.Prefix(pctx.Config.ClusterName))
	if err != nil {
		return "", fmt.Errorf("failed to enumerate cluster VMs: %w", err)
	}

	var b strings.Builder
	if len(vms) == 0 {
		b.WriteString("No VMs found; only local artifacts will be removed.")
	} else {
		fmt.Fprintf(&b, "This deletes %d VM(s) and their disks:", len(vms))
		for _, vm := range vms {
			b.WriteString("\n  - " + vm.Name)
		}
	}
	b.WriteString("\nType 'yes' to continue.")
	return b.String(), nil
}
