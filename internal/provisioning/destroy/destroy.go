// Package destroy tears a cluster down at the hypervisor and filesystem
// level. It has no dependency on cluster health: it must finish even when
// the cluster is unreachable or half-created.
package destroy

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/provisioning"
	"github.com/talhyve/talhyve/internal/util/naming"
)

// Destroy removes every VM carrying the cluster's name prefix, their
// disks, and the credential-artifact directory. Per-VM failures are
// collected and reported together instead of aborting the teardown.
func Destroy(ctx *provisioning.Context) error {
	vms, err := ctx.VMs.ListVMs(ctx, naming.Prefix(ctx.Config.ClusterName))
	if err != nil {
		return fmt.Errorf("failed to enumerate cluster VMs: %w", err)
	}
	if len(vms) == 0 {
		ctx.Logger.Printf("[destroy] no VMs with prefix %s", naming.Prefix(ctx.Config.ClusterName))
	}

	var result *multierror.Error
	for _, vm := range vms {
		if err := destroyVM(ctx, vm); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if ctx.Artifacts.Exists() {
		ctx.Logger.Printf("[destroy] removing artifact dir %s", ctx.Artifacts.Dir)
		if err := ctx.Artifacts.Remove(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// destroyVM stops, removes, and deletes the disks of one VM, collecting
// every failure rather than stopping at the first.
func destroyVM(ctx *provisioning.Context, vm *hyperv.VM) error {
	ctx.Logger.Printf("[destroy] removing %s...", vm.Name)

	var result *multierror.Error
	if vm.Running() {
		if err := ctx.VMs.StopVM(ctx, vm.Name); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: stop: %w", vm.Name, err))
		}
	}
	if err := ctx.VMs.RemoveVM(ctx, vm.Name); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: remove: %w", vm.Name, err))
	}

	for _, path := range diskPaths(ctx, vm) {
		if err := ctx.VMs.DeleteVHD(ctx, path); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: delete disk %s: %w", vm.Name, path, err))
		}
	}
	return result.ErrorOrNil()
}

// diskPaths combines the disks the VM object reports with the
// deterministic fallback path, covering disks orphaned by an earlier
// partial removal.
func diskPaths(ctx *provisioning.Context, vm *hyperv.VM) []string {
	paths := append([]string(nil), vm.VHDPaths...)
	fallback := ctx.Config.VHDPath(vm.Name)
	for _, p := range paths {
		if p == fallback {
			return paths
		}
	}
	return append(paths, fallback)
}
