package node

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/talhyve/talhyve/internal/k8s"
	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/provisioning"
	"github.com/talhyve/talhyve/internal/util/naming"
)

// RemoveTarget is a resolved removal candidate: the VM, and its Kubernetes
// identity when it is registered in the cluster.
type RemoveTarget struct {
	VM           *hyperv.VM
	KubeNodeName string
	ControlPlane bool
}

// RemoveOptions parameterizes a node removal.
type RemoveOptions struct {
	// Force downgrades drain failure to a warning.
	Force bool
}

// ResolveTarget maps a VM or Kubernetes node name to a removal target and
// classifies its role. Resolution failure is fatal to the remove operation.
func ResolveTarget(ctx *provisioning.Context, nameOrNode string) (*RemoveTarget, error) {
	vm, err := ctx.Resolver.FindVM(ctx, ctx.Kube, naming.Prefix(ctx.Config.ClusterName), nameOrNode)
	if err != nil {
		return nil, err
	}

	target := &RemoveTarget{VM: vm}
	if node := lookupKubeNode(ctx, vm); node != nil {
		target.KubeNodeName = node.Name
		target.ControlPlane = k8s.IsControlPlane(node)
		return target, nil
	}

	// Not registered in Kubernetes; classify from the VM name so the
	// control-plane warning still fires.
	if role, _, ok := naming.ParseNode(vm.Name, ctx.Config.ClusterName); ok {
		target.ControlPlane = role == naming.RoleControlPlane
	}
	return target, nil
}

// lookupKubeNode finds the Kubernetes node backing a VM: by name first
// (hostnames are set to VM names at config generation), then by matching a
// node internal IP against the VM's neighbor entries.
func lookupKubeNode(ctx *provisioning.Context, vm *hyperv.VM) *corev1.Node {
	if ctx.Kube == nil {
		return nil
	}
	if node, err := ctx.Kube.GetNode(ctx, vm.Name); err == nil {
		return node
	}
	if vm.MACAddress == "" {
		return nil
	}
	ips, err := ctx.VMs.NeighborIPv4(ctx, vm.MACAddress)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		node, err := ctx.Kube.NodeByInternalIP(ctx, ip)
		if err == nil && node != nil {
			return node
		}
	}
	return nil
}

// Remove takes a node out of the cluster and deletes its VM and disk. The
// caller has already passed the confirmation gate.
func Remove(ctx *provisioning.Context, target *RemoveTarget, opts RemoveOptions) error {
	name := target.VM.Name

	if target.ControlPlane {
		ctx.Warnf("removing control plane %s; etcd quorum is not checked, verify remaining member count", name)
	}

	if !target.ControlPlane && target.KubeNodeName != "" && ctx.Kube != nil {
		if err := drainNode(ctx, target.KubeNodeName, opts.Force); err != nil {
			return err
		}
	}

	if target.KubeNodeName != "" && ctx.Kube != nil {
		if err := ctx.Kube.DeleteNode(ctx, target.KubeNodeName); err != nil {
			ctx.Warnf("failed to delete Kubernetes node %s: %v", target.KubeNodeName, err)
		}
	}

	if target.VM.Running() {
		if err := ctx.VMs.StopVM(ctx, name); err != nil {
			return fmt.Errorf("failed to stop %s: %w", name, err)
		}
	}

	ctx.Logger.Printf("[node] removing VM %s...", name)
	if err := ctx.VMs.RemoveVM(ctx, name); err != nil {
		return fmt.Errorf("failed to remove VM %s: %w", name, err)
	}

	for _, path := range diskPaths(ctx, target.VM) {
		if err := ctx.VMs.DeleteVHD(ctx, path); err != nil {
			ctx.Warnf("failed to delete disk %s: %v", path, err)
		}
	}
	return nil
}

func drainNode(ctx *provisioning.Context, nodeName string, force bool) error {
	ctx.Logger.Printf("[node] draining %s...", nodeName)
	if err := ctx.Kube.CordonNode(ctx, nodeName); err != nil {
		ctx.Warnf("failed to cordon %s: %v", nodeName, err)
	}
	err := ctx.Kube.DrainNode(ctx, nodeName, ctx.Config.Timeouts.Drain)
	if err == nil {
		return nil
	}
	if !force {
		return fmt.Errorf("failed to drain %s (use --force to remove anyway): %w", nodeName, err)
	}
	ctx.Warnf("drain of %s failed, continuing because of --force: %v", nodeName, err)
	return nil
}

// diskPaths returns the VM's reported disks plus the deterministic path,
// covering disks the VM object no longer references.
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
