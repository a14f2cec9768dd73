// Package node implements the per-node lifecycle state machine: provision,
// address discovery, config application, install reboot, re-discovery, and
// cluster membership verification.
package node

import (
	"errors"
	"fmt"
	"os"

	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/provisioning"
	"github.com/talhyve/talhyve/internal/util/naming"
	"github.com/talhyve/talhyve/internal/util/retry"
)

// AddOptions parameterizes a single node addition.
type AddOptions struct {
	Role string

	// OnFirstAddress runs after the initial address discovery, before any
	// machine config is generated. Cluster create uses it to fix the
	// cluster endpoint on the first control plane and build the
	// authenticated Talos client.
	OnFirstAddress func(ip string) error

	// SkipMembershipChecks drops join and etcd verification. Create sets
	// it because the cluster is not bootstrapped until after both initial
	// nodes are added; convergence is checked by the health poll instead.
	SkipMembershipChecks bool
}

// AddResult reports the identity of a successfully added node.
type AddResult struct {
	Name string
	Role string
	MAC  string
	IP   string
}

// Add runs the full add state machine for one node. The VM is not rolled
// back on failure: a half-provisioned node stays visible for the operator
// to retry or destroy.
func Add(ctx *provisioning.Context, opts AddOptions) (*AddResult, error) {
	name, err := nextNodeName(ctx, opts.Role)
	if err != nil {
		return nil, err
	}

	if err := provision(ctx, name, opts.Role); err != nil {
		return nil, err
	}

	ip, err := ctx.Resolver.Resolve(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("address discovery for %s failed: %w", name, err)
	}
	ctx.Logger.Printf("[node] %s is reachable at %s", name, ip)

	if opts.OnFirstAddress != nil {
		if err := opts.OnFirstAddress(ip); err != nil {
			return nil, err
		}
	}

	machineConfig, err := generateConfig(ctx, opts.Role, name, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to generate machine config for %s: %w", name, err)
	}

	ctx.Logger.Printf("[node] applying machine config to %s (%s)...", name, ip)
	if err := ctx.Talos.ApplyConfigInsecure(ctx, ip, machineConfig); err != nil {
		return nil, fmt.Errorf("config apply to %s failed: %w", name, err)
	}

	// The apply triggers the installer's write to disk; ejecting the ISO
	// too early interrupts it.
	ctx.Logger.Printf("[node] waiting %s for %s to install to disk...", ctx.Config.Timeouts.InstallSettle, name)
	if err := retry.Sleep(ctx, ctx.Config.Timeouts.InstallSettle); err != nil {
		return nil, err
	}

	if err := rebootFromDisk(ctx, name); err != nil {
		return nil, err
	}

	// DHCP may hand out a different lease after the reboot, so discovery
	// runs again rather than reusing the pre-reboot address.
	ip, err = ctx.Resolver.Resolve(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("post-reboot address discovery for %s failed: %w", name, err)
	}
	ctx.Logger.Printf("[node] %s is back at %s, waiting for the Talos API...", name, ip)

	if err := awaitAPI(ctx, name, ip); err != nil {
		return nil, err
	}

	if !opts.SkipMembershipChecks {
		if err := verifyJoin(ctx, name); err != nil {
			return nil, err
		}
		if opts.Role == naming.RoleControlPlane {
			verifyEtcdMembership(ctx, name, ip)
		}
	}

	vm, err := ctx.VMs.GetVM(ctx, name)
	if err != nil {
		return nil, err
	}
	return &AddResult{Name: name, Role: opts.Role, MAC: vm.MACAddress, IP: ip}, nil
}

// nextNodeName scans the cluster's existing VMs and picks the next free
// monotonic suffix for the role. Suffixes of deleted nodes are not reused.
func nextNodeName(ctx *provisioning.Context, role string) (string, error) {
	vms, err := ctx.VMs.ListVMs(ctx, naming.Prefix(ctx.Config.ClusterName))
	if err != nil {
		return "", fmt.Errorf("failed to enumerate cluster VMs: %w", err)
	}
	names := make([]string, 0, len(vms))
	for _, vm := range vms {
		names = append(names, vm.Name)
	}
	index := naming.NextIndex(names, ctx.Config.ClusterName, role)
	return naming.Node(ctx.Config.ClusterName, role, index), nil
}

func provision(ctx *provisioning.Context, name, role string) error {
	sizing := ctx.Config.Worker
	if role == naming.RoleControlPlane {
		sizing = ctx.Config.ControlPlane
	}

	if err := os.MkdirAll(ctx.Config.VHDDir, 0o755); err != nil {
		return fmt.Errorf("failed to create disk dir: %w", err)
	}

	ctx.Logger.Printf("[node] creating VM %s (%d vCPU, %d MiB, %d GiB disk)...",
		name, sizing.CPUs, sizing.MemoryBytes>>20, sizing.DiskBytes>>30)

	err := ctx.VMs.CreateVM(ctx, hyperv.VMSpec{
		Name:        name,
		CPUs:        sizing.CPUs,
		MemoryBytes: sizing.MemoryBytes,
		DiskBytes:   sizing.DiskBytes,
		SwitchName:  ctx.Config.SwitchName,
		ISOPath:     ctx.Config.Image.CachePath,
		VHDPath:     ctx.Config.VHDPath(name),
	})
	if err != nil {
		if hyperv.IsNameCollision(err) {
			return fmt.Errorf("provisioning %s: %w", name, err)
		}
		return fmt.Errorf("failed to create VM %s: %w", name, err)
	}

	if err := ctx.VMs.StartVM(ctx, name); err != nil {
		return fmt.Errorf("failed to start VM %s: %w", name, err)
	}
	return nil
}

func generateConfig(ctx *provisioning.Context, role, hostname, ip string) ([]byte, error) {
	if role == naming.RoleControlPlane {
		return ctx.Generator.GenerateControlPlaneConfig([]string{ip}, hostname)
	}
	return ctx.Generator.GenerateWorkerConfig(hostname)
}

// rebootFromDisk ejects the installer ISO, points the firmware at the
// installed disk, and power-cycles the VM.
func rebootFromDisk(ctx *provisioning.Context, name string) error {
	if err := ctx.VMs.EjectBootMedia(ctx, name); err != nil {
		return fmt.Errorf("failed to eject boot media of %s: %w", name, err)
	}
	if err := ctx.VMs.StopVM(ctx, name); err != nil {
		return fmt.Errorf("failed to stop %s: %w", name, err)
	}
	if err := ctx.VMs.StartVM(ctx, name); err != nil {
		return fmt.Errorf("failed to restart %s: %w", name, err)
	}
	return nil
}

// awaitAPI polls the authenticated Talos API until the node answers with
// its installed identity. Expiry is fatal: a node that never comes back is
// not a degraded outcome.
func awaitAPI(ctx *provisioning.Context, name, ip string) error {
	op := fmt.Sprintf("wait for Talos API of %s", name)
	err := retry.Until(ctx, op, ctx.Config.Timeouts.BootPoll, ctx.Config.Timeouts.BootWait, func() error {
		return ctx.Talos.Ping(ctx, ip)
	})
	if err != nil {
		return fmt.Errorf("node %s did not come back after install: %w", name, err)
	}
	return nil
}

// verifyJoin waits for the node to register Ready in Kubernetes. The
// timeout is a warning by default: joins can legitimately lag, and rolling
// back a healthy VM over a slow join would be worse than reporting it.
func verifyJoin(ctx *provisioning.Context, name string) error {
	if ctx.Kube == nil {
		ctx.Warnf("no kubeconfig available yet, skipping join verification for %s", name)
		return nil
	}

	ctx.Logger.Printf("[node] waiting for %s to join Kubernetes...", name)
	err := ctx.Kube.WaitForNodeReady(ctx, name, ctx.Config.Timeouts.JoinPoll, ctx.Config.Timeouts.JoinWait)
	if err == nil {
		ctx.Logger.Printf("[node] %s joined the cluster", name)
		return nil
	}
	if ctx.Config.StrictJoin {
		return fmt.Errorf("node %s did not join within %s: %w", name, ctx.Config.Timeouts.JoinWait, err)
	}
	ctx.Warnf("node %s has not joined Kubernetes within %s; it may still be converging", name, ctx.Config.Timeouts.JoinWait)
	return nil
}

// verifyEtcdMembership checks that a new control plane shows up in the
// etcd member list after a settle delay. Absence is a warning only: etcd
// heals membership asynchronously.
func verifyEtcdMembership(ctx *provisioning.Context, name, ip string) {
	if err := retry.Sleep(ctx, ctx.Config.Timeouts.EtcdSettle); err != nil {
		return
	}

	members, err := ctx.Talos.EtcdMembers(ctx, ip)
	if err != nil {
		ctx.Warnf("could not list etcd members via %s: %v", name, err)
		return
	}
	for _, member := range members {
		if member == name {
			ctx.Logger.Printf("[node] %s is an etcd member", name)
			return
		}
	}
	ctx.Warnf("control plane %s is not yet an etcd member (members: %v)", name, members)
}

// IsProvisionConflict reports whether an add failed because the target VM
// name already exists.
func IsProvisionConflict(err error) bool {
	var nce *hyperv.NameCollisionError
	return errors.As(err, &nce)
}
