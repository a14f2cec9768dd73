// Package resolve correlates hypervisor VM identity with network and
// cluster identity. DHCP on the virtual switch hands out leases with no
// static guarantee, so the host neighbor table is the only MAC-to-IP
// linkage available.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/talhyve/talhyve/internal/config"
	"github.com/talhyve/talhyve/internal/k8s"
	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/util/retry"
)

// ErrNodeNotFound means a name matched neither a VM nor a Kubernetes node.
var ErrNodeNotFound = errors.New("node not found")

// ErrAddressUnresolvable means a Kubernetes node exists but carries no
// internal IP to correlate with a VM.
var ErrAddressUnresolvable = errors.New("node address unresolvable")

// Host is the hypervisor surface the resolver reads.
type Host interface {
	GetVM(ctx context.Context, name string) (*hyperv.VM, error)
	ListVMs(ctx context.Context, prefix string) ([]*hyperv.VM, error)
	NeighborIPv4(ctx context.Context, mac string) ([]string, error)
}

// Resolver discovers VM addresses and maps node names to VMs.
type Resolver struct {
	host     Host
	timeouts config.Timeouts
}

// New creates a Resolver.
func New(host Host, timeouts config.Timeouts) *Resolver {
	return &Resolver{host: host, timeouts: timeouts}
}

// WaitForMAC polls until the hypervisor reports a MAC for the VM. Dynamic
// MACs are assigned on first power-on, so a freshly started VM briefly has
// none.
func (r *Resolver) WaitForMAC(ctx context.Context, vmName string) (string, error) {
	op := fmt.Sprintf("wait for MAC of %s", vmName)
	return retry.UntilValue(ctx, op, r.timeouts.MACPoll, r.timeouts.MACWait, func() (string, error) {
		vm, err := r.host.GetVM(ctx, vmName)
		if err != nil {
			return "", err
		}
		if !usableMAC(vm.MACAddress) {
			return "", fmt.Errorf("vm %s has no MAC assigned yet", vmName)
		}
		return vm.MACAddress, nil
	})
}

// WaitForIPv4 polls the neighbor table until the MAC maps to a usable IPv4
// address. The entry is read back once more before returning: lease
// transitions can leave a stale entry that vanishes between polls, and a
// config push to a stale address would hit the wrong machine or nothing.
func (r *Resolver) WaitForIPv4(ctx context.Context, vmName, mac string) (string, error) {
	op := fmt.Sprintf("wait for address of %s (MAC %s)", vmName, hyperv.CanonicalMAC(mac))
	return retry.UntilValue(ctx, op, r.timeouts.AddressPoll, r.timeouts.AddressWait, func() (string, error) {
		ips, err := r.host.NeighborIPv4(ctx, mac)
		if err != nil {
			return "", err
		}
		ip := firstUsable(ips)
		if ip == "" {
			return "", fmt.Errorf("no usable neighbor entry for %s", hyperv.CanonicalMAC(mac))
		}

		confirm, err := r.host.NeighborIPv4(ctx, mac)
		if err != nil {
			return "", err
		}
		if !contains(confirm, ip) {
			return "", fmt.Errorf("neighbor entry %s went stale during resolution", ip)
		}
		return ip, nil
	})
}

// Resolve waits for the VM's MAC and then its current IPv4 address. It is
// called once after initial boot and again after the install reboot, since
// DHCP may hand the node a different lease.
func (r *Resolver) Resolve(ctx context.Context, vmName string) (string, error) {
	mac, err := r.WaitForMAC(ctx, vmName)
	if err != nil {
		return "", err
	}
	return r.WaitForIPv4(ctx, vmName, mac)
}

// FindVM maps a name to a VM. The name may be the VM name itself or a
// Kubernetes node name; the fallback goes node name, to internal IP, to a
// neighbor-table scan across the cluster's VMs.
func (r *Resolver) FindVM(ctx context.Context, kube k8s.Interface, clusterPrefix, name string) (*hyperv.VM, error) {
	vm, err := r.host.GetVM(ctx, name)
	if err == nil {
		return vm, nil
	}
	if !errors.Is(err, hyperv.ErrVMNotFound) {
		return nil, err
	}

	if kube == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrNodeNotFound)
	}

	node, err := kube.GetNode(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", name, ErrNodeNotFound)
	}

	var internalIP string
	for _, addr := range node.Status.Addresses {
		if addr.Type == corev1.NodeInternalIP {
			internalIP = addr.Address
			break
		}
	}
	if internalIP == "" {
		return nil, fmt.Errorf("node %q has no internal IP: %w", name, ErrAddressUnresolvable)
	}

	vms, err := r.host.ListVMs(ctx, clusterPrefix)
	if err != nil {
		return nil, err
	}
	for _, vm := range vms {
		if vm.MACAddress == "" {
			continue
		}
		ips, err := r.host.NeighborIPv4(ctx, vm.MACAddress)
		if err != nil {
			continue
		}
		if contains(ips, internalIP) {
			return vm, nil
		}
	}
	return nil, fmt.Errorf("no VM holds address %s of node %q: %w", internalIP, name, ErrNodeNotFound)
}

// firstUsable returns the first address that is neither link-local nor a
// gateway address.
func firstUsable(ips []string) string {
	for _, ip := range ips {
		if usableIPv4(ip) {
			return ip
		}
	}
	return ""
}

func usableIPv4(ip string) bool {
	if strings.HasPrefix(ip, "169.254.") {
		return false
	}
	if strings.HasSuffix(ip, ".1") {
		return false
	}
	return ip != ""
}

func usableMAC(mac string) bool {
	clean := strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac)
	return clean != "" && strings.Trim(clean, "0") != ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
