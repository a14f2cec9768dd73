// Package fakes provides an in-memory Hyper-V implementation for tests.
package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/talhyve/talhyve/internal/platform/hyperv"
)

// FakeHyperV simulates the hyperv.Service surface: a VM inventory, a disk
// set, and a mutable neighbor table keyed by canonical MAC.
type FakeHyperV struct {
	mu        sync.Mutex
	vms       map[string]*hyperv.VM
	disks     map[string]bool
	neighbors map[string][]string
	nextMAC   int

	// Hooks observed by tests.
	StartCalls []string
	StopCalls  []string
	EjectCalls []string

	// Fail injects an error for the named operation ("create", "start",
	// "stop", "remove", "deleteVHD").
	Fail map[string]error

	// AutoLease simulates DHCP: each StartVM hands the VM's MAC the next
	// address from this list as its sole neighbor entry.
	AutoLease []string
	leaseIdx  int
}

// New returns an empty fake host.
func New() *FakeHyperV {
	return &FakeHyperV{
		vms:       make(map[string]*hyperv.VM),
		disks:     make(map[string]bool),
		neighbors: make(map[string][]string),
		nextMAC:   1,
	}
}

func (f *FakeHyperV) failFor(op string) error {
	if f.Fail == nil {
		return nil
	}
	return f.Fail[op]
}

// CreateVM registers a new VM in Off state with a generated MAC.
func (f *FakeHyperV) CreateVM(_ context.Context, spec hyperv.VMSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("create"); err != nil {
		return err
	}
	if _, ok := f.vms[spec.Name]; ok {
		return &hyperv.NameCollisionError{Name: spec.Name}
	}
	mac := fmt.Sprintf("00155D0000%02X", f.nextMAC)
	f.nextMAC++
	f.vms[spec.Name] = &hyperv.VM{
		Name:       spec.Name,
		State:      hyperv.StateOff,
		MACAddress: mac,
		VHDPaths:   []string{spec.VHDPath},
	}
	f.disks[spec.VHDPath] = true
	return nil
}

func (f *FakeHyperV) StartVM(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("start"); err != nil {
		return err
	}
	vm, ok := f.vms[name]
	if !ok {
		return fmt.Errorf("vm %q: %w", name, hyperv.ErrVMNotFound)
	}
	vm.State = hyperv.StateRunning
	f.StartCalls = append(f.StartCalls, name)
	if f.leaseIdx < len(f.AutoLease) {
		f.neighbors[hyperv.CanonicalMAC(vm.MACAddress)] = []string{f.AutoLease[f.leaseIdx]}
		f.leaseIdx++
	}
	return nil
}

func (f *FakeHyperV) StopVM(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("stop"); err != nil {
		return err
	}
	vm, ok := f.vms[name]
	if !ok {
		return fmt.Errorf("vm %q: %w", name, hyperv.ErrVMNotFound)
	}
	vm.State = hyperv.StateOff
	f.StopCalls = append(f.StopCalls, name)
	return nil
}

func (f *FakeHyperV) RemoveVM(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("remove"); err != nil {
		return err
	}
	if _, ok := f.vms[name]; !ok {
		return fmt.Errorf("vm %q: %w", name, hyperv.ErrVMNotFound)
	}
	delete(f.vms, name)
	return nil
}

func (f *FakeHyperV) EjectBootMedia(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vms[name]; !ok {
		return fmt.Errorf("vm %q: %w", name, hyperv.ErrVMNotFound)
	}
	f.EjectCalls = append(f.EjectCalls, name)
	return nil
}

func (f *FakeHyperV) GetVM(_ context.Context, name string) (*hyperv.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vm, ok := f.vms[name]
	if !ok {
		return nil, fmt.Errorf("vm %q: %w", name, hyperv.ErrVMNotFound)
	}
	cp := *vm
	return &cp, nil
}

func (f *FakeHyperV) ListVMs(_ context.Context, prefix string) ([]*hyperv.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*hyperv.VM
	for _, vm := range f.vms {
		if strings.HasPrefix(vm.Name, prefix) {
			cp := *vm
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *FakeHyperV) DeleteVHD(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("deleteVHD"); err != nil {
		return err
	}
	delete(f.disks, path)
	return nil
}

func (f *FakeHyperV) NeighborIPv4(_ context.Context, mac string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.neighbors[hyperv.CanonicalMAC(mac)]...), nil
}

// SetNeighbors replaces the neighbor entries for a MAC, simulating DHCP
// lease assignment or post-reboot reassignment.
func (f *FakeHyperV) SetNeighbors(mac string, ips ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.neighbors[hyperv.CanonicalMAC(mac)] = ips
}

// MACOf returns the generated MAC of a registered VM.
func (f *FakeHyperV) MACOf(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if vm, ok := f.vms[name]; ok {
		return vm.MACAddress
	}
	return ""
}

// HasDisk reports whether a disk path still exists.
func (f *FakeHyperV) HasDisk(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disks[path]
}

// VMCount returns the number of registered VMs.
func (f *FakeHyperV) VMCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vms)
}
