package hyperv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// VMState is the hypervisor-reported power state.
type VMState string

// States this tool cares about; Hyper-V reports more, which pass through
// verbatim.
const (
	StateRunning VMState = "Running"
	StateOff     VMState = "Off"
)

// VM is a snapshot of one virtual machine's identity and state.
type VM struct {
	Name       string   `json:"name"`
	State      VMState  `json:"state"`
	MACAddress string   `json:"mac"`
	VHDPaths   []string `json:"disks"`
}

// Running reports whether the VM is powered on.
func (v *VM) Running() bool {
	return v.State == StateRunning
}

// VMSpec describes a VM to create.
type VMSpec struct {
	Name        string
	CPUs        int64
	MemoryBytes int64
	DiskBytes   int64
	SwitchName  string
	ISOPath     string
	VHDPath     string
}

// Client drives Hyper-V through PowerShell.
type Client struct {
	run Runner
}

// NewClient creates a Client on top of a Runner.
func NewClient(r Runner) *Client {
	return &Client{run: r}
}

type vmRecord struct {
	Name  string   `json:"name"`
	State string   `json:"state"`
	MAC   string   `json:"mac"`
	Disks []string `json:"disks"`
}

const vmProjection = `[pscustomobject]@{
  name = $_.Name
  state = [string]$_.State
  mac = (Get-VMNetworkAdapter -VM $_ | Select-Object -First 1).MacAddress
  disks = @(Get-VMHardDiskDrive -VM $_ | ForEach-Object { $_.Path })
}`

// GetVM returns a VM by exact name, or ErrVMNotFound.
func (c *Client) GetVM(ctx context.Context, name string) (*VM, error) {
	script := fmt.Sprintf(
		`Get-VM -Name %s -ErrorAction SilentlyContinue | ForEach-Object { %s } | ConvertTo-Json -Compress`,
		psQuote(name), vmProjection)

	out, err := c.run.Run(ctx, "get vm", script)
	if err != nil {
		return nil, err
	}
	records, err := decodeList[vmRecord]("get vm", out)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("vm %q: %w", name, ErrVMNotFound)
	}
	return recordToVM(records[0]), nil
}

// ListVMs returns every VM whose name starts with prefix.
func (c *Client) ListVMs(ctx context.Context, prefix string) ([]*VM, error) {
	script := fmt.Sprintf(
		`@(Get-VM | Where-Object { $_.Name -like %s } | ForEach-Object { %s }) | ConvertTo-Json -Compress`,
		psQuote(prefix+"*"), vmProjection)

	out, err := c.run.Run(ctx, "list vms", script)
	if err != nil {
		return nil, err
	}
	records, err := decodeList[vmRecord]("list vms", out)
	if err != nil {
		return nil, err
	}
	vms := make([]*VM, 0, len(records))
	for _, r := range records {
		vms = append(vms, recordToVM(r))
	}
	return vms, nil
}

// CreateVM provisions a generation-2 VM with a fresh dynamic VHDX, the boot
// ISO in a DVD drive, DVD-first boot order, and secure boot disabled (Talos
// images are unsigned). A VM with the target name must not already exist.
func (c *Client) CreateVM(ctx context.Context, spec VMSpec) error {
	if _, err := c.GetVM(ctx, spec.Name); err == nil {
		return &NameCollisionError{Name: spec.Name}
	} else if !errors.Is(err, ErrVMNotFound) {
		return err
	}

	script := strings.Join([]string{
		fmt.Sprintf(`New-VHD -Path %s -SizeBytes %d -Dynamic | Out-Null`, psQuote(spec.VHDPath), spec.DiskBytes),
		fmt.Sprintf(`New-VM -Name %s -Generation 2 -MemoryStartupBytes %d -VHDPath %s -SwitchName %s | Out-Null`,
			psQuote(spec.Name), spec.MemoryBytes, psQuote(spec.VHDPath), psQuote(spec.SwitchName)),
		fmt.Sprintf(`Set-VM -Name %s -ProcessorCount %d -StaticMemory | Out-Null`, psQuote(spec.Name), spec.CPUs),
		fmt.Sprintf(`Add-VMDvdDrive -VMName %s -Path %s | Out-Null`, psQuote(spec.Name), psQuote(spec.ISOPath)),
		fmt.Sprintf(`Set-VMFirmware -VMName %s -EnableSecureBoot Off -FirstBootDevice (Get-VMDvdDrive -VMName %s) | Out-Null`,
			psQuote(spec.Name), psQuote(spec.Name)),
	}, "; ")

	_, err := c.run.Run(ctx, "create vm", script)
	return err
}

// StartVM powers a VM on.
func (c *Client) StartVM(ctx context.Context, name string) error {
	_, err := c.run.Run(ctx, "start vm", fmt.Sprintf(`Start-VM -Name %s | Out-Null`, psQuote(name)))
	return err
}

// StopVM powers a VM off hard. Talos nodes have no ACPI shutdown agent in
// maintenance mode, so a graceful stop would hang.
func (c *Client) StopVM(ctx context.Context, name string) error {
	_, err := c.run.Run(ctx, "stop vm", fmt.Sprintf(`Stop-VM -Name %s -TurnOff -Force | Out-Null`, psQuote(name)))
	return err
}

// RemoveVM deletes the VM object. Backing disks are deleted separately.
func (c *Client) RemoveVM(ctx context.Context, name string) error {
	_, err := c.run.Run(ctx, "remove vm", fmt.Sprintf(`Remove-VM -Name %s -Force | Out-Null`, psQuote(name)))
	return err
}

// EjectBootMedia removes the installer ISO from the DVD drive and points the
// firmware at the installed disk, so the next boot comes from persistent
// storage.
func (c *Client) EjectBootMedia(ctx context.Context, name string) error {
	script := strings.Join([]string{
		fmt.Sprintf(`Get-VMDvdDrive -VMName %s | Set-VMDvdDrive -Path $null`, psQuote(name)),
		fmt.Sprintf(`Set-VMFirmware -VMName %s -FirstBootDevice (Get-VMHardDiskDrive -VMName %s | Select-Object -First 1) | Out-Null`,
			psQuote(name), psQuote(name)),
	}, "; ")
	_, err := c.run.Run(ctx, "eject boot media", script)
	return err
}

// DeleteVHD removes a disk file if it exists. Missing files are not errors:
// destroy calls this with deterministic fallback paths that may never have
// been created.
func (c *Client) DeleteVHD(ctx context.Context, path string) error {
	script := fmt.Sprintf(`if (Test-Path %s) { Remove-Item %s -Force }`, psQuote(path), psQuote(path))
	_, err := c.run.Run(ctx, "delete vhd", script)
	return err
}

// NeighborIPv4 returns the IPv4 addresses the host neighbor table currently
// associates with a MAC. Entries appear only after the guest network stack
// has spoken on the wire.
func (c *Client) NeighborIPv4(ctx context.Context, mac string) ([]string, error) {
	script := fmt.Sprintf(
		`@(Get-NetNeighbor -AddressFamily IPv4 -LinkLayerAddress %s -ErrorAction SilentlyContinue | ForEach-Object { $_.IPAddress }) | ConvertTo-Json -Compress`,
		psQuote(CanonicalMAC(mac)))

	out, err := c.run.Run(ctx, "read neighbor table", script)
	if err != nil {
		return nil, err
	}
	return decodeList[string]("read neighbor table", out)
}

// CanonicalMAC normalizes a MAC to the dash-separated uppercase form the
// neighbor table uses. Hyper-V reports adapter MACs without separators.
func CanonicalMAC(mac string) string {
	clean := strings.ToUpper(strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac))
	if len(clean) != 12 {
		return strings.ToUpper(mac)
	}
	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, clean[i:i+2])
	}
	return strings.Join(parts, "-")
}

func recordToVM(r vmRecord) *VM {
	return &VM{
		Name:       r.Name,
		State:      VMState(r.State),
		MACAddress: r.MAC,
		VHDPaths:   r.Disks,
	}
}
