package hyperv

import "context"

// Interfaces over the Hyper-V surface to allow mocking.

// VMManager covers VM lifecycle operations.
type VMManager interface {
	CreateVM(ctx context.Context, spec VMSpec) error
	StartVM(ctx context.Context, name string) error
	StopVM(ctx context.Context, name string) error
	RemoveVM(ctx context.Context, name string) error
	EjectBootMedia(ctx context.Context, name string) error
	GetVM(ctx context.Context, name string) (*VM, error)
	ListVMs(ctx context.Context, prefix string) ([]*VM, error)
}

// DiskManager covers backing-disk cleanup.
type DiskManager interface {
	DeleteVHD(ctx context.Context, path string) error
}

// NetworkReader exposes the host neighbor table.
type NetworkReader interface {
	NeighborIPv4(ctx context.Context, mac string) ([]string, error)
}

// Service is the full provider surface the orchestration flows consume.
type Service interface {
	VMManager
	DiskManager
	NetworkReader
}

var _ Service = (*Client)(nil)
