package config

import (
	"fmt"
	"path/filepath"
	"regexp"
)

// Default sizing for both roles.
const (
	DefaultCPUs        int64 = 2
	DefaultMemoryBytes int64 = 4 * 1024 * 1024 * 1024
	DefaultDiskBytes   int64 = 20 * 1024 * 1024 * 1024
)

// Defaults for everything else.
const (
	DefaultClusterName       = "talhyve"
	DefaultSwitchName        = "Default Switch"
	DefaultTalosVersion      = "v1.12.4"
	DefaultKubernetesVersion = "1.34.1"
)

// DefaultImageURL is the stock Talos metal ISO for the configured version.
func DefaultImageURL(talosVersion string) string {
	return fmt.Sprintf("https://factory.talos.dev/image/376567988ad370138ad8b2698212367b8edcb69b5fd68c80be1f2ec7d603b4ba/%s/metal-amd64.iso", talosVersion)
}

var clusterNameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// NodeSizing holds the fixed VM sizing for one role.
type NodeSizing struct {
	CPUs        int64 `yaml:"cpus"`
	MemoryBytes int64 `yaml:"memoryBytes"`
	DiskBytes   int64 `yaml:"diskBytes"`
}

// ImageConfig describes the boot ISO source and local cache.
type ImageConfig struct {
	URL       string `yaml:"url"`
	CachePath string `yaml:"cachePath"`
}

// Config is the single configuration object for all operations.
type Config struct {
	ClusterName string `yaml:"clusterName"`

	// OutputDir holds the credential artifacts (talosconfig, kubeconfig,
	// machine configs). Regenerated by create, consumed read-only by
	// scale operations, deleted by destroy.
	OutputDir string `yaml:"outputDir"`

	// VHDDir is where node VHDX files are created. The per-node path is
	// deterministic so destroy can remove a disk even when its VM object
	// is already gone.
	VHDDir string `yaml:"vhdDir"`

	// SwitchName is the Hyper-V virtual switch nodes attach to.
	SwitchName string `yaml:"switchName"`

	TalosVersion      string `yaml:"talosVersion"`
	KubernetesVersion string `yaml:"kubernetesVersion"`

	Image ImageConfig `yaml:"image"`

	ControlPlane NodeSizing `yaml:"controlPlane"`
	Worker       NodeSizing `yaml:"worker"`

	// StrictJoin promotes the node-join timeout from a warning to a fatal
	// error. Off by default: join can legitimately lag past the timeout.
	StrictJoin bool `yaml:"strictJoin"`

	Timeouts Timeouts `yaml:"timeouts"`
}

// Default returns a fully-populated configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its documented default.
func (c *Config) ApplyDefaults() {
	if c.ClusterName == "" {
		c.ClusterName = DefaultClusterName
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join("clusters", c.ClusterName)
	}
	if c.VHDDir == "" {
		c.VHDDir = filepath.Join(c.OutputDir, "disks")
	}
	if c.SwitchName == "" {
		c.SwitchName = DefaultSwitchName
	}
	if c.TalosVersion == "" {
		c.TalosVersion = DefaultTalosVersion
	}
	if c.KubernetesVersion == "" {
		c.KubernetesVersion = DefaultKubernetesVersion
	}
	if c.Image.URL == "" {
		c.Image.URL = DefaultImageURL(c.TalosVersion)
	}
	if c.Image.CachePath == "" {
		c.Image.CachePath = filepath.Join("clusters", fmt.Sprintf("talos-%s-metal-amd64.iso", c.TalosVersion))
	}
	applySizingDefaults(&c.ControlPlane)
	applySizingDefaults(&c.Worker)
	c.Timeouts.ApplyDefaults()
}

func applySizingDefaults(s *NodeSizing) {
	if s.CPUs == 0 {
		s.CPUs = DefaultCPUs
	}
	if s.MemoryBytes == 0 {
		s.MemoryBytes = DefaultMemoryBytes
	}
	if s.DiskBytes == 0 {
		s.DiskBytes = DefaultDiskBytes
	}
}

// Validate checks the configuration for values no operation can work with.
func (c *Config) Validate() error {
	if !clusterNameRe.MatchString(c.ClusterName) {
		return fmt.Errorf("invalid cluster name %q: must be lowercase alphanumeric with hyphens", c.ClusterName)
	}
	for role, s := range map[string]NodeSizing{"controlPlane": c.ControlPlane, "worker": c.Worker} {
		if s.CPUs <= 0 || s.MemoryBytes <= 0 || s.DiskBytes <= 0 {
			return fmt.Errorf("%s sizing: cpus, memoryBytes and diskBytes must be positive", role)
		}
	}
	if c.SwitchName == "" {
		return fmt.Errorf("switchName must not be empty")
	}
	return nil
}

// VHDPath returns the deterministic disk path for a node VM. Destroy uses
// this as a fallback when the VM object no longer reports its disks.
func (c *Config) VHDPath(nodeName string) string {
	return filepath.Join(c.VHDDir, nodeName+".vhdx")
}
