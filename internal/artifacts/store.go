// Package artifacts persists the credential files a cluster produces at
// creation time: talosconfig, kubeconfig, the secrets bundle, and the
// per-role machine configs. Later scale and destroy operations read them
// back instead of regenerating cluster identity.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store reads and writes cluster artifacts under one directory.
type Store struct {
	Dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// EnsureDir creates the artifact directory. Credentials live here, so the
// directory is owner-only.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create artifact dir %s: %w", s.Dir, err)
	}
	return nil
}

// TalosconfigPath returns the talosconfig location.
func (s *Store) TalosconfigPath() string { return filepath.Join(s.Dir, "talosconfig") }

// KubeconfigPath returns the kubeconfig location.
func (s *Store) KubeconfigPath() string { return filepath.Join(s.Dir, "kubeconfig") }

// SecretsPath returns the Talos secrets bundle location.
func (s *Store) SecretsPath() string { return filepath.Join(s.Dir, "secrets.yaml") }

// MachineConfigPath returns the persisted machine config for a role.
func (s *Store) MachineConfigPath(role string) string {
	return filepath.Join(s.Dir, role+".yaml")
}

// Exists reports whether the artifact directory is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Dir)
	return err == nil
}

// HasTalosconfig reports whether a talosconfig has been persisted.
func (s *Store) HasTalosconfig() bool {
	_, err := os.Stat(s.TalosconfigPath())
	return err == nil
}

// WriteTalosconfig persists the talosconfig.
func (s *Store) WriteTalosconfig(data []byte) error {
	return s.write(s.TalosconfigPath(), data)
}

// ReadTalosconfig loads the persisted talosconfig.
func (s *Store) ReadTalosconfig() ([]byte, error) {
	return s.read(s.TalosconfigPath())
}

// WriteKubeconfig persists the kubeconfig.
func (s *Store) WriteKubeconfig(data []byte) error {
	return s.write(s.KubeconfigPath(), data)
}

// ReadKubeconfig loads the persisted kubeconfig.
func (s *Store) ReadKubeconfig() ([]byte, error) {
	return s.read(s.KubeconfigPath())
}

// WriteMachineConfig persists a role's machine config.
func (s *Store) WriteMachineConfig(role string, data []byte) error {
	return s.write(s.MachineConfigPath(role), data)
}

// ReadMachineConfig loads a role's persisted machine config.
func (s *Store) ReadMachineConfig(role string) ([]byte, error) {
	return s.read(s.MachineConfigPath(role))
}

// Endpoint extracts the cluster endpoint embedded in the persisted
// control-plane machine config. The endpoint is fixed at generation time,
// so scale operations read it back instead of re-deriving one.
func (s *Store) Endpoint() (string, error) {
	data, err := s.ReadMachineConfig("controlplane")
	if err != nil {
		return "", err
	}

	var cfg struct {
		Cluster struct {
			ControlPlane struct {
				Endpoint string `yaml:"endpoint"`
			} `yaml:"controlPlane"`
		} `yaml:"cluster"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("failed to parse machine config: %w", err)
	}
	if cfg.Cluster.ControlPlane.Endpoint == "" {
		return "", fmt.Errorf("machine config %s has no cluster endpoint", s.MachineConfigPath("controlplane"))
	}
	return cfg.Cluster.ControlPlane.Endpoint, nil
}

// Remove deletes the artifact directory and everything in it.
func (s *Store) Remove() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("failed to remove artifact dir %s: %w", s.Dir, err)
	}
	return nil
}

func (s *Store) write(path string, data []byte) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *Store) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
