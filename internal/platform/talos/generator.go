// Package talos generates Talos machine configurations and talks to the
// Talos API on provisioned nodes.
package talos

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/siderolabs/talos/pkg/machinery/config"
	"github.com/siderolabs/talos/pkg/machinery/config/generate"
	"github.com/siderolabs/talos/pkg/machinery/config/generate/secrets"
	"github.com/siderolabs/talos/pkg/machinery/config/machine"
	"gopkg.in/yaml.v3"
)

// SecretsBundle aliases the machinery secrets bundle.
type SecretsBundle = secrets.Bundle

// Generator produces machine configs and the talosconfig for one cluster.
// The endpoint is not known at construction time: it is derived from the
// first control plane's DHCP lease and set before the first config is
// generated.
type Generator struct {
	clusterName       string
	kubernetesVersion string
	talosVersion      string
	endpoint          string
	secretsBundle     *secrets.Bundle
}

// NewGenerator creates a Generator. Machinery prepends the 'v' to the
// Kubernetes version itself, so any caller-supplied prefix is stripped.
func NewGenerator(clusterName, kubernetesVersion, talosVersion string, sb *secrets.Bundle) *Generator {
	return &Generator{
		clusterName:       clusterName,
		kubernetesVersion: strings.TrimPrefix(kubernetesVersion, "v"),
		talosVersion:      talosVersion,
		secretsBundle:     sb,
	}
}

// SetEndpoint sets the cluster endpoint, e.g. "https://172.20.3.45:6443".
func (g *Generator) SetEndpoint(endpoint string) {
	g.endpoint = endpoint
}

// Endpoint returns the currently configured cluster endpoint.
func (g *Generator) Endpoint() string {
	return g.endpoint
}

// LoadSecrets loads a secrets bundle from a file.
func LoadSecrets(path string) (*secrets.Bundle, error) {
	sb, err := secrets.LoadBundle(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets bundle: %w", err)
	}
	sb.Clock = secrets.NewFixedClock(time.Now())
	return sb, nil
}

// SaveSecrets writes a secrets bundle as YAML, the format LoadBundle expects.
func SaveSecrets(path string, sb *secrets.Bundle) error {
	data, err := yaml.Marshal(sb)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// NewSecrets generates a fresh secrets bundle for a Talos version.
func NewSecrets(talosVersion string) (*secrets.Bundle, error) {
	vc, err := config.ParseContractFromVersion(talosVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version contract: %w", err)
	}
	sb, err := secrets.NewBundle(secrets.NewFixedClock(time.Now()), vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets bundle: %w", err)
	}
	return sb, nil
}

// GetOrGenerateSecrets loads secrets from path, generating and saving them
// first if the file does not exist. Reusing the bundle keeps later scale
// operations able to produce configs the existing cluster trusts.
func GetOrGenerateSecrets(path, talosVersion string) (*SecretsBundle, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadSecrets(path)
	}
	sb, err := NewSecrets(talosVersion)
	if err != nil {
		return nil, err
	}
	if err := SaveSecrets(path, sb); err != nil {
		return nil, err
	}
	return sb, nil
}

// GenerateControlPlaneConfig generates a control plane machine config. A
// non-empty hostname is patched into machine.network so the node joins
// Kubernetes under its VM name; an empty hostname yields the role template.
func (g *Generator) GenerateControlPlaneConfig(sans []string, hostname string) ([]byte, error) {
	base, err := g.generateBaseConfig(machine.TypeControlPlane, generate.WithAdditionalSubjectAltNames(sans))
	if err != nil || hostname == "" {
		return base, err
	}
	return applyConfigPatch(base, hostnamePatch(hostname))
}

// GenerateWorkerConfig generates a worker machine config, with the same
// hostname handling as GenerateControlPlaneConfig.
func (g *Generator) GenerateWorkerConfig(hostname string) ([]byte, error) {
	base, err := g.generateBaseConfig(machine.TypeWorker)
	if err != nil || hostname == "" {
		return base, err
	}
	return applyConfigPatch(base, hostnamePatch(hostname))
}

func (g *Generator) generateBaseConfig(machineType machine.Type, extraOpts ...generate.Option) ([]byte, error) {
	if g.endpoint == "" {
		return nil, fmt.Errorf("cluster endpoint not set")
	}

	vc, err := config.ParseContractFromVersion(g.talosVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version contract: %w", err)
	}

	opts := []generate.Option{
		generate.WithVersionContract(vc),
		generate.WithSecretsBundle(g.secretsBundle),
		// Generation-2 Hyper-V guests see the boot VHDX as /dev/sda.
		generate.WithInstallDisk("/dev/sda"),
	}
	opts = append(opts, extraOpts...)

	input, err := generate.NewInput(g.clusterName, g.endpoint, g.kubernetesVersion, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create input: %w", err)
	}

	cfg, err := input.Config(machineType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s config: %w", machineType, err)
	}

	bytes, err := cfg.Bytes()
	if err != nil {
		return nil, err
	}
	return stripComments(bytes), nil
}

// ClientConfig returns the talosconfig for the cluster.
func (g *Generator) ClientConfig() ([]byte, error) {
	vc, err := config.ParseContractFromVersion(g.talosVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version contract: %w", err)
	}

	input, err := generate.NewInput(g.clusterName, g.endpoint, g.kubernetesVersion,
		generate.WithVersionContract(vc),
		generate.WithSecretsBundle(g.secretsBundle),
	)
	if err != nil {
		return nil, err
	}

	clientCfg, err := input.Talosconfig()
	if err != nil {
		return nil, err
	}
	return clientCfg.Bytes()
}

// hostnamePatch sets machine.network.hostname so the node joins Kubernetes
// under its VM name.
func hostnamePatch(hostname string) map[string]any {
	return map[string]any{
		"machine": map[string]any{
			"network": map[string]any{
				"hostname": hostname,
			},
		},
	}
}

// applyConfigPatch deep-merges a patch map into the generated config.
func applyConfigPatch(baseConfig []byte, patch map[string]any) ([]byte, error) {
	var configMap map[string]any
	if err := yaml.Unmarshal(baseConfig, &configMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal base config: %w", err)
	}
	deepMerge(configMap, patch)
	return yaml.Marshal(configMap)
}

// deepMerge recursively merges src into dst. Maps merge; everything else
// overwrites.
func deepMerge(dst, src map[string]any) {
	for key, srcVal := range src {
		if dstVal, exists := dst[key]; exists {
			srcMap, srcIsMap := srcVal.(map[string]any)
			dstMap, dstIsMap := dstVal.(map[string]any)
			if srcIsMap && dstIsMap {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}

func stripComments(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	var result []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		result = append(result, line)
	}
	return []byte(strings.Join(result, "\n"))
}
