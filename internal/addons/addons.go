// Package addons layers the platform stack (CNI, load balancer, ingress,
// monitoring) onto a freshly bootstrapped cluster via Helm.
package addons

import (
	"context"
	"fmt"
	"log"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/talhyve/talhyve/internal/k8s"
)

// Chart repositories and versions pinned for the stack.
const (
	ciliumRepo  = "https://helm.cilium.io/"
	metallbRepo = "https://metallb.github.io/metallb"
	ingressRepo = "https://kubernetes.github.io/ingress-nginx"
	promRepo    = "https://prometheus-community.github.io/helm-charts"
)

// HelmInstaller installs or upgrades one chart release. Satisfied by
// helm.Client.
type HelmInstaller interface {
	InstallOrUpgrade(ctx context.Context, namespace, releaseName, repoURL, chartName, version string, values map[string]any) error
}

// Manager installs the platform stack in dependency order.
type Manager struct {
	Helm   HelmInstaller
	Kube   k8s.Interface
	Logger *log.Logger

	// Warnf records a non-fatal problem; addon failures never abort the
	// cluster operation that triggered them.
	Warnf func(format string, args ...any)
}

// InstallAll installs the stack sequentially. nodeIP seeds the
// load-balancer pool derivation.
func (m *Manager) InstallAll(ctx context.Context, nodeIP string) {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"cilium", m.installCilium},
		{"metallb", func(ctx context.Context) error { return m.installMetalLB(ctx, nodeIP) }},
		{"ingress-nginx", m.installIngress},
		{"kube-prometheus-stack", m.installMonitoring},
	}

	for _, step := range steps {
		m.Logger.Printf("[addons] installing %s...", step.name)
		if err := step.run(ctx); err != nil {
			m.Warnf("addon %s failed: %v", step.name, err)
			continue
		}
		m.Logger.Printf("[addons] %s installed", step.name)
	}
}

// installCilium deploys the CNI. Talos runs without kube-proxy, so Cilium
// takes over service handling against the KubePrism endpoint.
func (m *Manager) installCilium(ctx context.Context) error {
	values := map[string]any{
		"ipam": map[string]any{
			"mode": "kubernetes",
		},
		"k8sServiceHost":       "localhost",
		"k8sServicePort":       7445,
		"kubeProxyReplacement": true,
		"securityContext": map[string]any{
			"capabilities": map[string]any{
				"ciliumAgent":      []string{"CHOWN", "KILL", "NET_ADMIN", "NET_RAW", "IPC_LOCK", "SYS_ADMIN", "SYS_RESOURCE", "DAC_OVERRIDE", "FOWNER", "SETGID", "SETUID"},
				"cleanCiliumState": []string{"NET_ADMIN", "SYS_ADMIN", "SYS_RESOURCE"},
			},
		},
		"cgroup": map[string]any{
			"autoMount": map[string]any{"enabled": false},
			"hostRoot":  "/sys/fs/cgroup",
		},
	}
	return m.Helm.InstallOrUpgrade(ctx, "kube-system", "cilium", ciliumRepo, "cilium", "", values)
}

// installMetalLB deploys the load balancer and applies the derived address
// pool.
func (m *Manager) installMetalLB(ctx context.Context, nodeIP string) error {
	if err := m.Helm.InstallOrUpgrade(ctx, "metallb-system", "metallb", metallbRepo, "metallb", "", nil); err != nil {
		return err
	}

	manifest, err := metalLBPoolManifest(nodeIP)
	if err != nil {
		return err
	}
	if m.Kube == nil {
		return fmt.Errorf("no Kubernetes client available to apply the address pool")
	}
	return m.Kube.Apply(ctx, manifest)
}

func (m *Manager) installIngress(ctx context.Context) error {
	values := map[string]any{
		"controller": map[string]any{
			"service": map[string]any{
				"type": "LoadBalancer",
			},
		},
	}
	return m.Helm.InstallOrUpgrade(ctx, "ingress-nginx", "ingress-nginx", ingressRepo, "ingress-nginx", "", values)
}

func (m *Manager) installMonitoring(ctx context.Context) error {
	return m.Helm.InstallOrUpgrade(ctx, "monitoring", "kube-prometheus-stack", promRepo, "kube-prometheus-stack", "", nil)
}

// metalLBPoolManifest renders the IPAddressPool and L2Advertisement for
// the pool derived from the node's subnet.
func metalLBPoolManifest(nodeIP string) (string, error) {
	start, end, err := PoolRange(nodeIP)
	if err != nil {
		return "", fmt.Errorf("failed to derive address pool: %w", err)
	}

	pool := map[string]any{
		"apiVersion": "metallb.io/v1beta1",
		"kind":       "IPAddressPool",
		"metadata": map[string]any{
			"name":      "default-pool",
			"namespace": "metallb-system",
		},
		"spec": map[string]any{
			"addresses": []string{fmt.Sprintf("%s-%s", start, end)},
		},
	}
	l2 := map[string]any{
		"apiVersion": "metallb.io/v1beta1",
		"kind":       "L2Advertisement",
		"metadata": map[string]any{
			"name":      "default-l2",
			"namespace": "metallb-system",
		},
		"spec": map[string]any{
			"ipAddressPools": []string{"default-pool"},
		},
	}

	var docs []string
	for _, obj := range []map[string]any{pool, l2} {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return "", fmt.Errorf("failed to render address pool manifest: %w", err)
		}
		docs = append(docs, string(data))
	}
	return strings.Join(docs, "---\n"), nil
}
