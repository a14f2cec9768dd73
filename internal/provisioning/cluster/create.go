// Package cluster implements the cluster-level flows: initial create and
// scale-add on top of the per-node state machine.
package cluster

import (
	"fmt"

	"github.com/talhyve/talhyve/internal/addons"
	addonshelm "github.com/talhyve/talhyve/internal/addons/helm"
	"github.com/talhyve/talhyve/internal/image"
	"github.com/talhyve/talhyve/internal/k8s"
	"github.com/talhyve/talhyve/internal/platform/talos"
	"github.com/talhyve/talhyve/internal/provisioning"
	"github.com/talhyve/talhyve/internal/provisioning/node"
	"github.com/talhyve/talhyve/internal/util/naming"
	"github.com/talhyve/talhyve/internal/util/retry"
)

// Factory seams so tests can substitute fakes for the network clients.
var (
	newTalosClient = func(talosconfig []byte) (talos.API, error) {
		return talos.NewClient(talosconfig)
	}
	newKubeClient = func(kubeconfig []byte) (k8s.Interface, error) {
		return k8s.NewClientFromBytes(kubeconfig)
	}
	newHelmInstaller = func(kubeconfig []byte) addons.HelmInstaller {
		return addonshelm.NewClient(kubeconfig)
	}
)

// CreateOptions parameterizes cluster creation.
type CreateOptions struct {
	// Force proceeds even when VMs with the cluster prefix already exist.
	Force bool

	// SkipAddons leaves the platform stack uninstalled.
	SkipAddons bool
}

// Create provisions a one-control-plane, one-worker cluster: both nodes
// run the full add state machine, then the control plane is bootstrapped
// once, credentials are retrieved, and the platform stack is installed.
func Create(ctx *provisioning.Context, opts CreateOptions) error {
	existing, err := ctx.VMs.ListVMs(ctx, naming.Prefix(ctx.Config.ClusterName))
	if err != nil {
		return fmt.Errorf("failed to enumerate existing VMs: %w", err)
	}
	if len(existing) > 0 && !opts.Force {
		return fmt.Errorf("cluster %s already has %d VMs; destroy it first or pass --force",
			ctx.Config.ClusterName, len(existing))
	}

	if err := image.Ensure(ctx, ctx.Config.Image.URL, ctx.Config.Image.CachePath, ctx.Logger); err != nil {
		return err
	}

	if err := ctx.Artifacts.EnsureDir(); err != nil {
		return err
	}
	secretsBundle, err := talos.GetOrGenerateSecrets(ctx.Artifacts.SecretsPath(), ctx.Config.TalosVersion)
	if err != nil {
		return err
	}
	ctx.Generator = talos.NewGenerator(
		ctx.Config.ClusterName, ctx.Config.KubernetesVersion, ctx.Config.TalosVersion, secretsBundle)

	// The endpoint is unknown until the first control plane has an
	// address; everything endpoint-dependent happens in this hook.
	controlPlane, err := node.Add(ctx, node.AddOptions{
		Role:                 naming.RoleControlPlane,
		SkipMembershipChecks: true,
		OnFirstAddress: func(ip string) error {
			return fixClusterIdentity(ctx, ip)
		},
	})
	if err != nil {
		return fmt.Errorf("control plane: %w", err)
	}

	worker, err := node.Add(ctx, node.AddOptions{
		Role:                 naming.RoleWorker,
		SkipMembershipChecks: true,
	})
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	ctx.Logger.Printf("[cluster] bootstrapping etcd on %s (%s)...", controlPlane.Name, controlPlane.IP)
	if err := ctx.Talos.Bootstrap(ctx, controlPlane.IP); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	kubeconfig, err := retrieveKubeconfig(ctx, controlPlane.IP)
	if err != nil {
		return err
	}
	if err := ctx.Artifacts.WriteKubeconfig(kubeconfig); err != nil {
		return err
	}
	if ctx.Kube, err = newKubeClient(kubeconfig); err != nil {
		return fmt.Errorf("failed to build Kubernetes client: %w", err)
	}

	waitForClusterHealth(ctx, []string{controlPlane.Name, worker.Name})

	if opts.SkipAddons {
		ctx.Logger.Printf("[cluster] skipping platform addons")
	} else {
		manager := &addons.Manager{
			Helm:   newHelmInstaller(kubeconfig),
			Kube:   ctx.Kube,
			Logger: ctx.Logger,
			Warnf:  ctx.Warnf,
		}
		manager.InstallAll(ctx, controlPlane.IP)
	}

	ctx.Logger.Printf("[cluster] cluster %s is up: %s", ctx.Config.ClusterName, ctx.Generator.Endpoint())
	return nil
}

// fixClusterIdentity pins the cluster endpoint to the first control
// plane's address, persists the talosconfig and role templates, and builds
// the authenticated Talos client. Runs exactly once, during create.
func fixClusterIdentity(ctx *provisioning.Context, ip string) error {
	ctx.Generator.SetEndpoint(fmt.Sprintf("https://%s:6443", ip))

	talosconfig, err := ctx.Generator.ClientConfig()
	if err != nil {
		return fmt.Errorf("failed to generate talosconfig: %w", err)
	}
	if err := ctx.Artifacts.WriteTalosconfig(talosconfig); err != nil {
		return err
	}
	if ctx.Talos, err = newTalosClient(talosconfig); err != nil {
		return err
	}

	// Role templates without hostnames; the endpoint embedded here is
	// what later scale operations read back.
	cpTemplate, err := ctx.Generator.GenerateControlPlaneConfig([]string{ip}, "")
	if err != nil {
		return fmt.Errorf("failed to generate control plane template: %w", err)
	}
	if err := ctx.Artifacts.WriteMachineConfig("controlplane", cpTemplate); err != nil {
		return err
	}
	workerTemplate, err := ctx.Generator.GenerateWorkerConfig("")
	if err != nil {
		return fmt.Errorf("failed to generate worker template: %w", err)
	}
	return ctx.Artifacts.WriteMachineConfig("worker", workerTemplate)
}

// retrieveKubeconfig polls until the Kubernetes API hands out credentials.
// Without a kubeconfig the cluster is unusable, so expiry here is fatal.
func retrieveKubeconfig(ctx *provisioning.Context, controlPlaneIP string) ([]byte, error) {
	ctx.Logger.Printf("[cluster] retrieving kubeconfig...")
	t := ctx.Config.Timeouts
	return retry.UntilValue(ctx, "retrieve kubeconfig", t.HealthPoll, t.HealthWait, func() ([]byte, error) {
		return ctx.Talos.Kubeconfig(ctx, controlPlaneIP)
	})
}

// waitForClusterHealth waits for all named nodes to be Ready. Convergence
// can lag credential retrieval, so expiry is a warning, not a failure.
func waitForClusterHealth(ctx *provisioning.Context, nodeNames []string) {
	t := ctx.Config.Timeouts
	for _, name := range nodeNames {
		ctx.Logger.Printf("[cluster] waiting for %s to be Ready...", name)
		if err := ctx.Kube.WaitForNodeReady(ctx, name, t.HealthPoll, t.HealthWait); err != nil {
			ctx.Warnf("node %s is not Ready yet; the cluster may still be converging", name)
		}
	}
}
