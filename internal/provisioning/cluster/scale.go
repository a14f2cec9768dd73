package cluster

import (
	"fmt"

	"github.com/talhyve/talhyve/internal/platform/talos"
	"github.com/talhyve/talhyve/internal/provisioning"
	"github.com/talhyve/talhyve/internal/provisioning/node"
)

// PrepareFromArtifacts rebuilds the generator and API clients from the
// credential artifacts a previous create persisted. Scale and remove
// operations call this instead of regenerating cluster identity; the
// cluster endpoint comes from the persisted machine config, parsed
// structurally rather than scraped.
func PrepareFromArtifacts(ctx *provisioning.Context) error {
	if !ctx.Artifacts.HasTalosconfig() {
		return fmt.Errorf("no cluster artifacts in %s; run create first", ctx.Artifacts.Dir)
	}

	endpoint, err := ctx.Artifacts.Endpoint()
	if err != nil {
		return err
	}

	secretsBundle, err := talos.LoadSecrets(ctx.Artifacts.SecretsPath())
	if err != nil {
		return err
	}
	generator := talos.NewGenerator(
		ctx.Config.ClusterName, ctx.Config.KubernetesVersion, ctx.Config.TalosVersion, secretsBundle)
	generator.SetEndpoint(endpoint)
	ctx.Generator = generator

	talosconfig, err := ctx.Artifacts.ReadTalosconfig()
	if err != nil {
		return err
	}
	if ctx.Talos, err = newTalosClient(talosconfig); err != nil {
		return err
	}

	kubeconfig, err := ctx.Artifacts.ReadKubeconfig()
	if err != nil {
		ctx.Warnf("no kubeconfig available, join verification will be skipped: %v", err)
		return nil
	}
	if ctx.Kube, err = newKubeClient(kubeconfig); err != nil {
		ctx.Warnf("failed to build Kubernetes client, join verification will be skipped: %v", err)
	}
	return nil
}

// ScaleAdd adds one node of the given role to an existing cluster.
func ScaleAdd(ctx *provisioning.Context, role string) (*node.AddResult, error) {
	if err := PrepareFromArtifacts(ctx); err != nil {
		return nil, err
	}
	return node.Add(ctx, node.AddOptions{Role: role})
}
