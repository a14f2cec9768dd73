package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/resolve"
)

func provisionWorker(t *testing.T, env *testEnv, name, ip string) {
	t.Helper()
	require.NoError(t, env.host.CreateVM(context.Background(), hyperv.VMSpec{
		Name:    name,
		VHDPath: env.ctx.Config.VHDPath(name),
	}))
	require.NoError(t, env.host.StartVM(context.Background(), name))
	env.host.SetNeighbors(env.host.MACOf(name), ip)
}

func TestResolveTarget_ClassifiesWorkerFromKubernetes(t *testing.T) {
	env := newTestEnv(t)
	provisionWorker(t, env, "lab-worker-01", "172.20.3.45")
	env.kube.AddNode("lab-worker-01", "172.20.3.45", false)

	target, err := ResolveTarget(env.ctx, "lab-worker-01")
	require.NoError(t, err)
	assert.Equal(t, "lab-worker-01", target.VM.Name)
	assert.Equal(t, "lab-worker-01", target.KubeNodeName)
	assert.False(t, target.ControlPlane)
}

func TestResolveTarget_ByKubernetesNodeName(t *testing.T) {
	env := newTestEnv(t)
	provisionWorker(t, env, "lab-worker-01", "172.20.3.45")
	// Node registered under a generated hostname, not the VM name.
	env.kube.AddNode("talos-xyz-321", "172.20.3.45", false)

	target, err := ResolveTarget(env.ctx, "talos-xyz-321")
	require.NoError(t, err)
	assert.Equal(t, "lab-worker-01", target.VM.Name)
	assert.Equal(t, "talos-xyz-321", target.KubeNodeName)
}

func TestResolveTarget_UnknownNameFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := ResolveTarget(env.ctx, "lab-worker-09")
	assert.ErrorIs(t, err, resolve.ErrNodeNotFound)
}

func TestRemove_WorkerDrainsAndDeletesEverything(t *testing.T) {
	env := newTestEnv(t)
	provisionWorker(t, env, "lab-worker-01", "172.20.3.45")
	env.kube.AddNode("lab-worker-01", "172.20.3.45", false)

	target, err := ResolveTarget(env.ctx, "lab-worker-01")
	require.NoError(t, err)
	require.NoError(t, Remove(env.ctx, target, RemoveOptions{}))

	assert.Equal(t, []string{"lab-worker-01"}, env.kube.CordonCalls)
	assert.Equal(t, []string{"lab-worker-01"}, env.kube.DrainCalls)
	assert.Equal(t, []string{"lab-worker-01"}, env.kube.DeleteCalls)
	assert.Equal(t, []string{"lab-worker-01"}, env.host.StopCalls)
	assert.Equal(t, 0, env.host.VMCount())
	assert.False(t, env.host.HasDisk(env.ctx.Config.VHDPath("lab-worker-01")))
}

func TestRemove_DrainFailureIsFatalWithoutForce(t *testing.T) {
	env := newTestEnv(t)
	provisionWorker(t, env, "lab-worker-01", "172.20.3.45")
	env.kube.AddNode("lab-worker-01", "172.20.3.45", false)
	env.kube.Fail = map[string]error{"drain": assert.AnError}

	target, err := ResolveTarget(env.ctx, "lab-worker-01")
	require.NoError(t, err)

	err = Remove(env.ctx, target, RemoveOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
	// Nothing was torn down.
	assert.Equal(t, 1, env.host.VMCount())
}

func TestRemove_DrainFailureDowngradedByForce(t *testing.T) {
	env := newTestEnv(t)
	provisionWorker(t, env, "lab-worker-01", "172.20.3.45")
	env.kube.AddNode("lab-worker-01", "172.20.3.45", false)
	env.kube.Fail = map[string]error{"drain": assert.AnError}

	target, err := ResolveTarget(env.ctx, "lab-worker-01")
	require.NoError(t, err)
	require.NoError(t, Remove(env.ctx, target, RemoveOptions{Force: true}))

	assert.Equal(t, 0, env.host.VMCount())
	assert.False(t, env.ctx.Warnings.Empty())
}

func TestRemove_ControlPlaneSkipsDrainAndWarnsAboutQuorum(t *testing.T) {
	env := newTestEnv(t)
	provisionWorker(t, env, "lab-control-plane-01", "172.20.3.40")
	env.kube.AddNode("lab-control-plane-01", "172.20.3.40", true)

	target, err := ResolveTarget(env.ctx, "lab-control-plane-01")
	require.NoError(t, err)
	require.True(t, target.ControlPlane)
	require.NoError(t, Remove(env.ctx, target, RemoveOptions{}))

	assert.Empty(t, env.kube.DrainCalls)
	warnings := env.ctx.Warnings.List()
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "quorum")
}

func TestRemove_StoppedVMIsNotStoppedAgain(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.host.CreateVM(context.Background(), hyperv.VMSpec{
		Name:    "lab-worker-01",
		VHDPath: env.ctx.Config.VHDPath("lab-worker-01"),
	}))

	target, err := ResolveTarget(env.ctx, "lab-worker-01")
	require.NoError(t, err)
	require.NoError(t, Remove(env.ctx, target, RemoveOptions{}))

	assert.Empty(t, env.host.StopCalls)
	assert.Equal(t, 0, env.host.VMCount())
}
