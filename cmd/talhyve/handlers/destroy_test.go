package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/provisioning"
)

func stubDestroySeam(t *testing.T) *bool {
	t.Helper()
	origDestroy := destroyCluster
	t.Cleanup(func() { destroyCluster = origDestroy })

	called := false
	destroyCluster = func(_ *provisioning.Context) error {
		called = true
		return nil
	}
	return &called
}

func TestDestroy_ForceSkipsPrompt(t *testing.T) {
	stubEnvironment(t)
	called := stubDestroySeam(t)

	origTTY := stdinIsTerminal
	t.Cleanup(func() { stdinIsTerminal = origTTY })
	stdinIsTerminal = func() bool { return false }

	require.NoError(t, Destroy(context.Background(), "", true))
	assert.True(t, *called)
}

func TestDestroy_PromptListsVMs(t *testing.T) {
	host := stubEnvironment(t)
	called := stubDestroySeam(t)
	rec := stubPrompt(t, "yes")

	require.NoError(t, host.CreateVM(context.Background(), hyperv.VMSpec{Name: "lab-control-plane-01"}))
	require.NoError(t, host.CreateVM(context.Background(), hyperv.VMSpec{Name: "lab-worker-01"}))

	require.NoError(t, Destroy(context.Background(), "", false))
	assert.True(t, *called)
	assert.Contains(t, rec.title, "lab")
	assert.Contains(t, rec.description, "lab-control-plane-01")
	assert.Contains(t, rec.description, "lab-worker-01")
}

func TestDestroy_AbortedPromptIsCleanExit(t *testing.T) {
	stubEnvironment(t)
	called := stubDestroySeam(t)
	stubPrompt(t, "nah")

	require.NoError(t, Destroy(context.Background(), "", false))
	assert.False(t, *called, "a declined prompt must not destroy anything")
}

func TestDestroy_WrapsFlowError(t *testing.T) {
	stubEnvironment(t)

	origDestroy := destroyCluster
	t.Cleanup(func() { destroyCluster = origDestroy })
	destroyCluster = func(_ *provisioning.Context) error { return assert.AnError }

	err := Destroy(context.Background(), "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destroy failed")
}
