package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talhyve/talhyve/internal/config"
	"github.com/talhyve/talhyve/internal/provisioning"
	"github.com/talhyve/talhyve/internal/provisioning/cluster"
)

func TestCreate_DelegatesToClusterFlow(t *testing.T) {
	stubEnvironment(t)

	var gotOpts cluster.CreateOptions
	origCreate := createCluster
	t.Cleanup(func() { createCluster = origCreate })
	createCluster = func(pctx *provisioning.Context, opts cluster.CreateOptions) error {
		gotOpts = opts
		assert.Equal(t, "lab", pctx.Config.ClusterName)
		return nil
	}

	require.NoError(t, Create(context.Background(), "", true, true))
	assert.True(t, gotOpts.Force)
	assert.True(t, gotOpts.SkipAddons)
}

func TestCreate_ConfigLoadFailure(t *testing.T) {
	stubEnvironment(t)
	loadConfig = func(_ string) (*config.Config, error) { return nil, assert.AnError }

	err := Create(context.Background(), "broken.yaml", false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestCreate_WrapsFlowError(t *testing.T) {
	stubEnvironment(t)

	origCreate := createCluster
	t.Cleanup(func() { createCluster = origCreate })
	createCluster = func(_ *provisioning.Context, _ cluster.CreateOptions) error {
		return assert.AnError
	}

	err := Create(context.Background(), "", false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create failed")
}

func TestCreate_MissingPrerequisitesAbortsEarly(t *testing.T) {
	stubEnvironment(t)
	checkPrerequisites = func() error { return assert.AnError }

	called := false
	origCreate := createCluster
	t.Cleanup(func() { createCluster = origCreate })
	createCluster = func(_ *provisioning.Context, _ cluster.CreateOptions) error {
		called = true
		return nil
	}

	require.Error(t, Create(context.Background(), "", false, false))
	assert.False(t, called, "flow must not run when prerequisites are missing")
}
