package destroy

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talhyve/talhyve/internal/config"
	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/platform/hyperv/fakes"
	"github.com/talhyve/talhyve/internal/provisioning"
)

func newTestContext(t *testing.T) (*provisioning.Context, *fakes.FakeHyperV) {
	t.Helper()
	cfg := config.Default()
	cfg.ClusterName = "lab"
	cfg.OutputDir = filepath.Join(t.TempDir(), "lab")
	cfg.VHDDir = filepath.Join(cfg.OutputDir, "disks")

	host := fakes.New()
	return provisioning.NewContext(context.Background(), cfg, host, log.New(os.Stderr, "", 0)), host
}

func addVM(t *testing.T, ctx *provisioning.Context, host *fakes.FakeHyperV, name string, running bool) {
	t.Helper()
	require.NoError(t, host.CreateVM(context.Background(), hyperv.VMSpec{
		Name:    name,
		VHDPath: ctx.Config.VHDPath(name),
	}))
	if running {
		require.NoError(t, host.StartVM(context.Background(), name))
	}
}

func TestDestroy_RemovesEverything(t *testing.T) {
	ctx, host := newTestContext(t)
	addVM(t, ctx, host, "lab-control-plane-01", true)
	addVM(t, ctx, host, "lab-worker-01", true)
	addVM(t, ctx, host, "lab-worker-02", false)
	// An unrelated cluster's VM is untouched.
	require.NoError(t, host.CreateVM(context.Background(), hyperv.VMSpec{Name: "other-worker-01"}))

	require.NoError(t, ctx.Artifacts.WriteTalosconfig([]byte("tc")))

	require.NoError(t, Destroy(ctx))

	assert.Equal(t, 1, host.VMCount())
	assert.False(t, host.HasDisk(ctx.Config.VHDPath("lab-worker-01")))
	assert.False(t, ctx.Artifacts.Exists())
	// Running VMs were stopped before removal, stopped ones untouched.
	assert.ElementsMatch(t, []string{"lab-control-plane-01", "lab-worker-01"}, host.StopCalls)
}

func TestDestroy_EmptyClusterIsCleanNoOp(t *testing.T) {
	ctx, _ := newTestContext(t)
	assert.NoError(t, Destroy(ctx))
}

func TestDestroy_CollectsPerVMFailures(t *testing.T) {
	ctx, host := newTestContext(t)
	addVM(t, ctx, host, "lab-worker-01", false)
	addVM(t, ctx, host, "lab-worker-02", false)
	host.Fail = map[string]error{"remove": assert.AnError}

	err := Destroy(ctx)
	require.Error(t, err)
	// Both failures are reported, not just the first.
	assert.Contains(t, err.Error(), "lab-worker-01")
	assert.Contains(t, err.Error(), "lab-worker-02")
}

func TestDestroy_DeletesFallbackDiskPath(t *testing.T) {
	ctx, host := newTestContext(t)
	// VM created with a disk path elsewhere; fallback path must still be
	// attempted.
	require.NoError(t, host.CreateVM(context.Background(), hyperv.VMSpec{
		Name:    "lab-worker-01",
		VHDPath: `C:\elsewhere\lab-worker-01.vhdx`,
	}))

	require.NoError(t, Destroy(ctx))
	assert.False(t, host.HasDisk(`C:\elsewhere\lab-worker-01.vhdx`))
}
