package addons

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	k8sfakes "github.com/talhyve/talhyve/internal/k8s/fakes"
)

type recordingInstaller struct {
	releases []string
	failOn   string
}

func (r *recordingInstaller) InstallOrUpgrade(_ context.Context, _, releaseName, _, _, _ string, _ map[string]any) error {
	if releaseName == r.failOn {
		return fmt.Errorf("chart unavailable")
	}
	r.releases = append(r.releases, releaseName)
	return nil
}

func newTestManager(installer *recordingInstaller, kube *k8sfakes.FakeKube) (*Manager, *[]string) {
	warnings := &[]string{}
	return &Manager{
		Helm:   installer,
		Kube:   kube,
		Logger: log.New(os.Stderr, "", 0),
		Warnf: func(format string, args ...any) {
			*warnings = append(*warnings, fmt.Sprintf(format, args...))
		},
	}, warnings
}

func TestInstallAll_OrderAndPoolManifest(t *testing.T) {
	installer := &recordingInstaller{}
	kube := k8sfakes.New()
	m, warnings := newTestManager(installer, kube)

	m.InstallAll(context.Background(), "172.20.3.45")

	assert.Equal(t, []string{"cilium", "metallb", "ingress-nginx", "kube-prometheus-stack"}, installer.releases)
	assert.Empty(t, *warnings)

	require.Len(t, kube.Applied, 1)
	assert.Contains(t, kube.Applied[0], "172.20.15.240-172.20.15.250")
	assert.Contains(t, kube.Applied[0], "kind: IPAddressPool")
	assert.Contains(t, kube.Applied[0], "kind: L2Advertisement")
}

func TestInstallAll_FailureIsWarningAndDoesNotStopTheRest(t *testing.T) {
	installer := &recordingInstaller{failOn: "metallb"}
	kube := k8sfakes.New()
	m, warnings := newTestManager(installer, kube)

	m.InstallAll(context.Background(), "172.20.3.45")

	assert.Equal(t, []string{"cilium", "ingress-nginx", "kube-prometheus-stack"}, installer.releases)
	require.Len(t, *warnings, 1)
	assert.Contains(t, (*warnings)[0], "metallb")
}
