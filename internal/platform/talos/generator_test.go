package talos

import (
	"path/filepath"
	"testing"

	clientconfig "github.com/siderolabs/talos/pkg/machinery/client/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testTalosVersion = "v1.8.0"

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	sb, err := NewSecrets(testTalosVersion)
	require.NoError(t, err)

	g := NewGenerator("lab", "v1.31.0", testTalosVersion, sb)
	g.SetEndpoint("https://172.20.3.45:6443")
	return g
}

func TestGenerateControlPlaneConfig_SetsHostname(t *testing.T) {
	g := newTestGenerator(t)

	data, err := g.GenerateControlPlaneConfig([]string{"172.20.3.45"}, "lab-control-plane-01")
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	machine := cfg["machine"].(map[string]any)
	network := machine["network"].(map[string]any)
	assert.Equal(t, "lab-control-plane-01", network["hostname"])
	assert.Equal(t, "controlplane", machine["type"])
}

func TestGenerateWorkerConfig_SetsHostname(t *testing.T) {
	g := newTestGenerator(t)

	data, err := g.GenerateWorkerConfig("lab-worker-02")
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	machine := cfg["machine"].(map[string]any)
	network := machine["network"].(map[string]any)
	assert.Equal(t, "lab-worker-02", network["hostname"])
	assert.Equal(t, "worker", machine["type"])
}

func TestGenerate_RequiresEndpoint(t *testing.T) {
	sb, err := NewSecrets(testTalosVersion)
	require.NoError(t, err)
	g := NewGenerator("lab", "1.31.0", testTalosVersion, sb)

	_, err = g.GenerateWorkerConfig("lab-worker-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestClientConfig_Parses(t *testing.T) {
	g := newTestGenerator(t)

	data, err := g.ClientConfig()
	require.NoError(t, err)

	cfg, err := clientconfig.FromString(string(data))
	require.NoError(t, err)
	assert.Contains(t, cfg.Contexts, "lab")
}

func TestGetOrGenerateSecrets_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.yaml")

	first, err := GetOrGenerateSecrets(path, testTalosVersion)
	require.NoError(t, err)

	// Second call loads the same bundle instead of generating a new one.
	second, err := GetOrGenerateSecrets(path, testTalosVersion)
	require.NoError(t, err)
	assert.Equal(t, first.Cluster.ID, second.Cluster.ID)
}

func TestStripComments(t *testing.T) {
	in := []byte("a: 1\n# comment\n\nb: 2\n")
	assert.Equal(t, "a: 1\nb: 2", string(stripComments(in)))
}

func TestDeepMerge_NestedMaps(t *testing.T) {
	dst := map[string]any{
		"machine": map[string]any{"install": map[string]any{"disk": "/dev/sda"}},
	}
	deepMerge(dst, hostnamePatch("lab-worker-01"))

	machine := dst["machine"].(map[string]any)
	assert.Equal(t, "/dev/sda", machine["install"].(map[string]any)["disk"])
	assert.Equal(t, "lab-worker-01", machine["network"].(map[string]any)["hostname"])
}
