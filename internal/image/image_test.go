package image

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}

func TestEnsure_DownloadsWhenAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("iso-bytes"))
	}))
	defer server.Close()

	cachePath := filepath.Join(t.TempDir(), "talos.iso")
	require.NoError(t, Ensure(context.Background(), server.URL, cachePath, testLogger()))

	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, "iso-bytes", string(data))
}

func TestEnsure_SkipsWhenCached(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("iso-bytes"))
	}))
	defer server.Close()

	cachePath := filepath.Join(t.TempDir(), "talos.iso")
	require.NoError(t, os.WriteFile(cachePath, []byte("cached"), 0o644))

	require.NoError(t, Ensure(context.Background(), server.URL, cachePath, testLogger()))
	assert.Zero(t, hits)

	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(data))
}

func TestEnsure_NonOKStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	cachePath := filepath.Join(t.TempDir(), "talos.iso")
	err := Ensure(context.Background(), server.URL, cachePath, testLogger())
	require.Error(t, err)
	// No partial file is left behind.
	_, statErr := os.Stat(cachePath)
	assert.True(t, os.IsNotExist(statErr))
}
