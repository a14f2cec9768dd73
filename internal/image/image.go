// Package image manages the local cache of the Talos boot ISO.
package image

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
)

// Ensure makes sure the boot ISO is present at cachePath, downloading it
// from url when absent. The download lands in a temp file first so an
// interrupted transfer never leaves a truncated ISO behind.
func Ensure(ctx context.Context, url, cachePath string, logger *log.Logger) error {
	if _, err := os.Stat(cachePath); err == nil {
		logger.Printf("[image] using cached boot image %s", cachePath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return fmt.Errorf("failed to create image cache dir: %w", err)
	}

	logger.Printf("[image] downloading %s...", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download boot image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("boot image download returned %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(cachePath), ".talos-iso-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write boot image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to finish boot image write: %w", err)
	}

	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		return fmt.Errorf("failed to move boot image into cache: %w", err)
	}
	logger.Printf("[image] cached boot image at %s", cachePath)
	return nil
}
