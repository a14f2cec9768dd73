package helm

import (
	"context"
	"fmt"
	"os"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/repo"
)

const installTimeout = 10 * time.Minute

// Client runs Helm install and upgrade actions.
type Client struct {
	kubeconfig []byte
}

// NewClient creates a Helm client from kubeconfig bytes.
func NewClient(kubeconfig []byte) *Client {
	return &Client{kubeconfig: kubeconfig}
}

// InstallOrUpgrade installs a chart release, or upgrades it when a release
// of that name already exists.
func (c *Client) InstallOrUpgrade(ctx context.Context, namespace, releaseName, repoURL, chartName, version string, values map[string]any) error {
	actionConfig := new(action.Configuration)
	restGetter := NewInMemoryRESTClientGetter(c.kubeconfig, namespace)
	if err := actionConfig.Init(restGetter, namespace, "secret", func(string, ...interface{}) {}); err != nil {
		return fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	if _, err := histClient.Run(releaseName); err != nil {
		return c.install(ctx, actionConfig, namespace, releaseName, repoURL, chartName, version, values)
	}
	return c.upgrade(ctx, actionConfig, namespace, releaseName, repoURL, chartName, version, values)
}

func (c *Client) install(ctx context.Context, actionConfig *action.Configuration, namespace, releaseName, repoURL, chartName, version string, values map[string]any) error {
	installClient := action.NewInstall(actionConfig)
	installClient.ReleaseName = releaseName
	installClient.Namespace = namespace
	installClient.CreateNamespace = true
	installClient.Version = version
	installClient.Wait = true
	installClient.Timeout = installTimeout

	chrt, err := loadChart(repoURL, chartName, version)
	if err != nil {
		return err
	}
	if _, err := installClient.RunWithContext(ctx, chrt, values); err != nil {
		return fmt.Errorf("failed to install %s: %w", releaseName, err)
	}
	return nil
}

func (c *Client) upgrade(ctx context.Context, actionConfig *action.Configuration, namespace, releaseName, repoURL, chartName, version string, values map[string]any) error {
	upgradeClient := action.NewUpgrade(actionConfig)
	upgradeClient.Namespace = namespace
	upgradeClient.Version = version
	upgradeClient.Wait = true
	upgradeClient.Timeout = installTimeout

	chrt, err := loadChart(repoURL, chartName, version)
	if err != nil {
		return err
	}
	if _, err := upgradeClient.RunWithContext(ctx, releaseName, chrt, values); err != nil {
		return fmt.Errorf("failed to upgrade %s: %w", releaseName, err)
	}
	return nil
}

func loadChart(repoURL, chartName, version string) (*chart.Chart, error) {
	settings := cli.New()

	chartPath, err := repo.FindChartInRepoURL(repoURL, chartName, version, "", "", "", getter.All(settings))
	if err != nil {
		return nil, fmt.Errorf("failed to find chart %s in repo %s: %w", chartName, repoURL, err)
	}
	defer func() { _ = os.Remove(chartPath) }()

	return loader.Load(chartPath)
}
