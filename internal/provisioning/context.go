// Package provisioning holds the shared context and warning collection the
// lifecycle flows (create, scale, destroy) operate on.
package provisioning

import (
	"context"
	"log"

	"github.com/talhyve/talhyve/internal/artifacts"
	"github.com/talhyve/talhyve/internal/config"
	"github.com/talhyve/talhyve/internal/k8s"
	"github.com/talhyve/talhyve/internal/platform/hyperv"
	"github.com/talhyve/talhyve/internal/platform/talos"
	"github.com/talhyve/talhyve/internal/resolve"
)

// ConfigProducer generates machine configs and the talosconfig. Satisfied
// by *talos.Generator.
type ConfigProducer interface {
	SetEndpoint(endpoint string)
	Endpoint() string
	GenerateControlPlaneConfig(sans []string, hostname string) ([]byte, error)
	GenerateWorkerConfig(hostname string) ([]byte, error)
	ClientConfig() ([]byte, error)
}

// Context carries the dependencies of one lifecycle operation. It embeds
// the cancellation context so flows pass it straight into API calls.
type Context struct {
	context.Context

	Config    *config.Config
	VMs       hyperv.Service
	Resolver  *resolve.Resolver
	Talos     talos.API
	Generator ConfigProducer
	Artifacts *artifacts.Store

	// Kube is nil until a kubeconfig exists (during initial create, and
	// during destroy of an unhealthy cluster).
	Kube k8s.Interface

	Logger   *log.Logger
	Warnings *Warnings
}

// NewContext assembles a Context. Optional dependencies are set by the
// caller after construction.
func NewContext(ctx context.Context, cfg *config.Config, vms hyperv.Service, logger *log.Logger) *Context {
	return &Context{
		Context:   ctx,
		Config:    cfg,
		VMs:       vms,
		Resolver:  resolve.New(vms, cfg.Timeouts),
		Artifacts: artifacts.NewStore(cfg.OutputDir),
		Logger:    logger,
		Warnings:  &Warnings{},
	}
}

// Warnf logs a non-fatal problem and records it for the end-of-run summary.
func (c *Context) Warnf(format string, args ...any) {
	c.Logger.Printf("WARNING: "+format, args...)
	c.Warnings.Addf(format, args...)
}
