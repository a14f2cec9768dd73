package talos

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/siderolabs/talos/pkg/machinery/api/machine"
	"github.com/siderolabs/talos/pkg/machinery/client"
	clientconfig "github.com/siderolabs/talos/pkg/machinery/client/config"
)

// API is the Talos control surface the provisioning flows consume.
type API interface {
	ApplyConfigInsecure(ctx context.Context, nodeIP string, configData []byte) error
	Bootstrap(ctx context.Context, nodeIP string) error
	Ping(ctx context.Context, nodeIP string) error
	EtcdMembers(ctx context.Context, nodeIP string) ([]string, error)
	Kubeconfig(ctx context.Context, nodeIP string) ([]byte, error)
}

// Client talks to Talos nodes over the machinery gRPC API.
type Client struct {
	talosConfig *clientconfig.Config
}

var _ API = (*Client)(nil)

// NewClient builds a Client from talosconfig bytes.
func NewClient(talosconfigBytes []byte) (*Client, error) {
	cfg, err := clientconfig.FromString(string(talosconfigBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse talosconfig: %w", err)
	}
	return &Client{talosConfig: cfg}, nil
}

// ApplyConfigInsecure pushes a machine config to a maintenance-mode node.
// Nodes booted from the ISO have no credentials yet, so the connection
// cannot verify TLS. REBOOT mode makes the node install to disk and restart.
func (c *Client) ApplyConfigInsecure(ctx context.Context, nodeIP string, configData []byte) error {
	talosClient, err := client.New(ctx,
		client.WithEndpoints(nodeIP),
		client.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}), //nolint:gosec // maintenance mode has no credentials
	)
	if err != nil {
		return fmt.Errorf("failed to create talos client: %w", err)
	}
	defer func() { _ = talosClient.Close() }()

	_, err = talosClient.ApplyConfiguration(ctx, &machine.ApplyConfigurationRequest{
		Data: configData,
		Mode: machine.ApplyConfigurationRequest_REBOOT,
	})
	if err != nil {
		return fmt.Errorf("failed to apply configuration: %w", err)
	}
	return nil
}

// Bootstrap initializes etcd on the first control plane node. It must run
// exactly once per cluster.
func (c *Client) Bootstrap(ctx context.Context, nodeIP string) error {
	talosClient, err := c.authenticated(ctx, nodeIP)
	if err != nil {
		return err
	}
	defer func() { _ = talosClient.Close() }()

	if err := talosClient.Bootstrap(ctx, &machine.BootstrapRequest{}); err != nil {
		return fmt.Errorf("failed to bootstrap etcd: %w", err)
	}
	return nil
}

// Ping makes an authenticated Version call. It succeeds only once the node
// runs the installed config and trusts the cluster credentials, which makes
// it the readiness signal after the install reboot.
func (c *Client) Ping(ctx context.Context, nodeIP string) error {
	talosClient, err := c.authenticated(ctx, nodeIP)
	if err != nil {
		return err
	}
	defer func() { _ = talosClient.Close() }()

	if _, err := talosClient.Version(ctx); err != nil {
		return fmt.Errorf("version check failed: %w", err)
	}
	return nil
}

// EtcdMembers lists the hostnames of the current etcd members.
func (c *Client) EtcdMembers(ctx context.Context, nodeIP string) ([]string, error) {
	talosClient, err := c.authenticated(ctx, nodeIP)
	if err != nil {
		return nil, err
	}
	defer func() { _ = talosClient.Close() }()

	resp, err := talosClient.EtcdMemberList(ctx, &machine.EtcdMemberListRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list etcd members: %w", err)
	}

	var members []string
	for _, msg := range resp.Messages {
		for _, member := range msg.Members {
			members = append(members, member.Hostname)
		}
	}
	return members, nil
}

// Kubeconfig retrieves the cluster kubeconfig from a control plane node.
func (c *Client) Kubeconfig(ctx context.Context, nodeIP string) ([]byte, error) {
	talosClient, err := c.authenticated(ctx, nodeIP)
	if err != nil {
		return nil, err
	}
	defer func() { _ = talosClient.Close() }()

	kubeconfig, err := talosClient.Kubeconfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve kubeconfig: %w", err)
	}
	return kubeconfig, nil
}

func (c *Client) authenticated(ctx context.Context, nodeIP string) (*client.Client, error) {
	talosClient, err := client.New(ctx,
		client.WithConfig(c.talosConfig),
		client.WithEndpoints(nodeIP),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create talos client: %w", err)
	}
	return talosClient, nil
}
