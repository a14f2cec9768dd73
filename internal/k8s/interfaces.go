package k8s

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
)

// Interface is the Kubernetes surface the lifecycle flows consume. It is
// satisfied by Client and by the test fake.
type Interface interface {
	GetNode(ctx context.Context, name string) (*corev1.Node, error)
	ListNodes(ctx context.Context) ([]corev1.Node, error)
	NodeByInternalIP(ctx context.Context, ip string) (*corev1.Node, error)
	WaitForNodeReady(ctx context.Context, name string, interval, timeout time.Duration) error
	CordonNode(ctx context.Context, name string) error
	DrainNode(ctx context.Context, name string, timeout time.Duration) error
	DeleteNode(ctx context.Context, name string) error
	Apply(ctx context.Context, manifest string) error
}

var _ Interface = (*Client)(nil)
