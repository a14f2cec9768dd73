// Package fakes provides an in-memory Kubernetes surface for tests.
package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/talhyve/talhyve/internal/k8s"
)

const controlPlaneLabel = "node-role.kubernetes.io/control-plane"

// FakeKube holds a node inventory and records lifecycle calls.
type FakeKube struct {
	mu    sync.Mutex
	nodes map[string]*corev1.Node

	CordonCalls []string
	DrainCalls  []string
	DeleteCalls []string
	Applied     []string

	// Fail injects an error for the named operation ("drain", "apply").
	Fail map[string]error
}

var _ k8s.Interface = (*FakeKube)(nil)

// New returns an empty fake cluster.
func New() *FakeKube {
	return &FakeKube{nodes: make(map[string]*corev1.Node)}
}

// AddNode registers a Ready node with the given role and internal IP.
func (f *FakeKube) AddNode(name, internalIP string, controlPlane bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: map[string]string{}},
		Status: corev1.NodeStatus{
			Addresses: []corev1.NodeAddress{
				{Type: corev1.NodeInternalIP, Address: internalIP},
			},
			Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
			},
		},
	}
	if controlPlane {
		node.Labels[controlPlaneLabel] = ""
	}
	f.nodes[name] = node
}

func (f *FakeKube) failFor(op string) error {
	if f.Fail == nil {
		return nil
	}
	return f.Fail[op]
}

func (f *FakeKube) GetNode(_ context.Context, name string) (*corev1.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[name]
	if !ok {
		return nil, fmt.Errorf("node %q not found", name)
	}
	cp := node.DeepCopy()
	return cp, nil
}

func (f *FakeKube) ListNodes(_ context.Context) ([]corev1.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []corev1.Node
	for _, node := range f.nodes {
		out = append(out, *node.DeepCopy())
	}
	return out, nil
}

func (f *FakeKube) NodeByInternalIP(_ context.Context, ip string) (*corev1.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, node := range f.nodes {
		for _, addr := range node.Status.Addresses {
			if addr.Type == corev1.NodeInternalIP && addr.Address == ip {
				return node.DeepCopy(), nil
			}
		}
	}
	return nil, nil
}

func (f *FakeKube) WaitForNodeReady(ctx context.Context, name string, _, _ time.Duration) error {
	if _, err := f.GetNode(ctx, name); err != nil {
		return fmt.Errorf("timed out waiting for node %s", name)
	}
	return nil
}

func (f *FakeKube) CordonNode(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CordonCalls = append(f.CordonCalls, name)
	return nil
}

func (f *FakeKube) DrainNode(_ context.Context, name string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("drain"); err != nil {
		return err
	}
	f.DrainCalls = append(f.DrainCalls, name)
	return nil
}

func (f *FakeKube) DeleteNode(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls = append(f.DeleteCalls, name)
	delete(f.nodes, name)
	return nil
}

func (f *FakeKube) Apply(_ context.Context, manifest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("apply"); err != nil {
		return err
	}
	f.Applied = append(f.Applied, manifest)
	return nil
}
