// Package k8s wraps the Kubernetes API operations the cluster lifecycle
// needs: node inspection, join waits, drain, and manifest application.
package k8s

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

const controlPlaneLabel = "node-role.kubernetes.io/control-plane"

// Client wraps a typed and a dynamic Kubernetes client.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
}

// NewClientFromBytes creates a Client from kubeconfig bytes.
func NewClientFromBytes(kubeconfigData []byte) (*Client, error) {
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfigData)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig from bytes: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Client{clientset: clientset, dynamic: dynamicClient}, nil
}

// NewClientForTesting wires a Client onto pre-built interfaces.
func NewClientForTesting(clientset kubernetes.Interface, dyn dynamic.Interface) *Client {
	return &Client{clientset: clientset, dynamic: dyn}
}

// GetNode returns a node by name.
func (c *Client) GetNode(ctx context.Context, name string) (*corev1.Node, error) {
	return c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
}

// ListNodes returns all nodes in the cluster.
func (c *Client) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return list.Items, nil
}

// NodeByInternalIP returns the node whose InternalIP address matches ip, or
// nil if no node has it.
func (c *Client) NodeByInternalIP(ctx context.Context, ip string) (*corev1.Node, error) {
	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		for _, addr := range nodes[i].Status.Addresses {
			if addr.Type == corev1.NodeInternalIP && addr.Address == ip {
				return &nodes[i], nil
			}
		}
	}
	return nil, nil
}

// IsControlPlane reports whether a node carries the control plane role label.
func IsControlPlane(node *corev1.Node) bool {
	_, ok := node.Labels[controlPlaneLabel]
	return ok
}

// WaitForNodeReady polls until the named node exists and reports Ready.
func (c *Client) WaitForNodeReady(ctx context.Context, name string, interval, timeout time.Duration) error {
	return wait.PollImmediate(interval, timeout, func() (bool, error) {
		node, err := c.GetNode(ctx, name)
		if err != nil {
			return false, nil
		}
		return isNodeReady(node), nil
	})
}

// CordonNode marks a node unschedulable. Already-cordoned nodes are a no-op.
func (c *Client) CordonNode(ctx context.Context, name string) error {
	node, err := c.GetNode(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get node %s: %w", name, err)
	}
	if node.Spec.Unschedulable {
		return nil
	}
	node.Spec.Unschedulable = true
	if _, err := c.clientset.CoreV1().Nodes().Update(ctx, node, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to cordon node %s: %w", name, err)
	}
	return nil
}

// DrainNode evicts all evictable pods from a node and waits for them to
// terminate. DaemonSet pods and mirror pods are left alone: the former are
// rescheduled instantly and the latter are managed by the kubelet.
func (c *Client) DrainNode(ctx context.Context, name string, timeout time.Duration) error {
	pods, err := c.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: "spec.nodeName=" + name,
	})
	if err != nil {
		return fmt.Errorf("failed to list pods on node %s: %w", name, err)
	}

	var evicted []corev1.Pod
	for _, pod := range pods.Items {
		if !evictable(&pod) {
			continue
		}
		eviction := &policyv1.Eviction{
			ObjectMeta: metav1.ObjectMeta{Name: pod.Name, Namespace: pod.Namespace},
		}
		if err := c.clientset.PolicyV1().Evictions(pod.Namespace).Evict(ctx, eviction); err != nil {
			if apierrors.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("failed to evict pod %s/%s: %w", pod.Namespace, pod.Name, err)
		}
		evicted = append(evicted, pod)
	}

	if len(evicted) == 0 {
		return nil
	}

	return wait.PollImmediate(2*time.Second, timeout, func() (bool, error) {
		for _, pod := range evicted {
			_, err := c.clientset.CoreV1().Pods(pod.Namespace).Get(ctx, pod.Name, metav1.GetOptions{})
			if err == nil {
				return false, nil
			}
			if !apierrors.IsNotFound(err) {
				return false, nil
			}
		}
		return true, nil
	})
}

// DeleteNode removes the node object. A node that is already gone is not an
// error.
func (c *Client) DeleteNode(ctx context.Context, name string) error {
	err := c.clientset.CoreV1().Nodes().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete node %s: %w", name, err)
	}
	return nil
}

func evictable(pod *corev1.Pod) bool {
	if pod.Annotations[corev1.MirrorPodAnnotationKey] != "" {
		return false
	}
	for _, ref := range pod.OwnerReferences {
		if ref.Kind == "DaemonSet" {
			return false
		}
	}
	return true
}

func isNodeReady(node *corev1.Node) bool {
	for _, condition := range node.Status.Conditions {
		if condition.Type == corev1.NodeReady && condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// Apply applies a multi-document YAML manifest through the dynamic client,
// creating resources and falling back to update when they already exist.
func (c *Client) Apply(ctx context.Context, manifest string) error {
	decoder := yaml.NewYAMLOrJSONDecoder(strings.NewReader(manifest), 4096)

	for {
		var obj unstructured.Unstructured
		err := decoder.Decode(&obj)
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return fmt.Errorf("failed to decode manifest: %w", err)
		}
		if len(obj.Object) == 0 {
			continue
		}

		gvk := obj.GroupVersionKind()
		gvr := schema.GroupVersionResource{
			Group:    gvk.Group,
			Version:  gvk.Version,
			Resource: resourceForKind(gvk.Kind),
		}

		client := c.dynamic.Resource(gvr).Namespace(obj.GetNamespace())
		if _, err = client.Create(ctx, &obj, metav1.CreateOptions{}); err != nil {
			if !apierrors.IsAlreadyExists(err) {
				return fmt.Errorf("failed to apply resource %s/%s: %w", obj.GetKind(), obj.GetName(), err)
			}
			existing, getErr := client.Get(ctx, obj.GetName(), metav1.GetOptions{})
			if getErr != nil {
				return fmt.Errorf("failed to fetch existing %s/%s: %w", obj.GetKind(), obj.GetName(), getErr)
			}
			obj.SetResourceVersion(existing.GetResourceVersion())
			if _, err = client.Update(ctx, &obj, metav1.UpdateOptions{}); err != nil {
				return fmt.Errorf("failed to update resource %s/%s: %w", obj.GetKind(), obj.GetName(), err)
			}
		}
	}
	return nil
}

// resourceForKind maps a kind to its resource name. Covers the kinds the
// addon manifests use plus a lowercase-plural fallback.
func resourceForKind(kind string) string {
	switch kind {
	case "IPAddressPool":
		return "ipaddresspools"
	case "L2Advertisement":
		return "l2advertisements"
	case "Namespace":
		return "namespaces"
	case "ConfigMap":
		return "configmaps"
	case "Secret":
		return "secrets"
	default:
		return strings.ToLower(kind) + "s"
	}
}
