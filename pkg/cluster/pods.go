package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/cuemby/solo/pkg/errdefs"
)

// PodName is the pod running nodeID, as created by the network chart
func PodName(nodeID string) string {
	return fmt.Sprintf("network-%s-0", nodeID)
}

// PodExists reports whether pod name exists in namespace
func (c *Client) PodExists(ctx context.Context, namespace, name string) (bool, error) {
	const op = "cluster.PodExists"

	if namespace == "" {
		return false, errdefs.Missing(op, "namespace")
	}
	if name == "" {
		return false, errdefs.Missing(op, "pod name")
	}

	_, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "getting pod %s/%s", namespace, name)
	}
	return true, nil
}

// ListNamespaces returns the names of all namespaces, sorted
func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	list, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindRemoteOperation, "cluster.ListNamespaces", err, "listing namespaces")
	}

	names := make([]string, 0, len(list.Items))
	for _, ns := range list.Items {
		names = append(names, ns.Name)
	}
	sort.Strings(names)
	return names, nil
}

// NamespaceExists reports whether namespace exists
func (c *Client) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	_, err := c.clientset.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errdefs.Wrap(errdefs.KindRemoteOperation, "cluster.NamespaceExists", err, "getting namespace %s", namespace)
	}
	return true, nil
}

// DeleteNamespace removes namespace. A missing namespace is not an error.
func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return errdefs.Missing("cluster.DeleteNamespace", "namespace")
	}

	err := c.clientset.CoreV1().Namespaces().Delete(ctx, namespace, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return errdefs.Wrap(errdefs.KindRemoteOperation, "cluster.DeleteNamespace", err, "deleting namespace %s", namespace)
	}
	return nil
}

// ListPods returns the pods in namespace matching all selectors
func (c *Client) ListPods(ctx context.Context, namespace string, selectors []string) ([]corev1.Pod, error) {
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: strings.Join(selectors, ","),
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindRemoteOperation, "cluster.ListPods", err, "listing pods in %s", namespace)
	}
	return list.Items, nil
}

// WaitForPods polls until at least minCount pods in namespace matching all
// selectors are in phase. It returns the matching pods. Exceeding timeout
// is a Timeout error; cancelling ctx returns the context error.
func (c *Client) WaitForPods(ctx context.Context, namespace string, selectors []string, phase corev1.PodPhase, minCount int, timeout time.Duration) ([]corev1.Pod, error) {
	const op = "cluster.WaitForPods"

	if namespace == "" {
		return nil, errdefs.Missing(op, "namespace")
	}
	if minCount < 1 {
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "minimum pod count must be positive, got %d", minCount)
	}
	if timeout <= 0 {
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "timeout must be positive")
	}

	logger := c.logger.With().
		Str("namespace", namespace).
		Strs("selectors", selectors).
		Str("phase", string(phase)).
		Logger()

	var matched []corev1.Pod
	var lastErr error
	err := wait.PollUntilContextTimeout(ctx, c.pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		pods, err := c.ListPods(ctx, namespace, selectors)
		if err != nil {
			// Transient API errors are retried until the deadline
			lastErr = err
			return false, nil
		}

		matched = matched[:0]
		for _, pod := range pods {
			if pod.Status.Phase == phase {
				matched = append(matched, pod)
			}
		}
		logger.Debug().Int("matched", len(matched)).Int("want", minCount).Msg("Polled pods")
		return len(matched) >= minCount, nil
	})

	if err == nil {
		return matched, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
		return nil, fmt.Errorf("%s: %w", op, ctxErr)
	}
	if wait.Interrupted(err) {
		msg := fmt.Sprintf("%d of %d pods in %s reached phase %s within %s", len(matched), minCount, namespace, phase, timeout)
		if lastErr != nil {
			return nil, errdefs.Wrap(errdefs.KindTimeout, op, lastErr, "%s", msg)
		}
		return nil, errdefs.New(errdefs.KindTimeout, op, "%s", msg)
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}
