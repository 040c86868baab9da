package cluster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/types"
)

// Exec runs command in the target container and returns its stdout lines.
// A missing pod is ResourceNotFound; a non-zero exit or a broken stream is
// RemoteOperation.
func (c *Client) Exec(ctx context.Context, target types.PodTarget, command ...string) ([]string, error) {
	const op = "cluster.Exec"

	if len(command) == 0 {
		return nil, errdefs.Missing(op, "command")
	}

	var stdout bytes.Buffer
	if err := c.stream(ctx, op, target, command, nil, &stdout); err != nil {
		return nil, err
	}
	return splitLines(stdout.String()), nil
}

// Mkdir creates path and its parents in the target container
func (c *Client) Mkdir(ctx context.Context, target types.PodTarget, path string) error {
	const op = "cluster.Mkdir"

	if path == "" {
		return errdefs.Missing(op, "path")
	}
	return c.stream(ctx, op, target, []string{"mkdir", "-p", path}, nil, io.Discard)
}

// stream validates target, checks the pod exists and runs command with the
// given stdin under the remote timeout
func (c *Client) stream(ctx context.Context, op string, target types.PodTarget, command []string, stdin io.Reader, stdout io.Writer) error {
	if err := validateTarget(op, target); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	exists, err := c.PodExists(ctx, target.Namespace, target.Pod)
	if err != nil {
		return err
	}
	if !exists {
		return errdefs.New(errdefs.KindResourceNotFound, op, "pod %s/%s not found", target.Namespace, target.Pod)
	}

	if c.restClient == nil {
		return errdefs.New(errdefs.KindInvalidArgument, op, "client has no REST config for pod exec")
	}

	req := c.restClient.Post().
		Resource("pods").
		Name(target.Pod).
		Namespace(target.Namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: target.Container,
			Command:   command,
			Stdin:     stdin != nil,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := c.newExecutor(c.config, "POST", req.URL())
	if err != nil {
		return errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "creating exec stream to %s/%s", target.Namespace, target.Pod)
	}

	var stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return execError(ctx, op, target, command, err, stderr.String())
	}

	c.logger.Debug().
		Str("namespace", target.Namespace).
		Str("pod", target.Pod).
		Strs("command", command).
		Msg("Executed command in pod")
	return nil
}

func execError(ctx context.Context, op string, target types.PodTarget, command []string, err error, stderr string) error {
	where := fmt.Sprintf("%s/%s: %s", target.Namespace, target.Pod, strings.Join(command, " "))
	if s := strings.TrimSpace(stderr); s != "" {
		where = fmt.Sprintf("%s (stderr: %s)", where, s)
	}

	var exitErr utilexec.ExitError
	if errors.As(err, &exitErr) {
		return errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "%s exited with code %d", where, exitErr.ExitStatus())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errdefs.Wrap(errdefs.KindTimeout, op, err, "%s", where)
	}
	return errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "%s", where)
}

func validateTarget(op string, target types.PodTarget) error {
	if target.Namespace == "" {
		return errdefs.Missing(op, "namespace")
	}
	if target.Pod == "" {
		return errdefs.Missing(op, "pod name")
	}
	return nil
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
