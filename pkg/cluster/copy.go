package cluster

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/metrics"
	"github.com/cuemby/solo/pkg/types"
)

// CopyFile copies the local file into the target container at remotePath.
// The parent directory must already exist. The file is streamed as a
// single-entry tar archive into "tar -x" inside the container.
func (c *Client) CopyFile(ctx context.Context, target types.PodTarget, localPath, remotePath string) error {
	const op = "cluster.CopyFile"

	if localPath == "" {
		return errdefs.Missing(op, "local path")
	}
	if remotePath == "" {
		return errdefs.Missing(op, "remote path")
	}
	if err := validateTarget(op, target); err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return errdefs.Wrap(errdefs.KindInvalidArgument, op, err, "opening %s", localPath)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%s: stat %s: %w", op, localPath, err)
	}
	if info.IsDir() {
		return errdefs.New(errdefs.KindInvalidArgument, op, "%s is a directory", localPath)
	}

	reader, writer := io.Pipe()
	go func() {
		writer.CloseWithError(writeTar(writer, file, info, path.Base(remotePath)))
	}()
	defer reader.Close()

	command := []string{"tar", "-xmf", "-", "-C", path.Dir(remotePath)}
	if err := c.stream(ctx, op, target, command, reader, io.Discard); err != nil {
		return fmt.Errorf("copying %s to %s: %w", localPath, remotePath, err)
	}

	metrics.RemoteFilesCopied.Inc()
	return nil
}

// writeTar writes src as a single regular file entry called name
func writeTar(w io.Writer, src io.Reader, info os.FileInfo, name string) error {
	tw := tar.NewWriter(w)

	header := &tar.Header{
		Name:    name,
		Mode:    int64(info.Mode().Perm()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.Copy(tw, src); err != nil {
		return err
	}
	return tw.Close()
}
