package staging

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/types"
)

// upload is one local file and the pod path it is copied to
type upload struct {
	local  string
	remote string
}

// CopyInto copies the bundle files of target.NodeID into the target pod and
// unpacks the release archive there. It returns the remote paths written,
// in the order they were written. Arguments are checked before any remote
// call; remote failures are not retried.
func (c *Coordinator) CopyInto(ctx context.Context, target types.PodTarget, bundle *types.StagingBundle) ([]string, error) {
	const op = "staging.CopyInto"

	uploads, err := c.plan(op, target, bundle)
	if err != nil {
		return nil, err
	}

	logger := c.logger.With().
		Str("namespace", target.Namespace).
		Str("pod", target.Pod).
		Str("node_id", target.NodeID).
		Logger()

	for _, dir := range remoteDirs(uploads) {
		if err := c.files.Mkdir(ctx, target, dir); err != nil {
			return nil, fmt.Errorf("creating %s in pod %s: %w", dir, target.Pod, err)
		}
	}

	written := make([]string, 0, len(uploads))

	// The archive goes first so the unpacked release cannot overwrite staged config
	archive := uploads[0]
	if err := c.files.CopyFile(ctx, target, archive.local, archive.remote); err != nil {
		return written, fmt.Errorf("copying %s to pod %s: %w", archive.remote, target.Pod, err)
	}
	written = append(written, archive.remote)

	if _, err := c.files.Exec(ctx, target, "unzip", "-o", "-q", archive.remote, "-d", AppRoot); err != nil {
		return written, fmt.Errorf("extracting %s in pod %s: %w", archive.remote, target.Pod, err)
	}
	logger.Debug().Str("path", archive.remote).Msg("Release extracted")

	for _, u := range uploads[1:] {
		if err := c.files.CopyFile(ctx, target, u.local, u.remote); err != nil {
			return written, fmt.Errorf("copying %s to pod %s: %w", u.remote, target.Pod, err)
		}
		written = append(written, u.remote)
	}

	logger.Info().Int("files", len(written)).Msg("Node files staged")
	return written, nil
}

// CopyAll runs CopyInto for every target concurrently and returns the remote
// paths keyed by node ID. The first failure cancels the remaining copies.
func (c *Coordinator) CopyAll(ctx context.Context, targets []types.PodTarget, bundle *types.StagingBundle) (map[string][]string, error) {
	// Validate everything before touching any pod
	for _, target := range targets {
		if _, err := c.plan("staging.CopyAll", target, bundle); err != nil {
			return nil, err
		}
	}

	var mu sync.Mutex
	result := make(map[string][]string, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for _, target := range targets {
		g.Go(func() error {
			paths, err := c.CopyInto(ctx, target, bundle)
			if err != nil {
				return fmt.Errorf("node %s: %w", target.NodeID, err)
			}
			mu.Lock()
			result[target.NodeID] = paths
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// plan validates the arguments and lists the uploads for target, archive first
func (c *Coordinator) plan(op string, target types.PodTarget, bundle *types.StagingBundle) ([]upload, error) {
	if c.files == nil {
		return nil, errdefs.Missing(op, "pod file primitive")
	}
	if target.Namespace == "" {
		return nil, errdefs.Missing(op, "namespace")
	}
	if target.Pod == "" {
		return nil, errdefs.Missing(op, "pod name")
	}
	if target.NodeID == "" {
		return nil, errdefs.Missing(op, "node id")
	}
	if bundle == nil || bundle.Root == "" {
		return nil, errdefs.Missing(op, "staging directory")
	}
	if bundle.ArchivePath == "" {
		return nil, errdefs.Missing(op, "release artifact")
	}
	if info, err := os.Stat(bundle.Root); err != nil || !info.IsDir() {
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "staging directory %s does not exist", bundle.Root)
	}

	node := bundle.Node(target.NodeID)
	if node == nil {
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "node %s is not part of staging bundle %s", target.NodeID, bundle.ID)
	}

	uploads := []upload{
		{local: bundle.ArchivePath, remote: path.Join(AppRoot, filepath.Base(bundle.ArchivePath))},
	}
	for _, name := range bundle.TemplateFiles {
		uploads = append(uploads, upload{
			local:  filepath.Join(bundle.Root, templatesDirName, filepath.FromSlash(name)),
			remote: path.Join(RemoteConfigDir(), name),
		})
	}
	uploads = append(uploads, upload{local: bundle.ConfigPath, remote: path.Join(AppRoot, ConfigName)})
	for _, container := range []types.KeyContainer{node.Signing, node.Gossip} {
		for _, local := range []string{container.PrivatePath, container.PublicPath} {
			uploads = append(uploads, upload{local: local, remote: path.Join(RemoteKeysDir(), filepath.Base(local))})
		}
	}
	uploads = append(uploads,
		upload{local: node.TLSKey, remote: path.Join(AppRoot, TLSKeyName)},
		upload{local: node.TLSCert, remote: path.Join(AppRoot, TLSCertName)},
	)

	for _, u := range uploads {
		if u.local == "" {
			return nil, errdefs.New(errdefs.KindInvalidArgument, op, "staging bundle %s is incomplete for node %s", bundle.ID, target.NodeID)
		}
	}
	return uploads, nil
}

// remoteDirs lists the pod directories uploads are written to, the fixed
// layout directories first, each directory once
func remoteDirs(uploads []upload) []string {
	dirs := []string{AppRoot, RemoteKeysDir(), RemoteConfigDir()}
	seen := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		seen[dir] = true
	}
	for _, u := range uploads {
		dir := path.Dir(u.remote)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
