package staging

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/solo/pkg/addressbook"
	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/log"
	"github.com/cuemby/solo/pkg/release"
	"github.com/cuemby/solo/pkg/security"
	"github.com/cuemby/solo/pkg/types"
)

// DefaultParallelism bounds per-node key generation and copies
const DefaultParallelism = 4

// PodFiles is the remote file primitive used to place files inside pods
type PodFiles interface {
	Mkdir(ctx context.Context, target types.PodTarget, path string) error
	CopyFile(ctx context.Context, target types.PodTarget, localPath, remotePath string) error
	Exec(ctx context.Context, target types.PodTarget, command ...string) ([]string, error)
}

// PrepareRequest describes one staging bundle
type PrepareRequest struct {
	Namespace    string
	NodeIDs      []string
	ChainID      string
	Artifact     *types.ReleaseArtifact
	TemplatesDir string // Optional; every regular file below it is staged
	AddressBook  addressbook.Options
}

// Coordinator assembles staging bundles and copies them into pods
type Coordinator struct {
	baseDir      string
	files        PodFiles
	keyAlgorithm types.KeyAlgorithm
	passphrase   string
	parallelism  int
	logger       zerolog.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithKeyAlgorithm selects the algorithm of generated node keys
func WithKeyAlgorithm(algorithm types.KeyAlgorithm) Option {
	return func(c *Coordinator) {
		c.keyAlgorithm = algorithm
	}
}

// WithPassphrase overrides the key container passphrase
func WithPassphrase(passphrase string) Option {
	return func(c *Coordinator) {
		c.passphrase = passphrase
	}
}

// WithParallelism bounds the number of nodes processed at once
func WithParallelism(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// NewCoordinator creates a coordinator that creates bundles below baseDir
// and copies them with files
func NewCoordinator(baseDir string, files PodFiles, opts ...Option) (*Coordinator, error) {
	if baseDir == "" {
		return nil, errdefs.Missing("staging.NewCoordinator", "staging directory")
	}

	c := &Coordinator{
		baseDir:      baseDir,
		files:        files,
		keyAlgorithm: types.KeyAlgorithmRSA3072,
		passphrase:   security.DefaultPassphrase,
		parallelism:  DefaultParallelism,
		logger:       log.WithComponent("staging"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Prepare creates a fresh bundle: it unpacks and validates the release, then
// copies templates, writes the address book, exports per-node keys and
// finally the per-node TLS pairs. A failed bundle is removed.
func (c *Coordinator) Prepare(ctx context.Context, req PrepareRequest) (bundle *types.StagingBundle, err error) {
	const op = "staging.Prepare"

	if err := validatePrepare(op, req); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	root := filepath.Join(c.baseDir, id)
	bundle = &types.StagingBundle{
		ID:          id,
		Namespace:   req.Namespace,
		Tag:         req.Artifact.Tag,
		Root:        root,
		BuildDir:    filepath.Join(root, buildDirName),
		ArchivePath: req.Artifact.ArchivePath,
		ConfigPath:  filepath.Join(root, ConfigName),
		KeysDir:     filepath.Join(root, keysDirName),
		Nodes:       make(map[string]*types.NodeFiles, len(req.NodeIDs)),
		CreatedAt:   time.Now().UTC(),
	}

	logger := c.logger.With().
		Str("bundle", id).
		Str("namespace", req.Namespace).
		Str("tag", req.Artifact.Tag.Raw).
		Logger()

	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating staging directory %s: %w", root, err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(root); rmErr != nil {
				logger.Warn().Err(rmErr).Msg("Failed to remove incomplete staging bundle")
			}
			bundle = nil
		}
	}()

	if _, err := release.Unpack(ctx, req.Artifact.ArchivePath, bundle.BuildDir); err != nil {
		return nil, err
	}
	if err := ValidateRelease(bundle.BuildDir); err != nil {
		return nil, err
	}

	// 1. templates
	if req.TemplatesDir != "" {
		files, err := copyTemplates(req.TemplatesDir, filepath.Join(root, templatesDirName))
		if err != nil {
			return nil, err
		}
		bundle.TemplateFiles = files
	}

	// 2. address book
	opts := req.AddressBook
	opts.Namespace = req.Namespace
	lines, err := addressbook.Render(req.NodeIDs, req.ChainID, opts)
	if err != nil {
		return nil, err
	}
	if err := addressbook.Write(bundle.ConfigPath, lines); err != nil {
		return nil, err
	}

	// 3. and 4. keys, then TLS, fanned out per node
	if err := c.generateKeys(ctx, bundle, req.NodeIDs); err != nil {
		return nil, err
	}

	logger.Info().
		Int("nodes", len(req.NodeIDs)).
		Int("templates", len(bundle.TemplateFiles)).
		Str("path", root).
		Msg("Staging bundle prepared")

	return bundle, nil
}

// generateKeys exports signing and gossip containers under KeysDir and the
// TLS pair at the bundle root for every node. Nodes share no files, so
// they are processed concurrently.
func (c *Coordinator) generateKeys(ctx context.Context, bundle *types.StagingBundle, nodeIDs []string) error {
	keys, err := security.NewKeyManager(bundle.KeysDir, security.WithAlgorithm(c.keyAlgorithm), security.WithPassphrase(c.passphrase))
	if err != nil {
		return err
	}
	tls, err := security.NewKeyManager(bundle.Root, security.WithAlgorithm(c.keyAlgorithm), security.WithPassphrase(c.passphrase))
	if err != nil {
		return err
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)

	for _, nodeID := range nodeIDs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			signing, signingFiles, err := keys.SigningIdentity(nodeID)
			if err != nil {
				return fmt.Errorf("node %s: %w", nodeID, err)
			}
			_, gossipFiles, err := keys.GossipIdentity(nodeID, signing)
			if err != nil {
				return fmt.Errorf("node %s: %w", nodeID, err)
			}
			_, tlsFiles, err := tls.TLSIdentity(nodeID, signing)
			if err != nil {
				return fmt.Errorf("node %s: %w", nodeID, err)
			}

			mu.Lock()
			bundle.Nodes[nodeID] = &types.NodeFiles{
				NodeID:  nodeID,
				Signing: signingFiles,
				Gossip:  gossipFiles,
				TLSKey:  tlsFiles.PrivatePath,
				TLSCert: tlsFiles.PublicPath,
			}
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Remove deletes a bundle's local directory
func (c *Coordinator) Remove(bundle *types.StagingBundle) error {
	if bundle == nil || bundle.Root == "" {
		return nil
	}
	if err := os.RemoveAll(bundle.Root); err != nil {
		return fmt.Errorf("removing staging bundle %s: %w", bundle.Root, err)
	}
	return nil
}

// copyTemplates copies every regular file below src into dst and returns
// their slash-separated paths relative to dst, sorted
func copyTemplates(src, dst string) ([]string, error) {
	const op = "staging.copyTemplates"

	info, err := os.Stat(src)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidArgument, op, err, "templates directory %s does not exist", src)
	}
	if !info.IsDir() {
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "templates path %s is not a directory", src)
	}

	var files []string
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(dst, rel)); err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("copying templates from %s: %w", src, err)
	}

	sort.Strings(files)
	return files, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func validatePrepare(op string, req PrepareRequest) error {
	if req.Namespace == "" {
		return errdefs.Missing(op, "namespace")
	}
	if len(req.NodeIDs) == 0 {
		return errdefs.Missing(op, "node ids")
	}
	if req.ChainID == "" {
		return errdefs.Missing(op, "chain id")
	}
	if req.Artifact == nil || req.Artifact.ArchivePath == "" {
		return errdefs.Missing(op, "release artifact")
	}
	if req.Artifact.VerifiedAt.IsZero() {
		return errdefs.New(errdefs.KindInvalidArgument, op, "release artifact %s has not been verified", req.Artifact.ArchivePath)
	}
	return nil
}
