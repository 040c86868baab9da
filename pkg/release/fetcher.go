package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/log"
	"github.com/cuemby/solo/pkg/metrics"
	"github.com/cuemby/solo/pkg/types"
)

const (
	// DefaultBaseURL hosts the platform release builds
	DefaultBaseURL = "https://builds.hedera.com/node/software"

	// DefaultHTTPTimeout bounds every single HTTP request
	DefaultHTTPTimeout = 10 * time.Minute
)

// ArtifactRecorder persists verified artifacts. The record is informational;
// a cached archive is always re-verified before reuse.
type ArtifactRecorder interface {
	SaveArtifact(artifact *types.ReleaseArtifact) error
}

// Fetcher downloads and verifies release archives
type Fetcher struct {
	baseURL   string
	client    *http.Client
	algorithm types.DigestAlgorithm
	force     bool
	recorder  ArtifactRecorder
	logger    zerolog.Logger
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithAlgorithm selects the digest algorithm. The checksum file extension
// follows the algorithm name.
func WithAlgorithm(algorithm types.DigestAlgorithm) FetcherOption {
	return func(f *Fetcher) {
		if algorithm != "" {
			f.algorithm = algorithm
		}
	}
}

// WithForce always downloads, even if a verified archive is cached
func WithForce(force bool) FetcherOption {
	return func(f *Fetcher) {
		f.force = force
	}
}

// WithRecorder records verified artifacts
func WithRecorder(recorder ArtifactRecorder) FetcherOption {
	return func(f *Fetcher) {
		f.recorder = recorder
	}
}

// NewFetcher creates a fetcher for releases published under baseURL
func NewFetcher(baseURL string, opts ...FetcherOption) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	f := &Fetcher{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: DefaultHTTPTimeout},
		algorithm: DefaultAlgorithm,
		logger:    log.WithComponent("release"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URLs returns the archive and checksum URLs of tag
func (f *Fetcher) URLs(tag types.ReleaseTag) (archiveURL, checksumURL string) {
	archiveURL = fmt.Sprintf("%s/%s/build-%s.zip", f.baseURL, tag.Family(), tag.Raw)
	checksumURL = fmt.Sprintf("%s/%s/build-%s.%s", f.baseURL, tag.Family(), tag.Raw, f.algorithm)
	return archiveURL, checksumURL
}

// Paths returns where the archive and checksum of tag are cached under destDir
func (f *Fetcher) Paths(tag types.ReleaseTag, destDir string) (archivePath, checksumPath string) {
	dir := filepath.Join(destDir, tag.Family())
	archivePath = filepath.Join(dir, fmt.Sprintf("build-%s.zip", tag.Raw))
	checksumPath = filepath.Join(dir, fmt.Sprintf("build-%s.%s", tag.Raw, f.algorithm))
	return archivePath, checksumPath
}

// Fetch resolves tag, downloads the archive and its checksum into destDir
// and verifies the archive. A mismatching archive is left on disk but the
// call fails with a DataIntegrity error. Nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, tagName, destDir string) (*types.ReleaseArtifact, error) {
	const op = "release.Fetch"

	// Validate before any network access
	tag, err := ParseTag(tagName)
	if err != nil {
		return nil, err
	}
	if destDir == "" {
		return nil, errdefs.Missing(op, "destination directory")
	}
	if info, err := os.Stat(destDir); err == nil && !info.IsDir() {
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "destination %s is not a directory", destDir)
	}
	if _, err := NewHash(f.algorithm); err != nil {
		return nil, err
	}

	logger := f.logger.With().Str("tag", tag.Raw).Logger()
	archivePath, checksumPath := f.Paths(tag, destDir)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory for %s in %s: %w", tag, destDir, err)
	}

	// Reuse a cached archive only if it still verifies
	if !f.force && fileExists(archivePath) && fileExists(checksumPath) {
		artifact, err := f.verify(tag, archivePath, checksumPath)
		if err == nil {
			logger.Info().Str("path", archivePath).Msg("Using cached release archive")
			metrics.ArtifactDownloads.WithLabelValues("cached").Inc()
			return artifact, nil
		}
		logger.Warn().Err(err).Str("path", archivePath).Msg("Cached release archive failed verification, downloading again")
	}

	archiveURL, checksumURL := f.URLs(tag)

	if err := f.probe(ctx, archiveURL); err != nil {
		if errdefs.IsNotFound(err) {
			metrics.ArtifactDownloads.WithLabelValues("not_found").Inc()
		} else {
			metrics.ArtifactDownloads.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	logger.Info().Str("url", archiveURL).Str("path", archivePath).Msg("Downloading release archive")

	if _, err := f.download(ctx, checksumURL, checksumPath); err != nil {
		metrics.ArtifactDownloads.WithLabelValues("error").Inc()
		return nil, err
	}

	n, err := f.download(ctx, archiveURL, archivePath)
	if err != nil {
		metrics.ArtifactDownloads.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ArtifactBytes.Add(float64(n))

	artifact, err := f.verify(tag, archivePath, checksumPath)
	if err != nil {
		if errdefs.IsDataIntegrity(err) {
			metrics.ArtifactDownloads.WithLabelValues("mismatch").Inc()
		} else {
			metrics.ArtifactDownloads.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.ArtifactDownloads.WithLabelValues("verified").Inc()
	logger.Info().
		Str("digest", artifact.Digest).
		Int64("bytes", artifact.Size).
		Msg("Release archive verified")

	return artifact, nil
}

// verify checks the archive against its checksum file and records the result
func (f *Fetcher) verify(tag types.ReleaseTag, archivePath, checksumPath string) (*types.ReleaseArtifact, error) {
	expected, err := ReadChecksumFile(checksumPath)
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", tag, err)
	}

	digest, size, err := Verify(archivePath, expected, f.algorithm)
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", tag, err)
	}

	artifact := &types.ReleaseArtifact{
		Tag:          tag,
		ArchivePath:  archivePath,
		ChecksumPath: checksumPath,
		Digest:       digest,
		Algorithm:    f.algorithm,
		Size:         size,
		VerifiedAt:   time.Now(),
	}

	if f.recorder != nil {
		if err := f.recorder.SaveArtifact(artifact); err != nil {
			f.logger.Warn().Err(err).Str("tag", tag.Raw).Msg("Failed to record verified artifact")
		}
	}

	return artifact, nil
}

// probe issues a HEAD request so a missing release is reported as
// ResourceNotFound instead of a transport failure
func (f *Fetcher) probe(ctx context.Context, url string) error {
	const op = "release.probe"

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return errdefs.Wrap(errdefs.KindInvalidArgument, op, err, "building request for %s", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "HEAD %s", url)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errdefs.New(errdefs.KindResourceNotFound, op, "release archive not found at %s", url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errdefs.New(errdefs.KindRemoteOperation, op, "HEAD %s: unexpected status %s", url, resp.Status)
	}
	return nil
}

// download streams url into path and returns the number of bytes written
func (f *Fetcher) download(ctx context.Context, url, path string) (int64, error) {
	const op = "release.download"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindInvalidArgument, op, err, "building request for %s", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, errdefs.New(errdefs.KindResourceNotFound, op, "GET %s: not found", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errdefs.New(errdefs.KindRemoteOperation, op, "GET %s: unexpected status %s", url, resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}

	n, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return n, errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "downloading %s to %s after %d bytes", url, path, n)
	}

	return n, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
