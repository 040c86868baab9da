package release

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/cuemby/solo/pkg/errdefs"
)

// DefaultMaxUnpackSize bounds the uncompressed size of a release archive
const DefaultMaxUnpackSize int64 = 8 << 30

// UnpackOption configures Unpack
type UnpackOption func(*unpackOptions)

type unpackOptions struct {
	maxSize int64
}

// WithMaxSize bounds the total number of bytes Unpack may write
func WithMaxSize(n int64) UnpackOption {
	return func(o *unpackOptions) {
		o.maxSize = n
	}
}

// Unpack extracts the zip archive into destDir and returns the number of
// files written. Entries escaping destDir are rejected, as are archives
// whose content exceeds the size bound (DefaultMaxUnpackSize unless set).
func Unpack(ctx context.Context, archivePath, destDir string, opts ...UnpackOption) (int, error) {
	const op = "release.Unpack"

	o := unpackOptions{maxSize: DefaultMaxUnpackSize}
	for _, opt := range opts {
		opt(&o)
	}

	if archivePath == "" {
		return 0, errdefs.Missing(op, "archive path")
	}
	if destDir == "" {
		return 0, errdefs.Missing(op, "destination directory")
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindDataIntegrity, op, err, "opening archive %s", archivePath)
	}
	defer r.Close()

	var declared uint64
	for _, f := range r.File {
		declared += f.UncompressedSize64
	}
	if declared > uint64(o.maxSize) {
		return 0, errdefs.New(errdefs.KindDataIntegrity, op, "archive %s expands to %d bytes, limit is %d", archivePath, declared, o.maxSize)
	}

	root, err := filepath.Abs(destDir)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", destDir, err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", root, err)
	}

	written := 0
	remaining := o.maxSize
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return written, errdefs.New(errdefs.KindDataIntegrity, op, "archive %s entry %q escapes destination", archivePath, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, fmt.Errorf("creating %s: %w", target, err)
			}
			continue
		}

		n, err := extractFile(f, target, remaining)
		if err != nil {
			return written, fmt.Errorf("extracting %s from %s: %w", f.Name, archivePath, err)
		}
		remaining -= n
		written++
	}

	return written, nil
}

// extractFile writes f to target and returns the bytes written. Content
// beyond limit is a DataIntegrity error, whatever the entry header claims.
func extractFile(f *zip.File, target string, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, err
	}

	src, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		dst.Close()
		return n, err
	}
	if n > limit {
		dst.Close()
		return n, errdefs.New(errdefs.KindDataIntegrity, "release.Unpack", "entry %s exceeds the unpack size limit", f.Name)
	}
	return n, dst.Close()
}
