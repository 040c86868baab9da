package release

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/solo/pkg/errdefs"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	w := zip.NewWriter(out)
	for name, body := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestUnpack(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "build-v0.42.5.zip")
	writeZip(t, archive, map[string]string{
		"data/apps/HederaNode.jar": "jar",
		"data/lib/dep.jar":         "dep",
		"data/config/.keep":        "",
	})

	dest := filepath.Join(dir, "build")
	n, err := Unpack(context.Background(), archive, dest)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(filepath.Join(dest, "data", "apps", "HederaNode.jar"))
	require.NoError(t, err)
	assert.Equal(t, "jar", string(data))
}

func TestUnpackRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../../escape.txt": "x"})

	_, err := Unpack(context.Background(), archive, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.True(t, errdefs.IsDataIntegrity(err))

	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpackCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "corrupt.zip")
	require.NoError(t, os.WriteFile(archive, []byte("not a zip"), 0644))

	_, err := Unpack(context.Background(), archive, filepath.Join(dir, "out"))
	assert.True(t, errdefs.IsDataIntegrity(err))
}

func TestUnpackSizeLimit(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "build-v0.42.5.zip")
	writeZip(t, archive, map[string]string{
		"data/apps/HederaNode.jar": strings.Repeat("x", 600),
		"data/lib/dep.jar":         strings.Repeat("y", 600),
	})

	dest := filepath.Join(dir, "out")
	_, err := Unpack(context.Background(), archive, dest, WithMaxSize(1000))
	require.Error(t, err)
	assert.True(t, errdefs.IsDataIntegrity(err))
	assert.Contains(t, err.Error(), "limit is 1000")

	// Nothing is written when the declared size is already over the limit
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))

	n, err := Unpack(context.Background(), archive, dest, WithMaxSize(1200))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExtractFileLimit(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "one.zip")
	writeZip(t, archive, map[string]string{"data/apps/big.jar": strings.Repeat("z", 100)})

	r, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer r.Close()

	_, err = extractFile(r.File[0], filepath.Join(dir, "big.jar"), 50)
	assert.True(t, errdefs.IsDataIntegrity(err))

	n, err := extractFile(r.File[0], filepath.Join(dir, "big.jar"), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)
}
