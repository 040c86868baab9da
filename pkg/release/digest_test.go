package release

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/types"
)

func sha384Hex(data []byte) string {
	sum := sha512.Sum384(data)
	return hex.EncodeToString(sum[:])
}

func TestVerifyBytesDetectsEveryMutation(t *testing.T) {
	data := []byte("HederaNode.jar contents, not really a jar")
	digest := sha384Hex(data)

	require.NoError(t, VerifyBytes(data, digest, types.DigestSHA384))

	for i := range data {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0x01

		err := VerifyBytes(mutated, digest, types.DigestSHA384)
		require.Error(t, err, "mutation at byte %d not detected", i)
		assert.True(t, errdefs.IsDataIntegrity(err))
	}
}

func TestVerifyFileMismatchCarriesDigests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build-v0.42.5.zip")
	require.NoError(t, os.WriteFile(path, []byte("archive"), 0644))

	wrong := sha384Hex([]byte("other archive"))
	_, _, err := Verify(path, wrong, types.DigestSHA384)
	require.Error(t, err)
	assert.True(t, errdefs.IsDataIntegrity(err))

	var mismatch *ChecksumError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, wrong, mismatch.Expected)
	assert.Equal(t, sha384Hex([]byte("archive")), mismatch.Computed)
	assert.Equal(t, path, mismatch.Path)
}

func TestVerifyIsCaseInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	upper := strings.ToUpper(sha384Hex([]byte("abc")))
	_, size, err := Verify(path, " "+upper+"\n", types.DigestSHA384)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestNewHashAlgorithms(t *testing.T) {
	sizes := map[types.DigestAlgorithm]int{
		types.DigestSHA256: 32,
		types.DigestSHA384: 48,
		types.DigestSHA512: 64,
		types.DigestBLAKE3: 32,
		"":                 48,
	}

	for alg, size := range sizes {
		h, err := NewHash(alg)
		require.NoError(t, err, alg)
		assert.Equal(t, size, h.Size(), alg)
	}

	_, err := NewHash("md5")
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestReadChecksumFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "build.sha384")
	require.NoError(t, os.WriteFile(path, []byte("ABCDEF0123  build-v0.42.5.zip\n"), 0644))

	digest, err := ReadChecksumFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123", digest)

	empty := filepath.Join(dir, "empty.sha384")
	require.NoError(t, os.WriteFile(empty, []byte(" \n"), 0644))

	_, err = ReadChecksumFile(empty)
	assert.True(t, errdefs.IsDataIntegrity(err))
}
