package release

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/types"
)

// DefaultAlgorithm is the digest published next to every release archive
const DefaultAlgorithm = types.DigestSHA384

// ChecksumError reports a digest mismatch. It is always wrapped in a
// DataIntegrity error.
type ChecksumError struct {
	Path      string
	Algorithm types.DigestAlgorithm
	Expected  string
	Computed  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s digest mismatch for %s: expected %s, computed %s", e.Algorithm, e.Path, e.Expected, e.Computed)
}

// NewHash returns a fresh hash for algorithm
func NewHash(algorithm types.DigestAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case types.DigestSHA384, "":
		return sha512.New384(), nil
	case types.DigestSHA256:
		return sha256.New(), nil
	case types.DigestSHA512:
		return sha512.New(), nil
	case types.DigestBLAKE3:
		return blake3.New(), nil
	default:
		return nil, errdefs.New(errdefs.KindInvalidArgument, "release.NewHash", "unsupported digest algorithm %q", algorithm)
	}
}

// Digest hashes everything read from r and returns the lowercase hex digest
func Digest(r io.Reader, algorithm types.DigestAlgorithm) (string, int64, error) {
	h, err := NewHash(algorithm)
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// HashFile streams the file at path through the hash
func HashFile(path string, algorithm types.DigestAlgorithm) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	digest, n, err := Digest(file, algorithm)
	if err != nil {
		return "", n, fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, n, nil
}

// ReadChecksumFile returns the first whitespace-delimited token of the
// checksum file, which is the published digest.
func ReadChecksumFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading checksum file %s: %w", path, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", errdefs.New(errdefs.KindDataIntegrity, "release.ReadChecksumFile", "checksum file %s is empty", path)
	}

	return strings.ToLower(fields[0]), nil
}

// Verify compares the digest of the file at path against expected
func Verify(path, expected string, algorithm types.DigestAlgorithm) (string, int64, error) {
	computed, size, err := HashFile(path, algorithm)
	if err != nil {
		return "", size, err
	}

	if !strings.EqualFold(computed, strings.TrimSpace(expected)) {
		if algorithm == "" {
			algorithm = DefaultAlgorithm
		}
		mismatch := &ChecksumError{
			Path:      path,
			Algorithm: algorithm,
			Expected:  strings.ToLower(strings.TrimSpace(expected)),
			Computed:  computed,
		}
		return computed, size, errdefs.Wrap(errdefs.KindDataIntegrity, "release.Verify", mismatch, "archive %s", path)
	}

	return computed, size, nil
}

// VerifyBytes checks data against expected without touching the filesystem
func VerifyBytes(data []byte, expected string, algorithm types.DigestAlgorithm) error {
	computed, _, err := Digest(bytes.NewReader(data), algorithm)
	if err != nil {
		return err
	}

	if !strings.EqualFold(computed, strings.TrimSpace(expected)) {
		if algorithm == "" {
			algorithm = DefaultAlgorithm
		}
		mismatch := &ChecksumError{
			Path:      "<memory>",
			Algorithm: algorithm,
			Expected:  strings.ToLower(strings.TrimSpace(expected)),
			Computed:  computed,
		}
		return errdefs.Wrap(errdefs.KindDataIntegrity, "release.VerifyBytes", mismatch, "%d bytes", len(data))
	}
	return nil
}
