package security

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/log"
	"github.com/cuemby/solo/pkg/metrics"
	"github.com/cuemby/solo/pkg/types"
)

// KeyManager generates node identities and exports them into a key directory.
// File names depend only on role and node ID, so generating again for the
// same node overwrites the previous files.
type KeyManager struct {
	dir        string
	algorithm  types.KeyAlgorithm
	passphrase string
	logger     zerolog.Logger
}

// Option configures a KeyManager
type Option func(*KeyManager)

// WithAlgorithm selects the key algorithm (RSA-3072 by default)
func WithAlgorithm(algorithm types.KeyAlgorithm) Option {
	return func(m *KeyManager) {
		if algorithm != "" {
			m.algorithm = algorithm
		}
	}
}

// WithPassphrase overrides the container passphrase
func WithPassphrase(passphrase string) Option {
	return func(m *KeyManager) {
		if passphrase != "" {
			m.passphrase = passphrase
		}
	}
}

// NewKeyManager creates a key manager writing into dir, creating it if needed
func NewKeyManager(dir string, opts ...Option) (*KeyManager, error) {
	const op = "security.NewKeyManager"

	if dir == "" {
		return nil, errdefs.Missing(op, "key directory")
	}

	m := &KeyManager{
		dir:        dir,
		algorithm:  types.KeyAlgorithmRSA3072,
		passphrase: DefaultPassphrase,
		logger:     log.WithComponent("security"),
	}
	for _, opt := range opts {
		opt(m)
	}

	switch m.algorithm {
	case types.KeyAlgorithmRSA3072, types.KeyAlgorithmECDSAP384:
	default:
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "unsupported key algorithm %q", m.algorithm)
	}

	if err := m.ensureDir(); err != nil {
		return nil, err
	}

	return m, nil
}

// Dir returns the key directory
func (m *KeyManager) Dir() string {
	return m.dir
}

// ContainerName returns the deterministic file name of a key container,
// e.g. s-private-node0.pfx
func ContainerName(role types.IdentityRole, private bool, nodeID string) string {
	visibility := "public"
	if private {
		visibility = "private"
	}
	return fmt.Sprintf("%s-%s-%s.%s", role.Prefix(), visibility, nodeID, ContainerExt)
}

// TLSKeyName returns the file name of a node's TLS private key
func TLSKeyName(nodeID string) string {
	return fmt.Sprintf("%s-%s.key", types.RoleTLS.Prefix(), nodeID)
}

// TLSCertName returns the file name of a node's TLS certificate chain
func TLSCertName(nodeID string) string {
	return fmt.Sprintf("%s-%s.crt", types.RoleTLS.Prefix(), nodeID)
}

// Container returns the container paths of role for nodeID in this manager's directory
func (m *KeyManager) Container(role types.IdentityRole, nodeID string) types.KeyContainer {
	if role == types.RoleTLS {
		return types.KeyContainer{
			PrivatePath: filepath.Join(m.dir, TLSKeyName(nodeID)),
			PublicPath:  filepath.Join(m.dir, TLSCertName(nodeID)),
		}
	}
	return types.KeyContainer{
		PrivatePath: filepath.Join(m.dir, ContainerName(role, true, nodeID)),
		PublicPath:  filepath.Join(m.dir, ContainerName(role, false, nodeID)),
	}
}

// SigningIdentity generates a self-signed signing identity for nodeID and
// exports it
func (m *KeyManager) SigningIdentity(nodeID string) (*types.NodeIdentity, types.KeyContainer, error) {
	const op = "security.SigningIdentity"

	if nodeID == "" {
		return nil, types.KeyContainer{}, errdefs.Missing(op, "node id")
	}

	key, err := generateKey(m.algorithm)
	if err != nil {
		return nil, types.KeyContainer{}, fmt.Errorf("%s for %s: %w", op, nodeID, err)
	}

	cert, err := createSigningCertificate(nodeID, key)
	if err != nil {
		return nil, types.KeyContainer{}, fmt.Errorf("%s for %s: %w", op, nodeID, err)
	}

	// Self-verification before anything is written
	if err := VerifyChain(cert, cert); err != nil {
		return nil, types.KeyContainer{}, err
	}

	identity := &types.NodeIdentity{
		NodeID:      nodeID,
		Role:        types.RoleSigning,
		PrivateKey:  key,
		Certificate: cert,
	}

	container, err := m.exportContainers(identity)
	if err != nil {
		return nil, types.KeyContainer{}, err
	}

	metrics.KeysGenerated.WithLabelValues(string(types.RoleSigning)).Inc()
	m.logger.Debug().Str("node_id", nodeID).Str("path", container.PrivatePath).Msg("Generated signing identity")

	return identity, container, nil
}

// GossipIdentity generates the gossip (agreement) identity of nodeID,
// signed by signing. When signing is nil it is loaded from the key
// directory.
func (m *KeyManager) GossipIdentity(nodeID string, signing *types.NodeIdentity) (*types.NodeIdentity, types.KeyContainer, error) {
	identity, err := m.issue(types.RoleGossip, nodeID, signing)
	if err != nil {
		return nil, types.KeyContainer{}, err
	}

	container, err := m.exportContainers(identity)
	if err != nil {
		return nil, types.KeyContainer{}, err
	}

	metrics.KeysGenerated.WithLabelValues(string(types.RoleGossip)).Inc()
	m.logger.Debug().Str("node_id", nodeID).Str("path", container.PrivatePath).Msg("Generated gossip identity")

	return identity, container, nil
}

// TLSIdentity generates the TLS identity of nodeID, signed by signing, and
// exports it as a plain PEM key and certificate chain
func (m *KeyManager) TLSIdentity(nodeID string, signing *types.NodeIdentity) (*types.NodeIdentity, types.KeyContainer, error) {
	identity, err := m.issue(types.RoleTLS, nodeID, signing)
	if err != nil {
		return nil, types.KeyContainer{}, err
	}

	keyPEM, err := EncodePrivateKeyPEM(identity.PrivateKey)
	if err != nil {
		return nil, types.KeyContainer{}, fmt.Errorf("security.TLSIdentity for %s: %w", nodeID, err)
	}
	certPEM := EncodeCertificatesPEM(identity.Certificate, identity.Parent.Certificate)

	container := m.Container(types.RoleTLS, nodeID)
	if err := m.writePair(container, keyPEM, certPEM); err != nil {
		return nil, types.KeyContainer{}, err
	}

	metrics.KeysGenerated.WithLabelValues(string(types.RoleTLS)).Inc()
	m.logger.Debug().Str("node_id", nodeID).Str("path", container.PrivatePath).Msg("Generated TLS identity")

	return identity, container, nil
}

// LoadSigningIdentity reads a previously exported signing identity of nodeID.
// A missing, unreadable or corrupt container is a DataIntegrity error.
func (m *KeyManager) LoadSigningIdentity(nodeID string) (*types.NodeIdentity, error) {
	const op = "security.LoadSigningIdentity"

	if nodeID == "" {
		return nil, errdefs.Missing(op, "node id")
	}

	path := m.Container(types.RoleSigning, nodeID).PrivatePath
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindDataIntegrity, op, err, "reading signing container %s", path)
	}

	key, cert, _, err := decodePrivateContainer(data, m.passphrase)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindDataIntegrity, op, err, "signing container %s", path)
	}

	if !cert.IsCA {
		return nil, errdefs.New(errdefs.KindDataIntegrity, op, "signing container %s holds a non-CA certificate", path)
	}
	if err := VerifyChain(cert, cert); err != nil {
		return nil, errdefs.Wrap(errdefs.KindDataIntegrity, op, err, "signing container %s", path)
	}

	return &types.NodeIdentity{
		NodeID:      nodeID,
		Role:        types.RoleSigning,
		PrivateKey:  key,
		Certificate: cert,
	}, nil
}

// LoadPublicChain reads the certificate chain of a public container
func (m *KeyManager) LoadPublicChain(role types.IdentityRole, nodeID string) ([]*x509.Certificate, error) {
	const op = "security.LoadPublicChain"

	path := m.Container(role, nodeID).PublicPath
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindDataIntegrity, op, err, "reading %s", path)
	}

	if role == types.RoleTLS {
		certs, err := DecodeCertificatesPEM(data)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindDataIntegrity, op, err, "%s", path)
		}
		return certs, nil
	}

	certs, err := decodePublicContainer(data, m.passphrase)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindDataIntegrity, op, err, "%s", path)
	}
	return certs, nil
}

// issue creates and verifies a leaf identity signed by the node's signing identity
func (m *KeyManager) issue(role types.IdentityRole, nodeID string, signing *types.NodeIdentity) (*types.NodeIdentity, error) {
	op := fmt.Sprintf("security.%sIdentity", roleOpName(role))

	if nodeID == "" {
		return nil, errdefs.Missing(op, "node id")
	}

	if signing == nil {
		loaded, err := m.LoadSigningIdentity(nodeID)
		if err != nil {
			return nil, err
		}
		signing = loaded
	}

	if signing.Role != types.RoleSigning || signing.Certificate == nil || signing.PrivateKey == nil {
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "node %s: signer is not a complete signing identity", nodeID)
	}
	if signing.NodeID != nodeID {
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "node %s cannot be signed by the signing identity of %s", nodeID, signing.NodeID)
	}

	key, err := generateKey(m.algorithm)
	if err != nil {
		return nil, fmt.Errorf("%s for %s: %w", op, nodeID, err)
	}

	cert, err := issueCertificate(role, nodeID, key, signing)
	if err != nil {
		return nil, fmt.Errorf("%s for %s: %w", op, nodeID, err)
	}

	// Nothing is exported unless the certificate verifies against its signer
	if err := VerifyChain(cert, signing.Certificate); err != nil {
		return nil, err
	}

	return &types.NodeIdentity{
		NodeID:      nodeID,
		Role:        role,
		PrivateKey:  key,
		Certificate: cert,
		Parent:      signing,
	}, nil
}

// exportContainers encodes and writes the PKCS#12 pair of identity
func (m *KeyManager) exportContainers(identity *types.NodeIdentity) (types.KeyContainer, error) {
	chain := identity.Chain()

	// Issuers go in the private container alongside the leaf
	var issuers []*x509.Certificate
	if len(chain) > 1 {
		issuers = chain[:len(chain)-1]
	}

	private, err := encodePrivateContainer(identity.PrivateKey, identity.Certificate, issuers, m.passphrase)
	if err != nil {
		return types.KeyContainer{}, fmt.Errorf("exporting %s identity of %s: %w", identity.Role, identity.NodeID, err)
	}

	public, err := encodePublicContainer(chain, m.passphrase)
	if err != nil {
		return types.KeyContainer{}, fmt.Errorf("exporting %s identity of %s: %w", identity.Role, identity.NodeID, err)
	}

	container := m.Container(identity.Role, identity.NodeID)
	if err := m.writePair(container, private, public); err != nil {
		return types.KeyContainer{}, err
	}
	return container, nil
}

// writePair writes the public file first and then the private file. If the
// private write fails the public file is removed again, so a pair is either
// fully present or absent.
func (m *KeyManager) writePair(container types.KeyContainer, private, public []byte) error {
	if err := m.ensureDir(); err != nil {
		return err
	}

	if err := writeFileAtomic(container.PublicPath, public, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", container.PublicPath, err)
	}

	if err := writeFileAtomic(container.PrivatePath, private, 0600); err != nil {
		if rmErr := os.Remove(container.PublicPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			m.logger.Warn().Err(rmErr).Str("path", container.PublicPath).Msg("Failed to remove public container after failed export")
		}
		return fmt.Errorf("writing %s: %w", container.PrivatePath, err)
	}

	return nil
}

// ensureDir creates the key directory, rejecting paths that exist but are
// not directories
func (m *KeyManager) ensureDir() error {
	info, err := os.Stat(m.dir)
	switch {
	case err == nil && !info.IsDir():
		return errdefs.New(errdefs.KindInvalidArgument, "security.KeyManager", "key path %s is not a directory", m.dir)
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(m.dir, 0700); err != nil {
			return fmt.Errorf("failed to create key directory %s: %w", m.dir, err)
		}
		return nil
	default:
		return fmt.Errorf("failed to stat key directory %s: %w", m.dir, err)
	}
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func roleOpName(role types.IdentityRole) string {
	switch role {
	case types.RoleGossip:
		return "Gossip"
	case types.RoleTLS:
		return "TLS"
	default:
		return "Signing"
	}
}
