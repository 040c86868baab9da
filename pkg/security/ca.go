package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/cuemby/solo/pkg/types"
)

const (
	// Node signing certificate validity: 10 years
	signingCertValidity = 10 * 365 * 24 * time.Hour
	// Gossip and TLS certificates live as long as the signing certificate
	leafCertValidity = signingCertValidity
	// RSA modulus for node identities
	rsaKeySize = 3072
	// Certificates are backdated to tolerate clock skew between the
	// workstation and the pods
	clockSkew = 5 * time.Minute
)

// generateKey creates a fresh keypair for algorithm
func generateKey(algorithm types.KeyAlgorithm) (crypto.Signer, error) {
	switch algorithm {
	case types.KeyAlgorithmRSA3072, "":
		key, err := rsa.GenerateKey(rand.Reader, rsaKeySize)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		return key, nil
	case types.KeyAlgorithmECDSAP384:
		key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", algorithm)
	}
}

// newSerial returns a random 128-bit certificate serial number
func newSerial() (*big.Int, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serialNumber, nil
}

// subjectKeyID hashes the marshalled public key (RFC 5280 method 1)
func subjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	sum := sha1.Sum(der)
	return sum[:], nil
}

// subjectName builds the distinguished name used for a node certificate
func subjectName(role types.IdentityRole, nodeID string) pkix.Name {
	return pkix.Name{
		Organization:       []string{"Hashgraph"},
		OrganizationalUnit: []string{"Hedera"},
		CommonName:         fmt.Sprintf("%s-%s", role.Prefix(), nodeID),
	}
}

// createSigningCertificate self-signs a CA certificate for the node's
// signing key
func createSigningCertificate(nodeID string, key crypto.Signer) (*x509.Certificate, error) {
	serialNumber, err := newSerial()
	if err != nil {
		return nil, err
	}

	skid, err := subjectKeyID(key.Public())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               subjectName(types.RoleSigning, nodeID),
		NotBefore:             now.Add(-clockSkew),
		NotAfter:              now.Add(signingCertValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		IsCA:                  true,
		BasicConstraintsValid: true,
		MaxPathLen:            1,
		SubjectKeyId:          skid,
	}

	// Create self-signed certificate
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to create signing certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing certificate: %w", err)
	}

	return cert, nil
}

// issueCertificate signs a leaf certificate for role with the node's
// signing identity
func issueCertificate(role types.IdentityRole, nodeID string, key crypto.Signer, signer *types.NodeIdentity) (*x509.Certificate, error) {
	serialNumber, err := newSerial()
	if err != nil {
		return nil, err
	}

	skid, err := subjectKeyID(key.Public())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:   serialNumber,
		Subject:        subjectName(role, nodeID),
		NotBefore:      now.Add(-clockSkew),
		NotAfter:       now.Add(leafCertValidity),
		KeyUsage:       x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		SubjectKeyId:   skid,
		AuthorityKeyId: signer.Certificate.SubjectKeyId,
	}

	if role == types.RoleTLS {
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
		template.DNSNames = []string{nodeID}
	}

	// Do not outlive the signer
	if template.NotAfter.After(signer.Certificate.NotAfter) {
		template.NotAfter = signer.Certificate.NotAfter
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, signer.Certificate, key.Public(), signer.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s certificate: %w", role, err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s certificate: %w", role, err)
	}

	return cert, nil
}
