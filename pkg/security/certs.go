package security

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/types"
)

// VerifyChain checks that child was issued and signed by parent. Only the
// signature and issuer linkage are checked, not validity periods.
func VerifyChain(child, parent *x509.Certificate) error {
	const op = "security.VerifyChain"

	if child == nil {
		return errdefs.Missing(op, "certificate")
	}
	if parent == nil {
		return errdefs.Missing(op, "signing certificate")
	}

	if !bytes.Equal(child.RawIssuer, parent.RawSubject) {
		return errdefs.New(errdefs.KindDataIntegrity, op, "certificate %q was not issued by %q", child.Subject.CommonName, parent.Subject.CommonName)
	}

	if err := child.CheckSignatureFrom(parent); err != nil {
		return errdefs.Wrap(errdefs.KindDataIntegrity, op, err, "certificate %q signature does not verify against %q", child.Subject.CommonName, parent.Subject.CommonName)
	}

	return nil
}

// EncodeCertificatesPEM encodes certs as consecutive CERTIFICATE blocks
func EncodeCertificatesPEM(certs ...*x509.Certificate) []byte {
	var buf bytes.Buffer
	for _, cert := range certs {
		_ = pem.Encode(&buf, &pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		})
	}
	return buf.Bytes()
}

// EncodePrivateKeyPEM encodes key as a PKCS#8 PRIVATE KEY block
func EncodePrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}), nil
}

// DecodeCertificatesPEM parses every CERTIFICATE block in data
func DecodeCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificate found in PEM data")
	}
	return certs, nil
}

// DecodePrivateKeyPEM parses a PKCS#8 PRIVATE KEY block
func DecodePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("failed to decode private key PEM")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("private key of type %T cannot sign", key)
	}
	return signer, nil
}

// IdentitySummary is the printable description of a node identity
type IdentitySummary struct {
	NodeID      string
	Role        types.IdentityRole
	Subject     string
	Issuer      string
	Serial      string
	NotAfter    time.Time
	CA          bool
	KeyUsage    []string
	ExtKeyUsage []string
	Fingerprint string // SHA-256 of the DER certificate, hex
}

// Summarize describes identity's certificate. A nil identity or one without
// a certificate is a MissingArgument error.
func Summarize(identity *types.NodeIdentity) (IdentitySummary, error) {
	const op = "security.Summarize"

	if identity == nil || identity.Certificate == nil {
		return IdentitySummary{}, errdefs.Missing(op, "certificate")
	}

	cert := identity.Certificate
	sum := sha256.Sum256(cert.Raw)
	return IdentitySummary{
		NodeID:      identity.NodeID,
		Role:        identity.Role,
		Subject:     cert.Subject.CommonName,
		Issuer:      cert.Issuer.CommonName,
		Serial:      cert.SerialNumber.Text(16),
		NotAfter:    cert.NotAfter,
		CA:          cert.IsCA,
		KeyUsage:    keyUsageNames(cert.KeyUsage),
		ExtKeyUsage: extKeyUsageNames(cert.ExtKeyUsage),
		Fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

// String renders s on one line
func (s IdentitySummary) String() string {
	usage := strings.Join(append(append([]string{}, s.KeyUsage...), s.ExtKeyUsage...), ",")
	if s.CA {
		usage = "CA," + usage
	}
	fingerprint := s.Fingerprint
	if len(fingerprint) > 16 {
		fingerprint = fingerprint[:16]
	}
	return fmt.Sprintf("%s %s issuer=%s expires=%s usage=%s sha256=%s",
		s.Role, s.Subject, s.Issuer, s.NotAfter.UTC().Format("2006-01-02"), usage, fingerprint)
}

var keyUsageBits = []struct {
	bit  x509.KeyUsage
	name string
}{
	{x509.KeyUsageDigitalSignature, "DigitalSignature"},
	{x509.KeyUsageKeyEncipherment, "KeyEncipherment"},
	{x509.KeyUsageKeyAgreement, "KeyAgreement"},
	{x509.KeyUsageCertSign, "CertSign"},
	{x509.KeyUsageCRLSign, "CRLSign"},
}

func keyUsageNames(usage x509.KeyUsage) []string {
	var names []string
	for _, b := range keyUsageBits {
		if usage&b.bit != 0 {
			names = append(names, b.name)
		}
	}
	return names
}

func extKeyUsageNames(usages []x509.ExtKeyUsage) []string {
	var names []string
	for _, usage := range usages {
		switch usage {
		case x509.ExtKeyUsageServerAuth:
			names = append(names, "ServerAuth")
		case x509.ExtKeyUsageClientAuth:
			names = append(names, "ClientAuth")
		default:
			names = append(names, fmt.Sprintf("ExtKeyUsage(%d)", usage))
		}
	}
	return names
}
