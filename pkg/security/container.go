package security

import (
	"crypto"
	"crypto/x509"
	"fmt"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// DefaultPassphrase protects exported private key containers.
//
// It is a fixed, published value: the containers are protected only against
// casual reads, not against anyone with access to the files. Consensus
// nodes load the containers with the same constant.
const DefaultPassphrase = "password"

// ContainerExt is the file extension of PKCS#12 key containers
const ContainerExt = "pfx"

// encodePrivateContainer bundles key, leaf and the issuing chain
func encodePrivateContainer(key crypto.Signer, leaf *x509.Certificate, issuers []*x509.Certificate, passphrase string) ([]byte, error) {
	if leaf == nil {
		return nil, fmt.Errorf("private container requires a certificate")
	}
	data, err := pkcs12.Modern.Encode(key, leaf, issuers, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key container: %w", err)
	}
	return data, nil
}

// encodePublicContainer bundles only the certificate chain
func encodePublicContainer(chain []*x509.Certificate, passphrase string) ([]byte, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("public container requires at least one certificate")
	}
	data, err := pkcs12.Modern.EncodeTrustStore(chain, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key container: %w", err)
	}
	return data, nil
}

// decodePrivateContainer returns the key, leaf and issuing chain
func decodePrivateContainer(data []byte, passphrase string) (crypto.Signer, *x509.Certificate, []*x509.Certificate, error) {
	key, leaf, issuers, err := pkcs12.DecodeChain(data, passphrase)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode private key container: %w", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, nil, nil, fmt.Errorf("private key of type %T cannot sign", key)
	}
	return signer, leaf, issuers, nil
}

// decodePublicContainer returns the certificate chain
func decodePublicContainer(data []byte, passphrase string) ([]*x509.Certificate, error) {
	certs, err := pkcs12.DecodeTrustStore(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key container: %w", err)
	}
	return certs, nil
}
