/*
Package security generates the cryptographic identities of consensus nodes
and exports them in the file layout the platform expects.

Every node has three identities:

	signing   self-signed CA certificate        s-{private,public}-<node>.pfx
	gossip    leaf signed by the signing key     a-{private,public}-<node>.pfx
	tls       leaf signed by the signing key     hedera-<node>.key / .crt

The signing and gossip identities are written as PKCS#12 containers. The
private container holds the key, the leaf and its issuer; the public container
is a trust store carrying only certificates, root first. The TLS identity is
exported as a PKCS#8 PEM key plus a PEM certificate chain.

# Naming

File names depend only on role and node ID (ContainerName, TLSKeyName,
TLSCertName). Generating keys again for a node overwrites the previous
files in place, so re-running a deployment never accumulates stale keys.

# Integrity

Before any file is written, each issued certificate is verified against
its signer with VerifyChain. A chain that does not verify is a DataIntegrity
error and leaves the key directory untouched. Container pairs are written
public file first and then the private file, each through a temp file and
rename; if the private write fails the public file is removed again.

GossipIdentity and TLSIdentity accept a nil signer, in which case the
node's signing container is loaded from disk. A missing or undecodable
container is reported as DataIntegrity.

# Algorithms

Keys are RSA-3072 by default. WithAlgorithm(types.KeyAlgorithmECDSAP384)
switches to ECDSA on P-384.

The containers are protected with DefaultPassphrase, a fixed value that the
node software also uses to open them. It is not a secret.
*/
package security
