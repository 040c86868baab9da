package types

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"time"
)

// ReleaseTag identifies a platform build: vMAJOR.MINOR.PATCH[-prerelease]
type ReleaseTag struct {
	Raw        string // Tag exactly as supplied (e.g. "v0.42.5")
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string // Text after the first '-', empty for releases
}

// String returns the tag as supplied
func (t ReleaseTag) String() string {
	return t.Raw
}

// Family returns the release-family prefix (e.g. "v0.42"). It is used both
// in the download URL and as the cache subdirectory so different families
// never collide.
func (t ReleaseTag) Family() string {
	return fmt.Sprintf("v%d.%d", t.Major, t.Minor)
}

// DigestAlgorithm names the hash used to verify release archives
type DigestAlgorithm string

const (
	DigestSHA256 DigestAlgorithm = "sha256"
	DigestSHA384 DigestAlgorithm = "sha384"
	DigestSHA512 DigestAlgorithm = "sha512"
	DigestBLAKE3 DigestAlgorithm = "blake3"
)

// ReleaseArtifact is a downloaded and verified release archive.
// Immutable once VerifiedAt is set.
type ReleaseArtifact struct {
	Tag          ReleaseTag
	ArchivePath  string
	ChecksumPath string
	Digest       string // Lowercase hex
	Algorithm    DigestAlgorithm
	Size         int64
	VerifiedAt   time.Time
}

// IdentityRole is the purpose of a node identity
type IdentityRole string

const (
	RoleSigning IdentityRole = "signing"
	RoleGossip  IdentityRole = "gossip" // a.k.a. agreement key
	RoleTLS     IdentityRole = "tls"
)

// Prefix returns the file name prefix used for the role's exported files
func (r IdentityRole) Prefix() string {
	switch r {
	case RoleSigning:
		return "s"
	case RoleGossip:
		return "a"
	case RoleTLS:
		return "hedera"
	default:
		return string(r)
	}
}

// KeyAlgorithm selects the asymmetric key type for generated identities
type KeyAlgorithm string

const (
	KeyAlgorithmRSA3072   KeyAlgorithm = "rsa3072"
	KeyAlgorithmECDSAP384 KeyAlgorithm = "ecdsa-p384"
)

// NodeIdentity is a generated key and certificate for one node and role
type NodeIdentity struct {
	NodeID      string
	Role        IdentityRole
	PrivateKey  crypto.Signer
	Certificate *x509.Certificate
	Parent      *NodeIdentity // Signing identity for chained certs, nil if self-signed
}

// Chain returns the certificate chain ordered root first: [signing, leaf]
func (n *NodeIdentity) Chain() []*x509.Certificate {
	if n.Parent == nil {
		return []*x509.Certificate{n.Certificate}
	}
	return append(n.Parent.Chain(), n.Certificate)
}

// KeyContainer holds the on-disk paths of an exported identity.
// A private file never exists without its public companion.
type KeyContainer struct {
	PrivatePath string
	PublicPath  string
}

// AddressBookEntry is one node line of the network address book
type AddressBookEntry struct {
	Index        int
	NodeID       string
	Name         string
	Stake        uint64
	InternalHost string
	InternalPort int
	ExternalHost string
	ExternalPort int
}

// NodeFiles lists the staged files belonging to one node
type NodeFiles struct {
	NodeID  string
	Signing KeyContainer
	Gossip  KeyContainer
	TLSKey  string
	TLSCert string
}

// StagingBundle is the per-install directory mirroring the pod layout
type StagingBundle struct {
	ID            string
	Namespace     string
	Tag           ReleaseTag
	Root          string
	BuildDir      string // Unpacked release, contains data/apps and data/lib
	ArchivePath   string // Verified release archive copied into pods
	ConfigPath    string // Rendered address book (config.txt)
	KeysDir       string
	TemplateFiles []string // Paths relative to Root/templates
	Nodes         map[string]*NodeFiles
	CreatedAt     time.Time
}

// Node returns the staged files of nodeID, or nil
func (b *StagingBundle) Node(nodeID string) *NodeFiles {
	if b == nil || b.Nodes == nil {
		return nil
	}
	return b.Nodes[nodeID]
}

// ChartValues are value overrides passed to a chart release
type ChartValues struct {
	Files []string          `yaml:"files,omitempty"` // -f values files
	Set   []string          `yaml:"set,omitempty"`   // --set key=value pairs
	Map   map[string]string `yaml:"-"`               // Merged on top of Set, sorted by key
}

// ChartStatus is the live status of a chart release
type ChartStatus string

const (
	ChartStatusAbsent    ChartStatus = "absent"
	ChartStatusDeployed  ChartStatus = "deployed"
	ChartStatusFailed    ChartStatus = "failed"
	ChartStatusPending   ChartStatus = "pending"
	ChartStatusUninstall ChartStatus = "uninstalling"
	ChartStatusUnknown   ChartStatus = "unknown"
)

// ChartDeployment is the last observed state of a chart release.
// It is re-queried before every mutating operation, never cached.
type ChartDeployment struct {
	Namespace   string
	Chart       string
	ReleaseName string
	Version     string // Chart version
	Revision    int
	Status      ChartStatus
	Values      ChartValues
	UpdatedAt   time.Time
}

// RunStatus tracks a provisioning run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// ProvisionRun is the audit record of one pipeline invocation
type ProvisionRun struct {
	ID         string
	Namespace  string
	Release    string
	Tag        string
	NodeIDs    []string
	StagingDir string
	Status     RunStatus
	Stage      string // Last stage entered
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// PodTarget identifies the pod (and container) that receives a node's files
type PodTarget struct {
	Namespace string
	Pod       string
	Container string
	NodeID    string
}
