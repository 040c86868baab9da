/*
Package types defines the data model shared by every stage of the solo
provisioning pipeline.

# Core Types

Release artifacts:
  - ReleaseTag: parsed vMAJOR.MINOR.PATCH[-pre] tag with its release family
  - ReleaseArtifact: archive and checksum on disk, immutable once verified
  - DigestAlgorithm: sha384 (default), sha256, sha512, blake3

Node identities:
  - NodeIdentity: key + certificate for a node and role (signing, gossip, tls)
  - KeyContainer: private/public file pair of an exported identity
  - KeyAlgorithm: rsa3072 (default) or ecdsa-p384

Configuration and staging:
  - AddressBookEntry: one address line of the rendered address book
  - StagingBundle: per-install directory laid out like the target pod
  - NodeFiles: staged key and TLS files of one node
  - PodTarget: namespace/pod/container receiving a node's files

Cluster state:
  - ChartDeployment: last observed chart release, re-queried before mutation
  - ChartValues: values files and --set overrides for a release
  - ProvisionRun: audit record of a pipeline invocation

# Ownership

A NodeIdentity is owned by the security package until exported. After
export the staging directory is the source of truth; identities are only
reused when explicitly reloaded from disk.

A StagingBundle is created fresh for every install invocation and is never
shared between concurrent installs.
*/
package types
