package storage

import (
	"github.com/cuemby/solo/pkg/types"
)

// Store defines the interface for local provisioning state.
// Records are informational: cached archives are re-verified before reuse
// and chart state is always re-queried from the cluster.
type Store interface {
	// Artifacts
	SaveArtifact(artifact *types.ReleaseArtifact) error
	GetArtifact(tag string) (*types.ReleaseArtifact, error)
	ListArtifacts() ([]*types.ReleaseArtifact, error)
	DeleteArtifact(tag string) error

	// Provisioning runs
	SaveRun(run *types.ProvisionRun) error
	GetRun(id string) (*types.ProvisionRun, error)
	ListRuns() ([]*types.ProvisionRun, error)
	ListRunsByNamespace(namespace string) ([]*types.ProvisionRun, error)
	DeleteRun(id string) error

	// Chart deployments as last observed after a lifecycle operation
	SaveDeployment(deployment *types.ChartDeployment) error
	GetDeployment(namespace, release string) (*types.ChartDeployment, error)
	ListDeployments() ([]*types.ChartDeployment, error)
	DeleteDeployment(namespace, release string) error

	// Utility
	Close() error
}
