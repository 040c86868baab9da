package chart

import (
	"context"
	"time"

	"github.com/cuemby/solo/pkg/types"
)

// Release is a chart release as reported by the chart primitive
type Release struct {
	Name      string
	Namespace string
	Chart     string
	Version   string
	Revision  int
	Status    types.ChartStatus
	Updated   time.Time
}

// ApplyRequest describes a chart install or upgrade
type ApplyRequest struct {
	Namespace   string
	ReleaseName string
	ChartRef    string // Local path, repo/name or oci:// reference
	Version     string // Chart version, empty for latest
	Values      types.ChartValues
	Wait        bool
	Timeout     time.Duration
}

// Lifecycle is the chart primitive the manager drives
type Lifecycle interface {
	Apply(ctx context.Context, req ApplyRequest) (*Release, error)
	Upgrade(ctx context.Context, req ApplyRequest) (*Release, error)
	Remove(ctx context.Context, namespace, releaseName string) error
	List(ctx context.Context, namespace string) ([]Release, error)
}

// DeploymentRecorder keeps the last observed deployment of each release
type DeploymentRecorder interface {
	SaveDeployment(deployment *types.ChartDeployment) error
	DeleteDeployment(namespace, release string) error
}
