package chart

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/log"
	"github.com/cuemby/solo/pkg/metrics"
	"github.com/cuemby/solo/pkg/types"
)

// Manager installs, upgrades and removes chart releases idempotently.
// Lifecycle operations on the same namespace and release are serialized;
// installed state is re-queried on every call.
type Manager struct {
	lifecycle Lifecycle
	recorder  DeploymentRecorder

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	logger zerolog.Logger
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithRecorder records deployments after each successful operation
func WithRecorder(recorder DeploymentRecorder) ManagerOption {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// NewManager creates a manager driving lifecycle
func NewManager(lifecycle Lifecycle, opts ...ManagerOption) *Manager {
	m := &Manager{
		lifecycle: lifecycle,
		locks:     make(map[string]*sync.Mutex),
		logger:    log.WithComponent("chart"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lock returns the held mutex for namespace/release; callers unlock it
func (m *Manager) lock(namespace, release string) *sync.Mutex {
	key := namespace + "/" + release

	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l
}

// IsInstalled reports whether a release whose name starts with release is
// deployed in namespace
func (m *Manager) IsInstalled(ctx context.Context, namespace, release string) (bool, error) {
	const op = "chart.IsInstalled"

	if err := validateRelease(op, namespace, release); err != nil {
		return false, err
	}

	found, err := m.find(ctx, op, namespace, release)
	if err != nil {
		return false, err
	}
	return found != nil, nil
}

// Install ensures req's release is present. An already installed release is
// left untouched. If applying the chart fails, the release is uninstalled
// again on a best-effort basis and the apply error is returned.
func (m *Manager) Install(ctx context.Context, req ApplyRequest) (err error) {
	const op = "chart.Install"

	if err := validateApply(op, req); err != nil {
		return err
	}

	l := m.lock(req.Namespace, req.ReleaseName)
	defer l.Unlock()

	logger := log.WithRelease(req.Namespace, req.ReleaseName)
	defer func() { metrics.ChartOperations.WithLabelValues("install", metrics.Result(err)).Inc() }()

	existing, err := m.find(ctx, op, req.Namespace, req.ReleaseName)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Info().Str("existing", existing.Name).Msg("Chart already installed, skipping install")
		return nil
	}

	logger.Info().Str("chart", req.ChartRef).Str("version", req.Version).Msg("Installing chart")

	rel, applyErr := m.lifecycle.Apply(ctx, req)
	if applyErr != nil {
		// Best-effort rollback; its failure must not mask applyErr
		if rbErr := m.lifecycle.Remove(ctx, req.Namespace, req.ReleaseName); rbErr != nil {
			logger.Warn().Err(rbErr).Msg("Rollback of failed chart install failed")
		} else {
			logger.Info().Msg("Rolled back failed chart install")
		}
		return errdefs.Wrap(errdefs.KindRemoteOperation, op, applyErr, "installing %s into %s", req.ReleaseName, req.Namespace)
	}

	m.record(req, rel)
	logger.Info().Int("revision", rel.Revision).Msg("Chart installed")
	return nil
}

// Upgrade applies req to an installed release. Upgrading a release that is
// not installed is a ResourceNotFound error.
func (m *Manager) Upgrade(ctx context.Context, req ApplyRequest) (err error) {
	const op = "chart.Upgrade"

	if err := validateApply(op, req); err != nil {
		return err
	}

	l := m.lock(req.Namespace, req.ReleaseName)
	defer l.Unlock()

	defer func() { metrics.ChartOperations.WithLabelValues("upgrade", metrics.Result(err)).Inc() }()

	existing, err := m.find(ctx, op, req.Namespace, req.ReleaseName)
	if err != nil {
		return err
	}
	if existing == nil {
		return errdefs.New(errdefs.KindResourceNotFound, op, "release %s is not installed in %s", req.ReleaseName, req.Namespace)
	}

	rel, err := m.lifecycle.Upgrade(ctx, req)
	if err != nil {
		return errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "upgrading %s in %s", req.ReleaseName, req.Namespace)
	}

	m.record(req, rel)
	log.WithRelease(req.Namespace, req.ReleaseName).Info().Int("revision", rel.Revision).Msg("Chart upgraded")
	return nil
}

// Uninstall removes the release. A release that is not installed is a
// no-op success.
func (m *Manager) Uninstall(ctx context.Context, namespace, release string) (err error) {
	const op = "chart.Uninstall"

	if err := validateRelease(op, namespace, release); err != nil {
		return err
	}

	l := m.lock(namespace, release)
	defer l.Unlock()

	defer func() { metrics.ChartOperations.WithLabelValues("uninstall", metrics.Result(err)).Inc() }()

	logger := log.WithRelease(namespace, release)

	existing, err := m.find(ctx, op, namespace, release)
	if err != nil {
		return err
	}
	if existing == nil {
		logger.Info().Msg("Chart not installed, nothing to uninstall")
		return nil
	}

	if err := m.lifecycle.Remove(ctx, namespace, existing.Name); err != nil {
		return errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "uninstalling %s from %s", existing.Name, namespace)
	}

	if m.recorder != nil {
		if err := m.recorder.DeleteDeployment(namespace, release); err != nil {
			logger.Warn().Err(err).Msg("Failed to delete deployment record")
		}
	}

	logger.Info().Msg("Chart uninstalled")
	return nil
}

// Status returns the live state of release. A release that is not installed
// is reported with ChartStatusAbsent.
func (m *Manager) Status(ctx context.Context, namespace, release string) (*types.ChartDeployment, error) {
	const op = "chart.Status"

	if err := validateRelease(op, namespace, release); err != nil {
		return nil, err
	}

	found, err := m.find(ctx, op, namespace, release)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return &types.ChartDeployment{
			Namespace:   namespace,
			ReleaseName: release,
			Status:      types.ChartStatusAbsent,
		}, nil
	}
	return deploymentOf(found, types.ChartValues{}), nil
}

// find lists releases and returns the exact match, else the first prefix
// match, else nil
func (m *Manager) find(ctx context.Context, op, namespace, release string) (*Release, error) {
	releases, err := m.lifecycle.List(ctx, namespace)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindRemoteOperation, op, err, "listing releases in %s", namespace)
	}

	var prefixed *Release
	for i := range releases {
		r := &releases[i]
		if r.Name == release {
			return r, nil
		}
		if prefixed == nil && strings.HasPrefix(r.Name, release) {
			prefixed = r
		}
	}
	return prefixed, nil
}

func (m *Manager) record(req ApplyRequest, rel *Release) {
	if m.recorder == nil || rel == nil {
		return
	}
	if err := m.recorder.SaveDeployment(deploymentOf(rel, req.Values)); err != nil {
		m.logger.Warn().Err(err).Str("release", rel.Name).Msg("Failed to record deployment")
	}
}

func deploymentOf(rel *Release, values types.ChartValues) *types.ChartDeployment {
	updated := rel.Updated
	if updated.IsZero() {
		updated = time.Now()
	}
	return &types.ChartDeployment{
		Namespace:   rel.Namespace,
		Chart:       rel.Chart,
		ReleaseName: rel.Name,
		Version:     rel.Version,
		Revision:    rel.Revision,
		Status:      rel.Status,
		Values:      values,
		UpdatedAt:   updated,
	}
}

func validateRelease(op, namespace, release string) error {
	if namespace == "" {
		return errdefs.Missing(op, "namespace")
	}
	if release == "" {
		return errdefs.Missing(op, "release name")
	}
	return nil
}

func validateApply(op string, req ApplyRequest) error {
	if err := validateRelease(op, req.Namespace, req.ReleaseName); err != nil {
		return err
	}
	if req.ChartRef == "" {
		return errdefs.Missing(op, "chart reference")
	}
	return nil
}
