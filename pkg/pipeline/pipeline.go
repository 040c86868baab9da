package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"

	"github.com/cuemby/solo/pkg/chart"
	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/events"
	"github.com/cuemby/solo/pkg/log"
	"github.com/cuemby/solo/pkg/staging"
	"github.com/cuemby/solo/pkg/types"
)

// ArtifactFetcher downloads and verifies a release archive
type ArtifactFetcher interface {
	Fetch(ctx context.Context, tag, destDir string) (*types.ReleaseArtifact, error)
}

// Stager prepares staging bundles and copies them into pods
type Stager interface {
	Prepare(ctx context.Context, req staging.PrepareRequest) (*types.StagingBundle, error)
	CopyAll(ctx context.Context, targets []types.PodTarget, bundle *types.StagingBundle) (map[string][]string, error)
	Remove(bundle *types.StagingBundle) error
}

// Charts manages the chart release that schedules the node pods
type Charts interface {
	Install(ctx context.Context, req chart.ApplyRequest) error
	Uninstall(ctx context.Context, namespace, release string) error
}

// Cluster is the subset of cluster queries the pipeline waits on
type Cluster interface {
	WaitForPods(ctx context.Context, namespace string, selectors []string, phase corev1.PodPhase, minCount int, timeout time.Duration) ([]corev1.Pod, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// RunStore persists run audit records
type RunStore interface {
	SaveRun(run *types.ProvisionRun) error
}

// Preflight checks external prerequisites before anything else runs
type Preflight func(ctx context.Context) error

// Pipeline turns node IDs, a release tag and a namespace into a set of
// keyed, configured node pods
type Pipeline struct {
	fetcher   ArtifactFetcher
	stager    Stager
	charts    Charts
	cluster   Cluster
	runs      RunStore
	preflight Preflight
	events    *events.Broker

	mu    sync.Mutex
	busy  map[string]bool
	clock func() time.Time

	logger zerolog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRunStore records every run
func WithRunStore(store RunStore) Option {
	return func(p *Pipeline) {
		p.runs = store
	}
}

// WithPreflight runs check before the first stage
func WithPreflight(check Preflight) Option {
	return func(p *Pipeline) {
		p.preflight = check
	}
}

// WithEvents publishes run and stage progress to broker
func WithEvents(broker *events.Broker) Option {
	return func(p *Pipeline) {
		p.events = broker
	}
}

// New creates a pipeline from its collaborators
func New(fetcher ArtifactFetcher, stager Stager, charts Charts, cluster Cluster, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher: fetcher,
		stager:  stager,
		charts:  charts,
		cluster: cluster,
		busy:    make(map[string]bool),
		clock:   time.Now,
		logger:  log.WithComponent("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Deploy runs the deployment stages for req in order and returns the run
// record. The run is returned even on failure; its Stage names where it
// stopped.
func (p *Pipeline) Deploy(ctx context.Context, req Request) (*types.ProvisionRun, error) {
	const op = "pipeline.Deploy"

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := p.acquire(op, req.Namespace); err != nil {
		return nil, err
	}
	defer p.release(req.Namespace)

	run := p.newRun(req.Namespace, req.Chart.Release, req.ReleaseTag, req.NodeIDs)
	state := &State{Request: req, Run: run}

	err := p.execute(ctx, run, p.deployStages(), state)
	if state.Bundle != nil {
		run.StagingDir = state.Bundle.Root
		if !req.KeepStaging {
			if rmErr := p.stager.Remove(state.Bundle); rmErr != nil {
				p.logger.Warn().Err(rmErr).Str("path", state.Bundle.Root).Msg("Failed to remove staging bundle")
			}
		}
	}
	p.finish(run, err)
	return run, err
}

// Teardown uninstalls the chart release and, if requested, deletes the
// namespace
func (p *Pipeline) Teardown(ctx context.Context, namespace, release string, deleteNamespace bool) (*types.ProvisionRun, error) {
	const op = "pipeline.Teardown"

	if namespace == "" {
		return nil, errdefs.Missing(op, "namespace")
	}
	if release == "" {
		return nil, errdefs.Missing(op, "chart release")
	}
	if err := p.acquire(op, namespace); err != nil {
		return nil, err
	}
	defer p.release(namespace)

	run := p.newRun(namespace, release, "", nil)
	stages := []Stage{
		{Name: StageUninstall, Run: func(ctx context.Context, _ *State) error {
			return p.charts.Uninstall(ctx, namespace, release)
		}},
	}
	if deleteNamespace {
		stages = append(stages, Stage{Name: StageDeleteNamespace, Run: func(ctx context.Context, _ *State) error {
			return p.cluster.DeleteNamespace(ctx, namespace)
		}})
	}

	err := p.execute(ctx, run, stages, &State{Run: run})
	p.finish(run, err)
	return run, err
}

// acquire marks namespace busy. Two runs never touch the same namespace at
// once within a process.
func (p *Pipeline) acquire(op, namespace string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.busy[namespace] {
		return errdefs.New(errdefs.KindInvalidArgument, op, "namespace %s has a run in progress", namespace)
	}
	p.busy[namespace] = true
	return nil
}

func (p *Pipeline) release(namespace string) {
	p.mu.Lock()
	delete(p.busy, namespace)
	p.mu.Unlock()
}

func (p *Pipeline) newRun(namespace, release, tag string, nodeIDs []string) *types.ProvisionRun {
	run := &types.ProvisionRun{
		ID:        uuid.New().String(),
		Namespace: namespace,
		Release:   release,
		Tag:       tag,
		NodeIDs:   nodeIDs,
		Status:    types.RunStatusRunning,
		StartedAt: p.clock().UTC(),
	}
	p.save(run)
	p.publish(run, events.EventRunStarted, "", "", 0)
	return run
}

func (p *Pipeline) finish(run *types.ProvisionRun, err error) {
	run.FinishedAt = p.clock().UTC()
	if err != nil {
		run.Status = types.RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = types.RunStatusSucceeded
	}
	p.save(run)

	if err != nil {
		p.publish(run, events.EventRunFailed, run.Stage, err.Error(), run.FinishedAt.Sub(run.StartedAt))
	} else {
		p.publish(run, events.EventRunSucceeded, "", "", run.FinishedAt.Sub(run.StartedAt))
	}

	logger := log.WithNamespace(run.Namespace).With().Str("run", run.ID).Logger()
	if err != nil {
		logger.Error().Err(err).Str("stage", run.Stage).Msg("Run failed")
		return
	}
	logger.Info().Dur("duration", run.FinishedAt.Sub(run.StartedAt)).Msg("Run succeeded")
}

// save records run; a store failure is logged and never fails the run
func (p *Pipeline) save(run *types.ProvisionRun) {
	if p.runs == nil {
		return
	}
	if err := p.runs.SaveRun(run); err != nil {
		p.logger.Warn().Err(err).Str("run", run.ID).Msg("Failed to record run")
	}
}

func (p *Pipeline) publish(run *types.ProvisionRun, eventType events.EventType, stage, message string, d time.Duration) {
	p.events.Publish(&events.Event{
		Type:      eventType,
		RunID:     run.ID,
		Namespace: run.Namespace,
		Stage:     stage,
		Message:   message,
		Duration:  d,
	})
}

// Describe summarizes run for CLI output
func Describe(run *types.ProvisionRun) string {
	if run == nil {
		return ""
	}
	return fmt.Sprintf("run %s in %s: %s (stage %s)", run.ID, run.Namespace, run.Status, run.Stage)
}
