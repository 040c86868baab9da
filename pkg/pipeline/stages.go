package pipeline

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/cuemby/solo/pkg/addressbook"
	"github.com/cuemby/solo/pkg/chart"
	"github.com/cuemby/solo/pkg/cluster"
	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/events"
	"github.com/cuemby/solo/pkg/log"
	"github.com/cuemby/solo/pkg/metrics"
	"github.com/cuemby/solo/pkg/release"
	"github.com/cuemby/solo/pkg/staging"
	"github.com/cuemby/solo/pkg/types"
)

// Stage names, in deployment order
const (
	StagePreflight       = "preflight"
	StageCheckRelease    = "check-release"
	StageFetch           = "fetch"
	StagePrepare         = "prepare"
	StageInstallChart    = "install-chart"
	StageWaitPods        = "wait-pods"
	StageCopy            = "copy"
	StageUninstall       = "uninstall-chart"
	StageDeleteNamespace = "delete-namespace"
)

// Stage is one step of a run
type Stage struct {
	Name string
	Run  func(ctx context.Context, state *State) error
}

// State carries stage outputs to later stages
type State struct {
	Request  Request
	Run      *types.ProvisionRun
	Artifact *types.ReleaseArtifact
	Bundle   *types.StagingBundle
	Pods     []corev1.Pod
	Copied   map[string][]string // node ID -> remote paths
}

// execute runs stages in order and stops at the first failure
func (p *Pipeline) execute(ctx context.Context, run *types.ProvisionRun, stages []Stage, state *State) error {
	logger := log.WithNamespace(run.Namespace).With().Str("run", run.ID).Logger()

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		run.Stage = stage.Name
		p.save(run)
		logger.Info().Str("stage", stage.Name).Msg("Stage started")
		p.publish(run, events.EventStageStarted, stage.Name, "", 0)

		timer := metrics.NewTimer()
		err := stage.Run(ctx, state)
		timer.ObserveDurationVec(metrics.StageDuration, stage.Name)

		if err != nil {
			metrics.StageFailures.WithLabelValues(stage.Name, string(errdefs.KindOf(err))).Inc()
			p.publish(run, events.EventStageFailed, stage.Name, err.Error(), timer.Duration())
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		logger.Info().Str("stage", stage.Name).Dur("duration", timer.Duration()).Msg("Stage completed")
		p.publish(run, events.EventStageCompleted, stage.Name, "", timer.Duration())
	}
	return nil
}

// deployStages returns the deployment stage list
func (p *Pipeline) deployStages() []Stage {
	var stages []Stage
	if p.preflight != nil {
		stages = append(stages, Stage{Name: StagePreflight, Run: func(ctx context.Context, _ *State) error {
			return p.preflight(ctx)
		}})
	}
	return append(stages,
		Stage{Name: StageCheckRelease, Run: checkRelease},
		Stage{Name: StageFetch, Run: p.fetch},
		Stage{Name: StagePrepare, Run: p.prepare},
		Stage{Name: StageInstallChart, Run: p.installChart},
		Stage{Name: StageWaitPods, Run: p.waitPods},
		Stage{Name: StageCopy, Run: p.copy},
	)
}

func checkRelease(_ context.Context, state *State) error {
	const op = "pipeline.checkRelease"

	req := state.Request
	if req.SupportedReleases == "" {
		return nil
	}

	tag, err := release.ParseTag(req.ReleaseTag)
	if err != nil {
		return err
	}
	ok, err := release.Satisfies(tag, req.SupportedReleases)
	if err != nil {
		return err
	}
	if !ok {
		return errdefs.New(errdefs.KindInvalidArgument, op, "release %s is not supported (want %s)", tag.Raw, req.SupportedReleases)
	}
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, state *State) error {
	artifact, err := p.fetcher.Fetch(ctx, state.Request.ReleaseTag, state.Request.CacheDir)
	if err != nil {
		return err
	}
	state.Artifact = artifact
	return nil
}

func (p *Pipeline) prepare(ctx context.Context, state *State) error {
	req := state.Request
	bundle, err := p.stager.Prepare(ctx, staging.PrepareRequest{
		Namespace:    req.Namespace,
		NodeIDs:      req.NodeIDs,
		ChainID:      req.ChainID,
		Artifact:     state.Artifact,
		TemplatesDir: req.TemplatesDir,
		AddressBook:  req.AddressBook,
	})
	if err != nil {
		return err
	}
	state.Bundle = bundle
	return nil
}

func (p *Pipeline) installChart(ctx context.Context, state *State) error {
	req := state.Request
	return p.charts.Install(ctx, chart.ApplyRequest{
		Namespace:   req.Namespace,
		ReleaseName: req.Chart.Release,
		ChartRef:    req.Chart.Ref,
		Version:     req.Chart.Version,
		Values:      req.Chart.Values,
		Timeout:     req.Chart.Timeout,
	})
}

func (p *Pipeline) waitPods(ctx context.Context, state *State) error {
	req := state.Request
	var selectors []string
	if req.PodSelector != "" {
		selectors = []string{req.PodSelector}
	}

	pods, err := p.cluster.WaitForPods(ctx, req.Namespace, selectors, corev1.PodRunning, len(req.NodeIDs), req.PodReadyTimeout)
	if err != nil {
		return err
	}
	state.Pods = pods
	return nil
}

func (p *Pipeline) copy(ctx context.Context, state *State) error {
	copied, err := p.stager.CopyAll(ctx, state.Request.Targets(), state.Bundle)
	if err != nil {
		return err
	}
	state.Copied = copied
	return nil
}

// ChartRequest selects the chart release of a deployment
type ChartRequest struct {
	Ref     string
	Release string
	Version string
	Values  types.ChartValues
	Timeout time.Duration
}

// Request is everything one deployment needs
type Request struct {
	Namespace         string
	NodeIDs           []string
	ReleaseTag        string
	ChainID           string
	CacheDir          string
	TemplatesDir      string
	AddressBook       addressbook.Options
	Chart             ChartRequest
	PodSelector       string
	Container         string
	PodReadyTimeout   time.Duration
	SupportedReleases string
	KeepStaging       bool
}

// Validate checks req before any stage runs
func (r Request) Validate() error {
	const op = "pipeline.Validate"

	if r.Namespace == "" {
		return errdefs.Missing(op, "namespace")
	}
	if len(r.NodeIDs) == 0 {
		return errdefs.Missing(op, "node ids")
	}
	if _, err := release.ParseTag(r.ReleaseTag); err != nil {
		return err
	}
	if r.ChainID == "" {
		return errdefs.Missing(op, "chain id")
	}
	if r.CacheDir == "" {
		return errdefs.Missing(op, "cache directory")
	}
	if r.Chart.Ref == "" {
		return errdefs.Missing(op, "chart reference")
	}
	if r.Chart.Release == "" {
		return errdefs.Missing(op, "chart release")
	}
	if r.PodReadyTimeout <= 0 {
		return errdefs.New(errdefs.KindInvalidArgument, op, "pod ready timeout must be positive")
	}
	return nil
}

// Targets returns the pod of every node, in node order
func (r Request) Targets() []types.PodTarget {
	targets := make([]types.PodTarget, 0, len(r.NodeIDs))
	for _, id := range r.NodeIDs {
		targets = append(targets, types.PodTarget{
			Namespace: r.Namespace,
			Pod:       cluster.PodName(id),
			Container: r.Container,
			NodeID:    id,
		})
	}
	return targets
}
