package main

import (
	"context"
	"net/http"

	"github.com/cuemby/solo/pkg/chart"
	"github.com/cuemby/solo/pkg/cluster"
	"github.com/cuemby/solo/pkg/deps"
	"github.com/cuemby/solo/pkg/metrics"
	"github.com/cuemby/solo/pkg/pipeline"
	"github.com/cuemby/solo/pkg/release"
	"github.com/cuemby/solo/pkg/staging"
	"github.com/cuemby/solo/pkg/storage"
)

// openStore opens the state database. When a metrics server is running the
// state gauges are refreshed from it until the returned close func runs.
func openStore() (*storage.BoltStore, func(), error) {
	store, err := storage.NewBoltStore(cfg.StateDir)
	if err != nil {
		return nil, nil, err
	}

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.NewCollector(store, metrics.DefaultCollectInterval)
		collector.Start()
	}
	metrics.UpdateComponent("state", true, cfg.StateDir)

	return store, func() {
		if collector != nil {
			collector.Collect()
			collector.Stop()
		}
		_ = store.Close()
	}, nil
}

func newFetcher(store *storage.BoltStore, force bool) *release.Fetcher {
	opts := []release.FetcherOption{
		release.WithHTTPClient(&http.Client{Timeout: cfg.Timeouts.HTTP}),
		release.WithAlgorithm(cfg.DigestAlgorithm),
		release.WithForce(force),
	}
	if store != nil {
		opts = append(opts, release.WithRecorder(store))
	}
	return release.NewFetcher(cfg.ReleaseBaseURL, opts...)
}

func newCluster() (*cluster.Client, error) {
	return cluster.NewClient(cfg.Kubeconfig, cfg.KubeContext, cluster.WithRemoteTimeout(cfg.Timeouts.Remote))
}

func newChartManager(store *storage.BoltStore) *chart.Manager {
	return chart.NewManager(chart.NewHelm(cfg.Kubeconfig, cfg.KubeContext), chart.WithRecorder(store))
}

func newPipeline(store *storage.BoltStore, force bool, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	client, err := newCluster()
	if err != nil {
		return nil, err
	}

	coordinator, err := staging.NewCoordinator(cfg.StagingDir, client,
		staging.WithKeyAlgorithm(cfg.KeyAlgorithm),
		staging.WithParallelism(cfg.Parallelism),
	)
	if err != nil {
		return nil, err
	}

	opts = append([]pipeline.Option{
		pipeline.WithRunStore(store),
		pipeline.WithPreflight(preflight),
	}, opts...)
	return pipeline.New(newFetcher(store, force), coordinator, newChartManager(store), client, opts...), nil
}

// preflight fails when a required external tool is missing
func preflight(ctx context.Context) error {
	return deps.Require(deps.CheckTools(ctx, deps.NewExecRunner()))
}
