package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/cuemby/solo/pkg/chart"
	"github.com/cuemby/solo/pkg/config"
	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/events"
	"github.com/cuemby/solo/pkg/staging"
	"github.com/cuemby/solo/pkg/types"
)

// recorder collects the calls made by every fake, in order
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

type fakeFetcher struct {
	*recorder
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, tag, destDir string) (*types.ReleaseArtifact, error) {
	f.add("fetch " + tag)
	if f.err != nil {
		return nil, f.err
	}
	return &types.ReleaseArtifact{ArchivePath: destDir + "/build.zip", VerifiedAt: time.Now()}, nil
}

type fakeStager struct {
	*recorder
	prepared *staging.PrepareRequest
	targets  []types.PodTarget
	removed  bool
	copyErr  error
	block    chan struct{}
}

func (s *fakeStager) Prepare(ctx context.Context, req staging.PrepareRequest) (*types.StagingBundle, error) {
	s.add("prepare")
	s.prepared = &req
	if s.block != nil {
		<-s.block
	}
	return &types.StagingBundle{ID: "b1", Root: "/tmp/staging/b1"}, nil
}

func (s *fakeStager) CopyAll(ctx context.Context, targets []types.PodTarget, bundle *types.StagingBundle) (map[string][]string, error) {
	s.add("copy")
	s.targets = targets
	if s.copyErr != nil {
		return nil, s.copyErr
	}
	result := map[string][]string{}
	for _, t := range targets {
		result[t.NodeID] = []string{"/opt/x"}
	}
	return result, nil
}

func (s *fakeStager) Remove(bundle *types.StagingBundle) error {
	s.add("remove")
	s.removed = true
	return nil
}

type fakeCharts struct {
	*recorder
	installed *chart.ApplyRequest
	err       error
}

func (c *fakeCharts) Install(ctx context.Context, req chart.ApplyRequest) error {
	c.add("install " + req.ReleaseName)
	c.installed = &req
	return c.err
}

func (c *fakeCharts) Uninstall(ctx context.Context, namespace, release string) error {
	c.add("uninstall " + release)
	return c.err
}

type fakeCluster struct {
	*recorder
	err error
}

func (c *fakeCluster) WaitForPods(ctx context.Context, namespace string, selectors []string, phase corev1.PodPhase, minCount int, timeout time.Duration) ([]corev1.Pod, error) {
	c.add("wait")
	if c.err != nil {
		return nil, c.err
	}
	return make([]corev1.Pod, minCount), nil
}

func (c *fakeCluster) DeleteNamespace(ctx context.Context, namespace string) error {
	c.add("delete-namespace " + namespace)
	return nil
}

type fakeRunStore struct {
	mu   sync.Mutex
	runs map[string]types.ProvisionRun
}

func (s *fakeRunStore) SaveRun(run *types.ProvisionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

type fixture struct {
	rec     *recorder
	fetcher *fakeFetcher
	stager  *fakeStager
	charts  *fakeCharts
	cluster *fakeCluster
	store   *fakeRunStore
	p       *Pipeline
}

func newFixture(opts ...Option) *fixture {
	rec := &recorder{}
	f := &fixture{
		rec:     rec,
		fetcher: &fakeFetcher{recorder: rec},
		stager:  &fakeStager{recorder: rec},
		charts:  &fakeCharts{recorder: rec},
		cluster: &fakeCluster{recorder: rec},
		store:   &fakeRunStore{runs: map[string]types.ProvisionRun{}},
	}
	opts = append([]Option{WithRunStore(f.store)}, opts...)
	f.p = New(f.fetcher, f.stager, f.charts, f.cluster, opts...)
	return f
}

func testRequest() Request {
	cfg := config.Default()
	cfg.NodeIDs = []string{"node0", "node1"}
	cfg.ReleaseTag = "v0.42.5"
	cfg.CacheDir = "/tmp/cache"
	return RequestFromConfig(cfg)
}

func TestDeploy(t *testing.T) {
	f := newFixture()

	run, err := f.p.Deploy(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"fetch v0.42.5",
		"prepare",
		"install solo-deployment",
		"wait",
		"copy",
		"remove",
	}, f.rec.calls)

	assert.Equal(t, types.RunStatusSucceeded, run.Status)
	assert.Equal(t, StageCopy, run.Stage)
	assert.Equal(t, "/tmp/staging/b1", run.StagingDir)
	assert.False(t, run.FinishedAt.IsZero())

	require.NotNil(t, f.stager.prepared)
	assert.Equal(t, "298", f.stager.prepared.ChainID)
	assert.Equal(t, "solo", f.stager.prepared.AddressBook.Namespace)

	require.Len(t, f.stager.targets, 2)
	assert.Equal(t, "network-node1-0", f.stager.targets[1].Pod)
	assert.Equal(t, config.DefaultContainer, f.stager.targets[1].Container)

	assert.Equal(t, config.DefaultChartRef, f.charts.installed.ChartRef)

	saved := f.store.runs[run.ID]
	assert.Equal(t, types.RunStatusSucceeded, saved.Status)
}

func TestDeployStopsAtFirstFailure(t *testing.T) {
	f := newFixture()
	f.cluster.err = errdefs.New(errdefs.KindTimeout, "cluster.WaitForPods", "0 of 2 pods reached phase Running")

	run, err := f.p.Deploy(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errdefs.IsTimeout(err))
	assert.Contains(t, err.Error(), "stage wait-pods")

	assert.NotContains(t, f.rec.calls, "copy")
	assert.Equal(t, types.RunStatusFailed, run.Status)
	assert.Equal(t, StageWaitPods, run.Stage)
	assert.Contains(t, run.Error, "0 of 2 pods")
	assert.Equal(t, types.RunStatusFailed, f.store.runs[run.ID].Status)

	// Staging is still cleaned up
	assert.True(t, f.stager.removed)
}

func TestDeployFetchFailure(t *testing.T) {
	f := newFixture()
	f.fetcher.err = errdefs.New(errdefs.KindDataIntegrity, "release.Fetch", "checksum mismatch")

	run, err := f.p.Deploy(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errdefs.IsDataIntegrity(err))
	assert.Equal(t, []string{"fetch v0.42.5"}, f.rec.calls)
	assert.Equal(t, StageFetch, run.Stage)
	assert.Empty(t, run.StagingDir)
}

func TestDeployKeepStaging(t *testing.T) {
	f := newFixture()
	req := testRequest()
	req.KeepStaging = true

	_, err := f.p.Deploy(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, f.stager.removed)
}

func TestDeployPreflight(t *testing.T) {
	f := newFixture(WithPreflight(func(ctx context.Context) error {
		return errdefs.New(errdefs.KindResourceNotFound, "deps.Require", "helm not found")
	}))

	run, err := f.p.Deploy(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errdefs.IsNotFound(err))
	assert.Empty(t, f.rec.calls)
	assert.Equal(t, StagePreflight, run.Stage)
}

func TestDeployUnsupportedRelease(t *testing.T) {
	f := newFixture()
	req := testRequest()
	req.ReleaseTag = "v0.30.0"

	_, err := f.p.Deploy(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "not supported")
	assert.Empty(t, f.rec.calls)
}

func TestDeployValidation(t *testing.T) {
	f := newFixture()

	req := testRequest()
	req.NodeIDs = nil
	_, err := f.p.Deploy(context.Background(), req)
	assert.True(t, errdefs.IsMissingArgument(err))

	req = testRequest()
	req.ReleaseTag = "0.42"
	_, err = f.p.Deploy(context.Background(), req)
	assert.True(t, errdefs.IsInvalidArgument(err))

	assert.Empty(t, f.rec.calls)
	assert.Empty(t, f.store.runs)
}

func TestDeployRejectsConcurrentRunInNamespace(t *testing.T) {
	f := newFixture()
	f.stager.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.p.Deploy(context.Background(), testRequest())
		done <- err
	}()

	require.Eventually(t, func() bool {
		f.rec.mu.Lock()
		defer f.rec.mu.Unlock()
		for _, c := range f.rec.calls {
			if c == "prepare" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	_, err := f.p.Deploy(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run in progress")

	close(f.stager.block)
	require.NoError(t, <-done)

	// The namespace is free again
	_, err = f.p.Teardown(context.Background(), "solo", "solo-deployment", false)
	assert.NoError(t, err)
}

func TestDeployCancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := f.p.Deploy(ctx, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.RunStatusFailed, run.Status)
	assert.Empty(t, f.rec.calls)
}

func TestTeardown(t *testing.T) {
	f := newFixture()

	run, err := f.p.Teardown(context.Background(), "solo", "solo-deployment", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"uninstall solo-deployment", "delete-namespace solo"}, f.rec.calls)
	assert.Equal(t, types.RunStatusSucceeded, run.Status)

	_, err = f.p.Teardown(context.Background(), "", "solo-deployment", false)
	assert.True(t, errdefs.IsMissingArgument(err))
}

func TestTeardownFailure(t *testing.T) {
	f := newFixture()
	f.charts.err = errors.New("cluster unreachable")

	run, err := f.p.Teardown(context.Background(), "solo", "solo-deployment", true)
	require.Error(t, err)
	assert.Equal(t, []string{"uninstall solo-deployment"}, f.rec.calls)
	assert.Equal(t, StageUninstall, run.Stage)
}

func TestDescribe(t *testing.T) {
	run := &types.ProvisionRun{ID: "r1", Namespace: "solo", Status: types.RunStatusFailed, Stage: StageCopy}
	assert.Equal(t, "run r1 in solo: failed (stage copy)", Describe(run))
	assert.Empty(t, Describe(nil))
}

func TestDeployPublishesEvents(t *testing.T) {
	broker := events.NewBroker()
	sub := broker.Subscribe()
	broker.Start()

	f := newFixture(WithEvents(broker))
	f.cluster.err = errdefs.New(errdefs.KindTimeout, "cluster.WaitForPods", "timed out")

	run, err := f.p.Deploy(context.Background(), testRequest())
	require.Error(t, err)
	broker.Stop()

	var got []string
	for e := range sub {
		assert.Equal(t, run.ID, e.RunID)
		got = append(got, string(e.Type)+" "+e.Stage)
	}
	assert.Equal(t, []string{
		"run.started ",
		"stage.started check-release",
		"stage.completed check-release",
		"stage.started fetch",
		"stage.completed fetch",
		"stage.started prepare",
		"stage.completed prepare",
		"stage.started install-chart",
		"stage.completed install-chart",
		"stage.started wait-pods",
		"stage.failed wait-pods",
		"run.failed wait-pods",
	}, got)
}
