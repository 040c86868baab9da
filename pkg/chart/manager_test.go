package chart

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/types"
)

// fakeLifecycle keeps releases in memory and can inject failures
type fakeLifecycle struct {
	mu        sync.Mutex
	releases  map[string]Release // keyed by namespace/name
	applyErr  error
	removeErr error
	listErr   error
	applies   int
	removes   int
	upgrades  int
	inflight  int
	maxFlight int
	delay     time.Duration
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{releases: make(map[string]Release)}
}

func (f *fakeLifecycle) enter() func() {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxFlight {
		f.maxFlight = f.inflight
	}
	f.mu.Unlock()
	time.Sleep(f.delay)
	return func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}
}

func (f *fakeLifecycle) Apply(ctx context.Context, req ApplyRequest) (*Release, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()

	f.applies++
	key := req.Namespace + "/" + req.ReleaseName
	if _, exists := f.releases[key]; exists {
		return nil, errors.New("cannot re-use a name that is still in use")
	}
	// A failed apply can still leave a partial release behind
	rel := Release{Name: req.ReleaseName, Namespace: req.Namespace, Chart: req.ChartRef, Version: req.Version, Revision: 1, Status: types.ChartStatusDeployed}
	if f.applyErr != nil {
		rel.Status = types.ChartStatusFailed
		f.releases[key] = rel
		return nil, f.applyErr
	}
	f.releases[key] = rel
	return &rel, nil
}

func (f *fakeLifecycle) Upgrade(ctx context.Context, req ApplyRequest) (*Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upgrades++
	key := req.Namespace + "/" + req.ReleaseName
	rel, ok := f.releases[key]
	if !ok {
		return nil, errors.New("has no deployed releases")
	}
	rel.Revision++
	rel.Version = req.Version
	f.releases[key] = rel
	return &rel, nil
}

func (f *fakeLifecycle) Remove(ctx context.Context, namespace, name string) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removes++
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.releases, namespace+"/"+name)
	return nil
}

func (f *fakeLifecycle) List(ctx context.Context, namespace string) ([]Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []Release
	for key, rel := range f.releases {
		if strings.HasPrefix(key, namespace+"/") {
			result = append(result, rel)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type fakeRecorder struct {
	saved   map[string]*types.ChartDeployment
	deleted []string
}

func (r *fakeRecorder) SaveDeployment(d *types.ChartDeployment) error {
	r.saved[d.Namespace+"/"+d.ReleaseName] = d
	return nil
}

func (r *fakeRecorder) DeleteDeployment(namespace, release string) error {
	r.deleted = append(r.deleted, namespace+"/"+release)
	return nil
}

func request() ApplyRequest {
	return ApplyRequest{
		Namespace:   "solo",
		ReleaseName: "solo-deployment",
		ChartRef:    "solo-charts/solo-deployment",
		Version:     "0.30.0",
	}
}

func TestInstallTwiceIsIdempotent(t *testing.T) {
	lifecycle := newFakeLifecycle()
	m := NewManager(lifecycle)
	ctx := context.Background()

	require.NoError(t, m.Install(ctx, request()))
	require.NoError(t, m.Install(ctx, request()))

	assert.Equal(t, 1, lifecycle.applies)

	installed, err := m.IsInstalled(ctx, "solo", "solo-deployment")
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestIsInstalledMatchesPrefix(t *testing.T) {
	lifecycle := newFakeLifecycle()
	lifecycle.releases["solo/solo-deployment-0"] = Release{Name: "solo-deployment-0", Namespace: "solo", Status: types.ChartStatusDeployed}
	m := NewManager(lifecycle)

	installed, err := m.IsInstalled(context.Background(), "solo", "solo-deployment")
	require.NoError(t, err)
	assert.True(t, installed)

	installed, err = m.IsInstalled(context.Background(), "other", "solo-deployment")
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestInstallFailureRollsBack(t *testing.T) {
	lifecycle := newFakeLifecycle()
	lifecycle.applyErr = errors.New("timed out waiting for the condition")
	m := NewManager(lifecycle)
	ctx := context.Background()

	err := m.Install(ctx, request())
	require.Error(t, err)
	assert.True(t, errdefs.IsRemoteOperation(err))
	assert.ErrorIs(t, err, lifecycle.applyErr)

	assert.Equal(t, 1, lifecycle.removes)
	installed, err := m.IsInstalled(ctx, "solo", "solo-deployment")
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestRollbackFailureDoesNotMaskApplyError(t *testing.T) {
	lifecycle := newFakeLifecycle()
	lifecycle.applyErr = errors.New("chart apply failed")
	lifecycle.removeErr = errors.New("uninstall failed")
	m := NewManager(lifecycle)

	err := m.Install(context.Background(), request())
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.applyErr)
	assert.NotErrorIs(t, err, lifecycle.removeErr)
	assert.Equal(t, 1, lifecycle.removes)
}

func TestUninstall(t *testing.T) {
	lifecycle := newFakeLifecycle()
	recorder := &fakeRecorder{saved: map[string]*types.ChartDeployment{}}
	m := NewManager(lifecycle, WithRecorder(recorder))
	ctx := context.Background()

	// Not installed is a no-op
	require.NoError(t, m.Uninstall(ctx, "solo", "solo-deployment"))
	assert.Equal(t, 0, lifecycle.removes)

	require.NoError(t, m.Install(ctx, request()))
	require.Contains(t, recorder.saved, "solo/solo-deployment")
	assert.Equal(t, types.ChartStatusDeployed, recorder.saved["solo/solo-deployment"].Status)

	require.NoError(t, m.Uninstall(ctx, "solo", "solo-deployment"))
	assert.Equal(t, 1, lifecycle.removes)
	assert.Equal(t, []string{"solo/solo-deployment"}, recorder.deleted)

	installed, err := m.IsInstalled(ctx, "solo", "solo-deployment")
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestUpgrade(t *testing.T) {
	lifecycle := newFakeLifecycle()
	m := NewManager(lifecycle)
	ctx := context.Background()

	err := m.Upgrade(ctx, request())
	require.Error(t, err)
	assert.True(t, errdefs.IsNotFound(err))
	assert.Equal(t, 0, lifecycle.upgrades)

	require.NoError(t, m.Install(ctx, request()))

	req := request()
	req.Version = "0.31.0"
	require.NoError(t, m.Upgrade(ctx, req))

	status, err := m.Status(ctx, "solo", "solo-deployment")
	require.NoError(t, err)
	assert.Equal(t, 2, status.Revision)
	assert.Equal(t, "0.31.0", status.Version)
}

func TestStatusAbsent(t *testing.T) {
	m := NewManager(newFakeLifecycle())

	status, err := m.Status(context.Background(), "solo", "solo-deployment")
	require.NoError(t, err)
	assert.Equal(t, types.ChartStatusAbsent, status.Status)
}

func TestListFailureIsRemoteOperation(t *testing.T) {
	lifecycle := newFakeLifecycle()
	lifecycle.listErr = errors.New("connection refused")
	m := NewManager(lifecycle)

	err := m.Install(context.Background(), request())
	require.Error(t, err)
	assert.True(t, errdefs.IsRemoteOperation(err))
	assert.Equal(t, 0, lifecycle.applies)
}

func TestValidationBeforeAnyCall(t *testing.T) {
	lifecycle := newFakeLifecycle()
	lifecycle.listErr = errors.New("must not be called")
	m := NewManager(lifecycle)
	ctx := context.Background()

	req := request()
	req.ChartRef = ""
	assert.True(t, errdefs.IsMissingArgument(m.Install(ctx, req)))

	req = request()
	req.Namespace = ""
	assert.True(t, errdefs.IsMissingArgument(m.Upgrade(ctx, req)))

	assert.True(t, errdefs.IsMissingArgument(m.Uninstall(ctx, "solo", "")))

	_, err := m.IsInstalled(ctx, "", "x")
	assert.True(t, errdefs.IsMissingArgument(err))
}

func TestOperationsOnSameReleaseAreSerialized(t *testing.T) {
	lifecycle := newFakeLifecycle()
	lifecycle.delay = 10 * time.Millisecond
	m := NewManager(lifecycle)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = m.Install(ctx, request())
			} else {
				_ = m.Uninstall(ctx, "solo", "solo-deployment")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, lifecycle.maxFlight)
}
