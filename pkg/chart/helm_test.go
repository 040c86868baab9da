package chart

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/action"
	helmchart "helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	kubefake "helm.sh/helm/v3/pkg/kube/fake"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/storage"
	"helm.sh/helm/v3/pkg/storage/driver"

	"github.com/cuemby/solo/pkg/types"
)

// newMemoryHelm returns a Helm lifecycle backed by in-memory release storage
// and a kube client that only prints
func newMemoryHelm(t *testing.T) (*Helm, *storage.Storage) {
	t.Helper()

	mem := driver.NewMemory()
	store := storage.Init(mem)

	h := NewHelm("", "")
	h.configure = func(namespace string) (*action.Configuration, error) {
		mem.SetNamespace(namespace)
		return &action.Configuration{
			Releases:     store,
			KubeClient:   &kubefake.PrintingKubeClient{Out: io.Discard},
			Capabilities: chartutil.DefaultCapabilities,
			Log:          func(string, ...interface{}) {},
		}, nil
	}
	return h, store
}

func writeTestChart(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "solo-test")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0755))

	files := map[string]string{
		"Chart.yaml":  "apiVersion: v2\nname: solo-test\nversion: 0.1.0\n",
		"values.yaml": "replicas: 1\n",
		"templates/configmap.yaml": `apiVersion: v1
kind: ConfigMap
metadata:
  name: {{ .Release.Name }}-config
data:
  replicas: {{ .Values.replicas | quote }}
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestHelmLifecycle(t *testing.T) {
	h, store := newMemoryHelm(t)
	ctx := context.Background()

	req := ApplyRequest{
		Namespace:   "solo",
		ReleaseName: "solo-deployment",
		ChartRef:    writeTestChart(t),
		Values:      types.ChartValues{Set: []string{"replicas=3"}},
	}

	rel, err := h.Apply(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "solo-deployment", rel.Name)
	assert.Equal(t, "solo-test", rel.Chart)
	assert.Equal(t, "0.1.0", rel.Version)
	assert.Equal(t, 1, rel.Revision)
	assert.Equal(t, types.ChartStatusDeployed, rel.Status)

	last, err := store.Last("solo-deployment")
	require.NoError(t, err)
	assert.Contains(t, last.Manifest, `replicas: "3"`)

	releases, err := h.List(ctx, "solo")
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, "solo-deployment", releases[0].Name)

	req.Values = types.ChartValues{Map: map[string]string{"replicas": "5"}}
	rel, err = h.Upgrade(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, rel.Revision)

	require.NoError(t, h.Remove(ctx, "solo", "solo-deployment"))

	releases, err = h.List(ctx, "solo")
	require.NoError(t, err)
	assert.Empty(t, releases)
}

func TestHelmManagerInstallTwice(t *testing.T) {
	h, _ := newMemoryHelm(t)
	m := NewManager(h)
	ctx := context.Background()

	req := ApplyRequest{Namespace: "solo", ReleaseName: "solo-deployment", ChartRef: writeTestChart(t)}
	require.NoError(t, m.Install(ctx, req))
	require.NoError(t, m.Install(ctx, req))

	status, err := m.Status(ctx, "solo", "solo-deployment")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Revision)
}

func seedRelease(t *testing.T, store *storage.Storage, name string, status release.Status) {
	t.Helper()
	require.NoError(t, store.Create(&release.Release{
		Name:      name,
		Namespace: "solo",
		Version:   1,
		Info:      &release.Info{Status: status},
		Chart:     &helmchart.Chart{Metadata: &helmchart.Metadata{Name: "solo-test", Version: "0.1.0"}},
	}))
}

func TestHelmListSkipsPendingReleases(t *testing.T) {
	h, store := newMemoryHelm(t)
	ctx := context.Background()

	seedRelease(t, store, "solo-deployment", release.StatusPendingInstall)
	seedRelease(t, store, "solo-cluster-setup", release.StatusFailed)

	releases, err := h.List(ctx, "solo")
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, "solo-cluster-setup", releases[0].Name)
	assert.Equal(t, types.ChartStatusFailed, releases[0].Status)

	// A release left pending by an interrupted run does not count as installed
	m := NewManager(h)
	installed, err := m.IsInstalled(ctx, "solo", "solo-deployment")
	require.NoError(t, err)
	assert.False(t, installed)

	err = m.Install(ctx, ApplyRequest{Namespace: "solo", ReleaseName: "solo-deployment", ChartRef: writeTestChart(t)})
	assert.Error(t, err)
}

func TestHelmApplyMissingChart(t *testing.T) {
	h, _ := newMemoryHelm(t)

	_, err := h.Apply(context.Background(), ApplyRequest{
		Namespace:   "solo",
		ReleaseName: "solo-deployment",
		ChartRef:    filepath.Join(t.TempDir(), "missing"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to locate chart")
}

func TestSetValuesOrder(t *testing.T) {
	got := setValues(types.ChartValues{
		Set: []string{"a=1"},
		Map: map[string]string{"z": "26", "b": "2"},
	})
	assert.Equal(t, []string{"a=1", "b=2", "z=26"}, got)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, types.ChartStatusDeployed, statusOf(release.StatusDeployed))
	assert.Equal(t, types.ChartStatusFailed, statusOf(release.StatusFailed))
	assert.Equal(t, types.ChartStatusPending, statusOf(release.StatusPendingUpgrade))
	assert.Equal(t, types.ChartStatusUninstall, statusOf(release.StatusUninstalling))
	assert.Equal(t, types.ChartStatusAbsent, statusOf(release.StatusUninstalled))
	assert.Equal(t, types.ChartStatusUnknown, statusOf(release.StatusSuperseded))
}
