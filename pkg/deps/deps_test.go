package deps

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/metrics"
)

type fakeRunner struct {
	paths   map[string]string
	outputs map[string]string
	errs    map[string]error
	calls   [][]string
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if p, ok := f.paths[name]; ok {
		return p, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (f *fakeRunner) Run(ctx context.Context, path string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{path}, args...))
	return f.outputs[path], f.errs[path]
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		paths: map[string]string{
			"helm":    "/usr/local/bin/helm",
			"kubectl": "/usr/local/bin/kubectl",
			"kind":    "/usr/local/bin/kind",
		},
		outputs: map[string]string{
			"/usr/local/bin/helm":    "v3.19.0+g3d8990f\n",
			"/usr/local/bin/kubectl": "Client Version: v1.34.1\nKustomize Version: v5.7.1\n",
			"/usr/local/bin/kind":    "kind v0.30.0 go1.24.6 linux/amd64\n",
		},
		errs: map[string]error{},
	}
}

func TestParse(t *testing.T) {
	d, ok := Parse("kubectl")
	assert.True(t, ok)
	assert.Equal(t, Kubectl, d)

	_, ok = Parse("docker")
	assert.False(t, ok)
}

func TestCheckHealthyTools(t *testing.T) {
	runner := newFakeRunner()

	tests := []struct {
		dep     Dependency
		version string
		args    []string
	}{
		{Helm, "v3.19.0", []string{"/usr/local/bin/helm", "version", "--short"}},
		{Kubectl, "v1.34.1", []string{"/usr/local/bin/kubectl", "version", "--client"}},
		{Kind, "v0.30.0", []string{"/usr/local/bin/kind", "version"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.dep), func(t *testing.T) {
			result := tt.dep.Check(context.Background(), runner)
			assert.True(t, result.Healthy, result.Message)
			assert.Equal(t, tt.version, result.Version)
			assert.Equal(t, tt.dep.Required(), result.Required)
			assert.Equal(t, tt.args, runner.calls[len(runner.calls)-1])
		})
	}
}

func TestCheckMissingBinary(t *testing.T) {
	runner := newFakeRunner()
	delete(runner.paths, "helm")

	result := Helm.Check(context.Background(), runner)
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "not found in PATH")
	assert.Empty(t, runner.calls)
}

func TestCheckTooOld(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["/usr/local/bin/helm"] = "v3.2.4+g0ad800e"

	result := Helm.Check(context.Background(), runner)
	assert.False(t, result.Healthy)
	assert.Equal(t, "v3.2.4", result.Version)
	assert.Contains(t, result.Message, ">= 3.8.0")
}

func TestCheckCommandFailure(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["/usr/local/bin/kubectl"] = errors.New("exit status 1")

	result := Kubectl.Check(context.Background(), runner)
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "exit status 1")
}

func TestCheckUnparseableVersion(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["/usr/local/bin/kind"] = "development build"

	result := Kind.Check(context.Background(), runner)
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "no version found")
}

func TestCheckUnknownDependency(t *testing.T) {
	result := Dependency("docker").Check(context.Background(), newFakeRunner())
	assert.False(t, result.Healthy)
}

func TestCheckToolsFeedsHealth(t *testing.T) {
	metrics.ResetComponents()
	t.Cleanup(metrics.ResetComponents)

	runner := newFakeRunner()
	delete(runner.paths, "kind")

	results := CheckTools(context.Background(), runner)
	require.Len(t, results, 3)

	// Kind is optional, so readiness holds
	assert.Equal(t, "ready", metrics.GetReadiness().Status)
	assert.Equal(t, "unhealthy", metrics.GetHealth().Status)
	assert.NoError(t, Require(results))

	delete(runner.paths, "kubectl")
	results = CheckTools(context.Background(), runner, Kubectl)
	err := Require(results)
	require.Error(t, err)
	assert.True(t, errdefs.IsNotFound(err))
	assert.Contains(t, err.Error(), "kubectl")
	assert.Equal(t, "not_ready", metrics.GetReadiness().Status)
}

func TestHTTPChecker(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := NewHTTPChecker("release-mirror", server.URL).Check(context.Background())
	assert.True(t, result.Healthy, result.Message)
	assert.Equal(t, http.MethodHead, method)
	assert.Equal(t, "release-mirror", result.Name)
	assert.Equal(t, CheckTypeHTTP, NewHTTPChecker("x", server.URL).Type())

	result = NewHTTPChecker("release-mirror", server.URL+"/missing").Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "404")

	result = NewHTTPChecker("release-mirror", server.URL+"/missing").WithStatusRange(200, 404).Check(context.Background())
	assert.True(t, result.Healthy)
}

func TestHTTPCheckerTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	result := NewHTTPChecker("slow", server.URL).WithTimeout(20 * time.Millisecond).Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "request failed")
}

func TestTCPChecker(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	result := NewTCPChecker("kube-apiserver", addr).Check(context.Background())
	assert.True(t, result.Healthy, result.Message)
	assert.Equal(t, CheckTypeTCP, NewTCPChecker("x", addr).Type())

	require.NoError(t, listener.Close())

	result = NewTCPChecker("kube-apiserver", addr).WithTimeout(time.Second).Check(context.Background())
	assert.False(t, result.Healthy)

	results := CheckEndpoints(context.Background(), NewTCPChecker("kube-apiserver", addr))
	require.Len(t, results, 1)
	assert.False(t, results[0].Healthy)
}
