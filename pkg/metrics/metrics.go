package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solo_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	StageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solo_stage_failures_total",
			Help: "Total number of failed pipeline stages by stage and error kind",
		},
		[]string{"stage", "kind"},
	)

	// Artifact metrics
	ArtifactDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solo_artifact_downloads_total",
			Help: "Release archive fetches by result (verified, cached, mismatch, not_found, error)",
		},
		[]string{"result"},
	)

	ArtifactBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solo_artifact_bytes_total",
			Help: "Total bytes of release archives downloaded",
		},
	)

	// Key metrics
	KeysGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solo_keys_generated_total",
			Help: "Total number of node identities generated by role",
		},
		[]string{"role"},
	)

	// Remote copy metrics
	RemoteFilesCopied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solo_remote_files_copied_total",
			Help: "Total number of files copied into pods",
		},
	)

	// Chart metrics
	ChartOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solo_chart_operations_total",
			Help: "Chart lifecycle operations by operation and result",
		},
		[]string{"op", "result"},
	)

	// State store metrics
	CachedArtifacts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "solo_cached_artifacts",
			Help: "Number of verified release archives recorded in the state store",
		},
	)

	ProvisionRuns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solo_provision_runs",
			Help: "Number of recorded provisioning runs by status",
		},
		[]string{"status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(StageFailures)
	prometheus.MustRegister(ArtifactDownloads)
	prometheus.MustRegister(ArtifactBytes)
	prometheus.MustRegister(KeysGenerated)
	prometheus.MustRegister(RemoteFilesCopied)
	prometheus.MustRegister(ChartOperations)
	prometheus.MustRegister(CachedArtifacts)
	prometheus.MustRegister(ProvisionRuns)
}

// Result returns the label value for an operation outcome
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
