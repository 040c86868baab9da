package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleep := 20 * time.Millisecond
	time.Sleep(sleep)

	first := timer.Duration()
	if first < sleep {
		t.Errorf("Timer.Duration() = %v, want >= %v", first, sleep)
	}

	time.Sleep(5 * time.Millisecond)
	if second := timer.Duration(); second <= first {
		t.Errorf("Duration should be increasing: first=%v, second=%v", first, second)
	}
}

func TestTimerObserveStage(t *testing.T) {
	stages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "test_stage_duration_seconds",
			Help: "Test stage histogram",
		},
		[]string{"stage"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(stages, "fetch")
	timer.ObserveDurationVec(stages, "keys")

	assert.Equal(t, 2, testutil.CollectAndCount(stages))
}

func TestTimerObserveHistogram(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_duration_seconds",
		Help: "Test histogram",
	})

	NewTimer().ObserveDuration(h)

	assert.Equal(t, 1, testutil.CollectAndCount(h))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "success", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}
