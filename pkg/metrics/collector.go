package metrics

import (
	"time"

	"github.com/cuemby/solo/pkg/types"
)

// StateSource is the part of the state store the collector reads
type StateSource interface {
	ListArtifacts() ([]*types.ReleaseArtifact, error)
	ListRuns() ([]*types.ProvisionRun, error)
}

// DefaultCollectInterval is how often Start refreshes the state gauges
const DefaultCollectInterval = 15 * time.Second

// Collector mirrors state store contents into gauges
type Collector struct {
	source   StateSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source StateSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect refreshes the gauges once
func (c *Collector) Collect() {
	c.collectArtifactMetrics()
	c.collectRunMetrics()
}

func (c *Collector) collectArtifactMetrics() {
	artifacts, err := c.source.ListArtifacts()
	if err != nil {
		return
	}
	CachedArtifacts.Set(float64(len(artifacts)))
}

func (c *Collector) collectRunMetrics() {
	runs, err := c.source.ListRuns()
	if err != nil {
		return
	}

	counts := map[types.RunStatus]int{
		types.RunStatusRunning:   0,
		types.RunStatusSucceeded: 0,
		types.RunStatusFailed:    0,
	}
	for _, run := range runs {
		counts[run.Status]++
	}

	for status, count := range counts {
		ProvisionRuns.WithLabelValues(string(status)).Set(float64(count))
	}
}
