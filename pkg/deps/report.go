package deps

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/log"
	"github.com/cuemby/solo/pkg/metrics"
)

// CheckTools checks each dependency in order and records the outcome in
// the health checker
func CheckTools(ctx context.Context, runner Runner, deps ...Dependency) []Result {
	if len(deps) == 0 {
		deps = All()
	}

	logger := log.WithComponent("deps")

	var critical []string
	results := make([]Result, 0, len(deps))
	for _, d := range deps {
		result := d.Check(ctx, runner)
		results = append(results, result)

		metrics.UpdateComponent(result.Name, result.Healthy, result.Message)
		if d.Required() {
			critical = append(critical, string(d))
		}

		logger.Debug().
			Str("dependency", result.Name).
			Bool("healthy", result.Healthy).
			Str("version", result.Version).
			Dur("duration", result.Duration).
			Msg(result.Message)
	}
	metrics.SetCritical(critical...)

	return results
}

// CheckEndpoints runs each endpoint checker and records the outcome
func CheckEndpoints(ctx context.Context, checkers ...Checker) []Result {
	results := make([]Result, 0, len(checkers))
	for _, c := range checkers {
		result := c.Check(ctx)
		metrics.UpdateComponent(result.Name, result.Healthy, result.Message)
		results = append(results, result)
	}
	return results
}

// Require returns an error naming every failed required check
func Require(results []Result) error {
	var failed []string
	for _, r := range results {
		if r.Required && !r.Healthy {
			failed = append(failed, fmt.Sprintf("%s (%s)", r.Name, r.Message))
		}
	}
	if len(failed) > 0 {
		return errdefs.New(errdefs.KindResourceNotFound, "deps.Require", "missing dependencies: %s", strings.Join(failed, ", "))
	}
	return nil
}
