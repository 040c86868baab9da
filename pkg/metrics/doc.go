/*
Package metrics provides Prometheus metrics and health reporting for solo.

All collectors are registered with the default Prometheus registry at
package init. They cover the provisioning pipeline end to end:

	solo_stage_duration_seconds{stage}        pipeline stage latency
	solo_stage_failures_total{stage,kind}     failed stages by error kind
	solo_artifact_downloads_total{result}     release archive fetches
	solo_artifact_bytes_total                 bytes downloaded
	solo_keys_generated_total{role}           exported node identities
	solo_remote_files_copied_total            files copied into pods
	solo_chart_operations_total{op,result}    chart lifecycle operations
	solo_cached_artifacts                     artifacts in the state store
	solo_provision_runs{status}               recorded provisioning runs

The last two gauges are refreshed from the state store by a Collector.

# Timing

Timer measures an operation and observes the result into a histogram:

	timer := metrics.NewTimer()
	err := stage.Run(ctx, state)
	timer.ObserveDurationVec(metrics.StageDuration, stage.Name)

# Health

The health checker records the last check result of every external tool
(helm, kubectl, kind). SetCritical names the tools required for readiness.
NewServeMux exposes /metrics, /health and /ready; the CLI serves it when a
metrics address is configured.

	curl -s localhost:9090/ready
	{"status":"ready","components":{"helm":"ready","kubectl":"ready"},...}
*/
package metrics
