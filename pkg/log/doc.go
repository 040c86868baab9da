/*
Package log provides structured logging for solo using zerolog.

The package wraps a single global zerolog.Logger with component-specific
child loggers and helpers for the fields the provisioning pipeline logs most
often (node ID, namespace, chart release).

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
		Output:     os.Stderr,
	})

Component Loggers:

	fetchLog := log.WithComponent("release")
	fetchLog.Info().Str("tag", "v0.42.5").Msg("Downloading release archive")

	relLog := log.WithRelease("solo-e2e", "solo-deployment")
	relLog.Warn().Err(err).Msg("Rollback failed")

# Fields

The pipeline uses a small, fixed set of field names so logs can be queried
across components:

  - component: package emitting the log (release, security, staging, chart, cluster, pipeline)
  - tag: release tag
  - node_id: consensus node ID
  - namespace, release: chart release coordinates
  - pod, path: remote copy targets
  - stage: pipeline stage name

Logs go to stderr by default so stdout stays free for command output.
*/
package log
