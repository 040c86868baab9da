/*
Package pipeline drives a deployment from a release tag to staged node pods.

A deployment is an explicit, ordered list of stages run one after another:

	preflight       external tools are present (optional)
	check-release   the tag satisfies the supported release constraint
	fetch           download and verify the release archive
	prepare         build the staging bundle (keys, config, templates)
	install-chart   install the chart release, idempotently
	wait-pods       wait until one pod per node is running
	copy            copy every node's files into its pod, in parallel

The first failing stage ends the run. Nothing is compensated except what the
chart manager does on a failed install. Each run is recorded in the state
store with the last stage it entered, so a failed run says where to resume.

Only one run per namespace executes at a time within a process.
*/
package pipeline
