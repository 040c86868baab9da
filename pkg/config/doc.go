/*
Package config resolves the configuration of a solo invocation.

Values come from Default, then an optional YAML file read by Load; the CLI
applies its flags last. Durations are written the way time.ParseDuration
reads them:

	namespace: solo
	nodeIds: [node0, node1, node2]
	releaseTag: v0.42.5
	chart:
	  ref: solo-charts/solo-deployment
	  release: solo-deployment
	timeouts:
	  podReady: 5m
*/
package config
