/*
Package deps checks the external tools and endpoints solo depends on.

The set of tools is closed: Helm, Kubectl and Kind. Each dependency has its
own check function that resolves the binary in PATH, runs its version
command under a timeout and compares the reported version against a semver
minimum:

	helm      helm version --short      >= 3.8.0   required
	kubectl   kubectl version --client  >= 1.25.0  required
	kind      kind version              >= 0.20.0  optional

Endpoint checks (HTTPChecker, TCPChecker) probe the release mirror and the
cluster API server.

CheckTools and CheckEndpoints feed every result into the metrics health
checker, so /health and /ready reflect the last doctor run. Require turns
failed required checks into a single ResourceNotFound error.
*/
package deps
