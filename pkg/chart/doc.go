/*
Package chart manages the helm releases that schedule consensus node pods.

Manager wraps a Lifecycle (the raw apply/upgrade/remove/list primitive) and
adds the rules the pipeline relies on:

  - Install is idempotent. If a release with a matching name is already
    installed the call succeeds without touching the cluster.
  - A failed install is rolled back with a best-effort remove. The original
    error is returned; a failing rollback is only logged.
  - Operations on the same namespace and release are serialized.
  - Installed state is listed from the cluster on every call, never cached.

Helm implements Lifecycle on top of the helm v3 SDK, using the same
kubeconfig and context resolution as the helm CLI.

	h := chart.NewHelm(kubeconfig, kubeContext)
	m := chart.NewManager(h, chart.WithRecorder(store))
	err := m.Install(ctx, chart.ApplyRequest{
		Namespace:   "solo",
		ReleaseName: "solo-deployment",
		ChartRef:    "solo-charts/solo-deployment",
	})
*/
package chart
