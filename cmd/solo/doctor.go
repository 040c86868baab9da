package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/solo/pkg/cluster"
	"github.com/cuemby/solo/pkg/deps"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check external tools and endpoints",
	Long: `Check that helm, kubectl and kind are installed in supported versions,
that the Kubernetes API server is reachable and that the release server answers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		results := deps.CheckTools(ctx, deps.NewExecRunner())

		checkers := []deps.Checker{deps.NewHTTPChecker("release-server", cfg.ReleaseBaseURL)}
		client, err := cluster.NewClient(cfg.Kubeconfig, cfg.KubeContext)
		if err != nil {
			fmt.Printf("! kubeconfig: %v\n", err)
		} else if addr := client.APIAddress(); addr != "" {
			checkers = append(checkers, deps.NewTCPChecker("kube-apiserver", addr))
		}
		results = append(results, deps.CheckEndpoints(ctx, checkers...)...)

		for _, r := range results {
			mark := "✓"
			if !r.Healthy {
				mark = "✗"
				if !r.Required {
					mark = "!"
				}
			}
			line := fmt.Sprintf("%s %-16s %s", mark, r.Name, r.Message)
			if r.Version != "" {
				line += " (" + r.Version + ")"
			}
			fmt.Println(line)
		}

		return deps.Require(results)
	},
}
