package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/solo/pkg/events"
	"github.com/cuemby/solo/pkg/pipeline"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a network: fetch, stage keys and config, install the chart, copy into pods",
	Long: `Run the full provisioning pipeline for the configured nodes.

Examples:
  # Deploy three nodes of a release
  solo deploy --node-ids node0,node1,node2 --release-tag v0.42.5

  # Deploy from a config file, keeping the staging directory
  solo deploy --config solo.yaml --keep-staging`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if cmd.Flags().Changed("keep-staging") {
			cfg.KeepStaging, _ = cmd.Flags().GetBool("keep-staging")
		}
		if err := cfg.RequireDeployment(); err != nil {
			return err
		}

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		broker, wait := progress()
		p, err := newPipeline(store, force, pipeline.WithEvents(broker))
		if err != nil {
			broker.Stop()
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		fmt.Printf("Deploying %d nodes of %s into %s...\n", len(cfg.NodeIDs), cfg.ReleaseTag, cfg.Namespace)
		run, err := p.Deploy(ctx, pipeline.RequestFromConfig(cfg))
		broker.Stop()
		wait()
		if err != nil {
			if run != nil {
				fmt.Println(pipeline.Describe(run))
			}
			return err
		}

		fmt.Printf("✓ Network deployed (%s)\n", run.ID)
		if cfg.KeepStaging {
			fmt.Printf("  Staging: %s\n", run.StagingDir)
		}
		return nil
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Uninstall the chart release and optionally delete the namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		deleteNamespace, _ := cmd.Flags().GetBool("delete-namespace")

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		p, err := newPipeline(store, false)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		run, err := p.Teardown(ctx, cfg.Namespace, cfg.Chart.Release, deleteNamespace)
		if err != nil {
			if run != nil {
				fmt.Println(pipeline.Describe(run))
			}
			return err
		}

		fmt.Printf("✓ Network in %s destroyed\n", cfg.Namespace)
		return nil
	},
}

func init() {
	deployCmd.Flags().Bool("force", false, "Download the release even if it is cached")
	deployCmd.Flags().Bool("keep-staging", false, "Keep the local staging directory")
	destroyCmd.Flags().Bool("delete-namespace", false, "Also delete the namespace")
}

// progress starts a broker whose stage events are printed. Stop the broker,
// then call wait to flush the output.
func progress() (*events.Broker, func()) {
	broker := events.NewBroker()
	sub := broker.Subscribe()
	broker.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range sub {
			switch e.Type {
			case events.EventStageStarted:
				fmt.Printf("  → %s\n", e.Stage)
			case events.EventStageCompleted:
				fmt.Printf("  ✓ %s (%s)\n", e.Stage, e.Duration.Round(time.Millisecond))
			case events.EventStageFailed:
				fmt.Printf("  ✗ %s: %s\n", e.Stage, e.Message)
			}
		}
	}()
	return broker, wg.Wait
}
