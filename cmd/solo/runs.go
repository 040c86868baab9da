package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/solo/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded provisioning runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		var runs []*types.ProvisionRun
		if all {
			runs, err = store.ListRuns()
		} else {
			runs, err = store.ListRunsByNamespace(cfg.Namespace)
		}
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}

		fmt.Printf("%-36s  %-12s  %-10s  %-16s  %-20s  %s\n", "ID", "NAMESPACE", "STATUS", "STAGE", "STARTED", "ERROR")
		for _, run := range runs {
			fmt.Printf("%-36s  %-12s  %-10s  %-16s  %-20s  %s\n",
				run.ID, run.Namespace, run.Status, run.Stage,
				run.StartedAt.Local().Format(time.DateTime), run.Error)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().Bool("all", false, "Show runs of every namespace")
}
