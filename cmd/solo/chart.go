package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/solo/pkg/chart"
	"github.com/cuemby/solo/pkg/types"
)

// Chart commands
var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Manage the solo-deployment chart release",
}

var chartInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the chart release if it is not installed yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withChartManager(func(m *chart.Manager) error {
			ctx, cancel := signalContext()
			defer cancel()

			if err := m.Install(ctx, applyRequest(cmd)); err != nil {
				return err
			}
			fmt.Printf("✓ Chart release %s installed in %s\n", cfg.Chart.Release, cfg.Namespace)
			return nil
		})
	},
}

var chartUpgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade the installed chart release",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withChartManager(func(m *chart.Manager) error {
			ctx, cancel := signalContext()
			defer cancel()

			if err := m.Upgrade(ctx, applyRequest(cmd)); err != nil {
				return err
			}
			fmt.Printf("✓ Chart release %s upgraded in %s\n", cfg.Chart.Release, cfg.Namespace)
			return nil
		})
	},
}

var chartUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the chart release",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withChartManager(func(m *chart.Manager) error {
			ctx, cancel := signalContext()
			defer cancel()

			if err := m.Uninstall(ctx, cfg.Namespace, cfg.Chart.Release); err != nil {
				return err
			}
			fmt.Printf("✓ Chart release %s uninstalled from %s\n", cfg.Chart.Release, cfg.Namespace)
			return nil
		})
	},
}

var chartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live status of the chart release",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withChartManager(func(m *chart.Manager) error {
			ctx, cancel := signalContext()
			defer cancel()

			status, err := m.Status(ctx, cfg.Namespace, cfg.Chart.Release)
			if err != nil {
				return err
			}

			fmt.Printf("Release:   %s\n", status.ReleaseName)
			fmt.Printf("Namespace: %s\n", status.Namespace)
			fmt.Printf("Status:    %s\n", status.Status)
			if status.Status != types.ChartStatusAbsent {
				fmt.Printf("Chart:     %s %s\n", status.Chart, status.Version)
				fmt.Printf("Revision:  %d\n", status.Revision)
				fmt.Printf("Updated:   %s\n", status.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{chartInstallCmd, chartUpgradeCmd} {
		cmd.Flags().String("chart", "", "Chart reference (defaults to chart.ref)")
		cmd.Flags().String("version", "", "Chart version (defaults to chart.version)")
		cmd.Flags().StringSliceP("values", "f", nil, "Values files")
		cmd.Flags().StringArray("set", nil, "Value overrides (key=value)")
		cmd.Flags().Bool("wait", false, "Wait for release resources to become ready")
	}

	chartCmd.AddCommand(chartInstallCmd)
	chartCmd.AddCommand(chartUpgradeCmd)
	chartCmd.AddCommand(chartUninstallCmd)
	chartCmd.AddCommand(chartStatusCmd)
}

func withChartManager(fn func(m *chart.Manager) error) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(newChartManager(store))
}

// applyRequest merges chart flags over the configured chart
func applyRequest(cmd *cobra.Command) chart.ApplyRequest {
	ref, _ := cmd.Flags().GetString("chart")
	version, _ := cmd.Flags().GetString("version")
	files, _ := cmd.Flags().GetStringSlice("values")
	set, _ := cmd.Flags().GetStringArray("set")
	wait, _ := cmd.Flags().GetBool("wait")

	if ref == "" {
		ref = cfg.Chart.Ref
	}
	if version == "" {
		version = cfg.Chart.Version
	}

	values := cfg.Chart.Values()
	values.Files = append(append([]string{}, values.Files...), files...)
	values.Set = append(append([]string{}, values.Set...), set...)

	return chart.ApplyRequest{
		Namespace:   cfg.Namespace,
		ReleaseName: cfg.Chart.Release,
		ChartRef:    ref,
		Version:     version,
		Values:      values,
		Wait:        wait,
		Timeout:     cfg.Timeouts.PodReady,
	}
}
