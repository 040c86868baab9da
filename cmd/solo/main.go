package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/solo/pkg/config"
	"github.com/cuemby/solo/pkg/log"
	"github.com/cuemby/solo/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is resolved once per invocation before any command runs
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "solo",
	Short: "Solo - provision consensus test networks on Kubernetes",
	Long: `Solo fetches platform releases, generates node keys and configuration,
and stages them into the node pods scheduled by the solo-deployment chart.

Configuration is read from a YAML file (--config) and overridden by flags.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Solo version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a solo YAML config file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Emit JSON logs")
	flags.StringP("namespace", "n", "", "Target namespace")
	flags.StringSlice("node-ids", nil, "Comma separated node IDs (e.g. node0,node1,node2)")
	flags.String("release-tag", "", "Platform release tag (e.g. v0.42.5)")
	flags.String("cache-dir", "", "Release archive cache directory")
	flags.String("state-dir", "", "State database directory")
	flags.String("kubeconfig", "", "Path to kubeconfig")
	flags.String("kube-context", "", "Kubeconfig context")
	flags.String("metrics-addr", "", "Serve /metrics, /health and /ready on this address")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(chartCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(runsCmd)
}

// setup loads the configuration, applies flag overrides and initializes
// logging and the metrics server
func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	applyFlags(cmd, loaded)

	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	metrics.SetVersion(Version)

	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr)
	}
	return nil
}

// applyFlags overrides file values with explicitly set flags
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	str("log-level", &c.Log.Level)
	str("namespace", &c.Namespace)
	str("release-tag", &c.ReleaseTag)
	str("cache-dir", &c.CacheDir)
	str("state-dir", &c.StateDir)
	str("kubeconfig", &c.Kubeconfig)
	str("kube-context", &c.KubeContext)
	str("metrics-addr", &c.MetricsAddr)

	if flags.Changed("log-json") {
		c.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("node-ids") {
		c.NodeIDs, _ = flags.GetStringSlice("node-ids")
	}
}

func startMetricsServer(addr string) {
	logger := log.WithComponent("metrics")
	server := &http.Server{
		Addr:              addr,
		Handler:           metrics.NewServeMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
