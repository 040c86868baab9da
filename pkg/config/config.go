package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/release"
	"github.com/cuemby/solo/pkg/types"
)

// Defaults
const (
	DefaultNamespace       = "solo"
	DefaultChainID         = "298"
	DefaultChartRef        = "solo-charts/solo-deployment"
	DefaultChartRelease    = "solo-deployment"
	DefaultPodSelector     = "solo.hedera.com/type=network-node"
	DefaultContainer       = "root-container"
	DefaultParallelism     = 4
	DefaultLogLevel        = "info"
	DefaultHTTPTimeout     = 10 * time.Minute
	DefaultPodReadyTimeout = 5 * time.Minute
	DefaultRemoteTimeout   = 2 * time.Minute

	// DefaultSupportedReleases gates which platform releases can be deployed
	DefaultSupportedReleases = ">= 0.42.0-0"
)

// Config is the resolved configuration of one solo invocation
type Config struct {
	Namespace         string                `yaml:"namespace"`
	NodeIDs           []string              `yaml:"nodeIds"`
	ReleaseTag        string                `yaml:"releaseTag"`
	ChainID           string                `yaml:"chainId"`
	AppName           string                `yaml:"appName,omitempty"`
	CacheDir          string                `yaml:"cacheDir"`
	StateDir          string                `yaml:"stateDir"`
	StagingDir        string                `yaml:"stagingDir"`
	TemplatesDir      string                `yaml:"templatesDir,omitempty"`
	KeepStaging       bool                  `yaml:"keepStaging,omitempty"`
	ReleaseBaseURL    string                `yaml:"releaseBaseURL"`
	DigestAlgorithm   types.DigestAlgorithm `yaml:"digestAlgorithm"`
	KeyAlgorithm      types.KeyAlgorithm    `yaml:"keyAlgorithm"`
	Chart             ChartConfig           `yaml:"chart"`
	Kubeconfig        string                `yaml:"kubeconfig,omitempty"`
	KubeContext       string                `yaml:"kubeContext,omitempty"`
	PodSelector       string                `yaml:"podSelector"`
	Container         string                `yaml:"container"`
	Timeouts          Timeouts              `yaml:"timeouts"`
	Parallelism       int                   `yaml:"parallelism"`
	SupportedReleases string                `yaml:"supportedReleases"`
	Log               LogConfig             `yaml:"log"`
	MetricsAddr       string                `yaml:"metricsAddr,omitempty"`
}

// ChartConfig selects the chart that schedules the node pods
type ChartConfig struct {
	Ref        string   `yaml:"ref"`
	Release    string   `yaml:"release"`
	Version    string   `yaml:"version,omitempty"`
	ValueFiles []string `yaml:"valueFiles,omitempty"`
	Set        []string `yaml:"set,omitempty"`
}

// Values returns the chart value overrides
func (c ChartConfig) Values() types.ChartValues {
	return types.ChartValues{Files: c.ValueFiles, Set: c.Set}
}

// Timeouts bound every remote interaction
type Timeouts struct {
	HTTP     time.Duration `yaml:"http"`
	PodReady time.Duration `yaml:"podReady"`
	Remote   time.Duration `yaml:"remote"`
}

// LogConfig configures pkg/log
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration with every default applied. Directories
// live under ~/.solo.
func Default() *Config {
	home := HomeDir()
	return &Config{
		Namespace:       DefaultNamespace,
		ChainID:         DefaultChainID,
		CacheDir:        filepath.Join(home, "cache"),
		StateDir:        filepath.Join(home, "state"),
		StagingDir:      filepath.Join(home, "staging"),
		ReleaseBaseURL:  release.DefaultBaseURL,
		DigestAlgorithm: release.DefaultAlgorithm,
		KeyAlgorithm:    types.KeyAlgorithmRSA3072,
		Chart: ChartConfig{
			Ref:     DefaultChartRef,
			Release: DefaultChartRelease,
		},
		PodSelector: DefaultPodSelector,
		Container:   DefaultContainer,
		Timeouts: Timeouts{
			HTTP:     DefaultHTTPTimeout,
			PodReady: DefaultPodReadyTimeout,
			Remote:   DefaultRemoteTimeout,
		},
		Parallelism:       DefaultParallelism,
		SupportedReleases: DefaultSupportedReleases,
		Log:               LogConfig{Level: DefaultLogLevel},
	}
}

// HomeDir returns $SOLO_HOME, or ~/.solo
func HomeDir() string {
	if dir := os.Getenv("SOLO_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".solo"
	}
	return filepath.Join(home, ".solo")
}

// Load reads path on top of Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidArgument, op, err, "reading config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidArgument, op, err, "parsing config file %s", path)
	}
	return cfg, nil
}

// Validate checks the configuration shape. It does not require node IDs or
// a release tag; commands that need them check with RequireDeployment.
func (c *Config) Validate() error {
	const op = "config.Validate"

	if c.Namespace == "" {
		return errdefs.Missing(op, "namespace")
	}
	if c.CacheDir == "" {
		return errdefs.Missing(op, "cacheDir")
	}
	if c.StateDir == "" {
		return errdefs.Missing(op, "stateDir")
	}
	if c.StagingDir == "" {
		return errdefs.Missing(op, "stagingDir")
	}
	if c.ReleaseTag != "" {
		if _, err := release.ParseTag(c.ReleaseTag); err != nil {
			return err
		}
	}
	if _, err := release.NewHash(c.DigestAlgorithm); err != nil {
		return err
	}
	switch c.KeyAlgorithm {
	case types.KeyAlgorithmRSA3072, types.KeyAlgorithmECDSAP384:
	default:
		return errdefs.New(errdefs.KindInvalidArgument, op, "unsupported key algorithm %q", c.KeyAlgorithm)
	}
	if c.Parallelism < 1 {
		return errdefs.New(errdefs.KindInvalidArgument, op, "parallelism must be at least 1, got %d", c.Parallelism)
	}
	if c.Timeouts.HTTP <= 0 || c.Timeouts.PodReady <= 0 || c.Timeouts.Remote <= 0 {
		return errdefs.New(errdefs.KindInvalidArgument, op, "timeouts must be positive")
	}
	if c.SupportedReleases != "" {
		if _, err := semver.NewConstraint(c.SupportedReleases); err != nil {
			return errdefs.Wrap(errdefs.KindInvalidArgument, op, err, "supportedReleases %q", c.SupportedReleases)
		}
	}

	seen := make(map[string]bool, len(c.NodeIDs))
	for _, id := range c.NodeIDs {
		if id == "" {
			return errdefs.New(errdefs.KindInvalidArgument, op, "empty node id")
		}
		if seen[id] {
			return errdefs.New(errdefs.KindInvalidArgument, op, "duplicate node id %q", id)
		}
		seen[id] = true
	}
	return nil
}

// RequireDeployment checks the fields needed to deploy a network
func (c *Config) RequireDeployment() error {
	const op = "config.RequireDeployment"

	if len(c.NodeIDs) == 0 {
		return errdefs.Missing(op, "nodeIds")
	}
	if c.ReleaseTag == "" {
		return errdefs.Missing(op, "releaseTag")
	}
	if c.ChainID == "" {
		return errdefs.Missing(op, "chainId")
	}
	if c.Chart.Ref == "" {
		return errdefs.Missing(op, "chart.ref")
	}
	if c.Chart.Release == "" {
		return errdefs.Missing(op, "chart.release")
	}
	return c.Validate()
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
