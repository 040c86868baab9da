package chart

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"helm.sh/helm/v3/pkg/action"
	helmchart "helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/cli/values"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/release"

	"github.com/cuemby/solo/pkg/log"
	"github.com/cuemby/solo/pkg/types"
)

// DefaultTimeout bounds a chart operation when the request sets none
const DefaultTimeout = 5 * time.Minute

// Helm implements Lifecycle with the Helm v3 SDK
type Helm struct {
	settings  *cli.EnvSettings
	configure func(namespace string) (*action.Configuration, error)
	logger    zerolog.Logger
}

// NewHelm creates a Helm lifecycle for the cluster selected by kubeconfig
// and kubeContext (empty values use the Helm defaults)
func NewHelm(kubeconfig, kubeContext string) *Helm {
	settings := cli.New()
	if kubeconfig != "" {
		settings.KubeConfig = kubeconfig
	}
	if kubeContext != "" {
		settings.KubeContext = kubeContext
	}

	h := &Helm{
		settings: settings,
		logger:   log.WithComponent("helm"),
	}
	h.configure = h.actionConfig
	return h
}

// actionConfig builds an action configuration bound to namespace
func (h *Helm) actionConfig(namespace string) (*action.Configuration, error) {
	cfg := new(action.Configuration)
	getter := h.settings.RESTClientGetter()
	if err := cfg.Init(getter, namespace, os.Getenv("HELM_DRIVER"), h.debugf); err != nil {
		return nil, fmt.Errorf("failed to initialize helm for namespace %s: %w", namespace, err)
	}
	return cfg, nil
}

func (h *Helm) debugf(format string, v ...interface{}) {
	h.logger.Debug().Msgf(format, v...)
}

// Apply installs a new release
func (h *Helm) Apply(ctx context.Context, req ApplyRequest) (*Release, error) {
	cfg, err := h.configure(req.Namespace)
	if err != nil {
		return nil, err
	}

	install := action.NewInstall(cfg)
	install.ReleaseName = req.ReleaseName
	install.Namespace = req.Namespace
	install.CreateNamespace = true
	install.Version = req.Version
	install.Wait = req.Wait
	install.Timeout = timeoutOf(req)

	chrt, vals, err := h.load(&install.ChartPathOptions, req)
	if err != nil {
		return nil, err
	}

	rel, err := install.RunWithContext(ctx, chrt, vals)
	if err != nil {
		return nil, fmt.Errorf("helm install %s: %w", req.ReleaseName, err)
	}
	return releaseOf(rel), nil
}

// Upgrade upgrades an existing release, reusing no previous values
func (h *Helm) Upgrade(ctx context.Context, req ApplyRequest) (*Release, error) {
	cfg, err := h.configure(req.Namespace)
	if err != nil {
		return nil, err
	}

	upgrade := action.NewUpgrade(cfg)
	upgrade.Namespace = req.Namespace
	upgrade.Version = req.Version
	upgrade.Wait = req.Wait
	upgrade.Timeout = timeoutOf(req)

	chrt, vals, err := h.load(&upgrade.ChartPathOptions, req)
	if err != nil {
		return nil, err
	}

	rel, err := upgrade.RunWithContext(ctx, req.ReleaseName, chrt, vals)
	if err != nil {
		return nil, fmt.Errorf("helm upgrade %s: %w", req.ReleaseName, err)
	}
	return releaseOf(rel), nil
}

// Remove uninstalls a release
func (h *Helm) Remove(ctx context.Context, namespace, releaseName string) error {
	cfg, err := h.configure(namespace)
	if err != nil {
		return err
	}

	uninstall := action.NewUninstall(cfg)
	if deadline, ok := ctx.Deadline(); ok {
		uninstall.Timeout = time.Until(deadline)
	}
	if _, err := uninstall.Run(releaseName); err != nil {
		return fmt.Errorf("helm uninstall %s: %w", releaseName, err)
	}
	return nil
}

// List returns the deployed and failed releases in namespace, as helm ls
// does. Releases stuck in a pending state are not reported as installed.
func (h *Helm) List(ctx context.Context, namespace string) ([]Release, error) {
	cfg, err := h.configure(namespace)
	if err != nil {
		return nil, err
	}

	list := action.NewList(cfg)
	list.StateMask = action.ListDeployed | action.ListFailed

	rels, err := list.Run()
	if err != nil {
		return nil, fmt.Errorf("helm list in %s: %w", namespace, err)
	}

	result := make([]Release, 0, len(rels))
	for _, rel := range rels {
		if rel.Namespace != "" && rel.Namespace != namespace {
			continue
		}
		r := releaseOf(rel)
		// Uninstalled releases kept as history are not installed
		if r.Status == types.ChartStatusAbsent {
			continue
		}
		result = append(result, *r)
	}
	return result, nil
}

// load locates and loads the chart and merges the value overrides
func (h *Helm) load(opts *action.ChartPathOptions, req ApplyRequest) (*helmchart.Chart, map[string]interface{}, error) {
	path, err := opts.LocateChart(req.ChartRef, h.settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to locate chart %s: %w", req.ChartRef, err)
	}

	chrt, err := loader.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load chart %s: %w", path, err)
	}

	valueOpts := &values.Options{
		ValueFiles: req.Values.Files,
		Values:     setValues(req.Values),
	}
	vals, err := valueOpts.MergeValues(getter.All(h.settings))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to merge chart values: %w", err)
	}

	return chrt, vals, nil
}

// setValues returns the --set arguments: explicit Set entries first, then
// Map entries sorted by key so the result is deterministic
func setValues(v types.ChartValues) []string {
	result := append([]string(nil), v.Set...)

	keys := make([]string, 0, len(v.Map))
	for k := range v.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		result = append(result, k+"="+v.Map[k])
	}
	return result
}

func timeoutOf(req ApplyRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return DefaultTimeout
}

func releaseOf(rel *release.Release) *Release {
	r := &Release{
		Name:      rel.Name,
		Namespace: rel.Namespace,
		Revision:  rel.Version,
		Status:    types.ChartStatusUnknown,
	}
	if rel.Chart != nil && rel.Chart.Metadata != nil {
		r.Chart = rel.Chart.Metadata.Name
		r.Version = rel.Chart.Metadata.Version
	}
	if rel.Info != nil {
		r.Status = statusOf(rel.Info.Status)
		r.Updated = rel.Info.LastDeployed.Time
	}
	return r
}

func statusOf(status release.Status) types.ChartStatus {
	switch status {
	case release.StatusDeployed:
		return types.ChartStatusDeployed
	case release.StatusFailed:
		return types.ChartStatusFailed
	case release.StatusPendingInstall, release.StatusPendingUpgrade, release.StatusPendingRollback:
		return types.ChartStatusPending
	case release.StatusUninstalling:
		return types.ChartStatusUninstall
	case release.StatusUninstalled:
		return types.ChartStatusAbsent
	default:
		return types.ChartStatusUnknown
	}
}
