package pipeline

import (
	"github.com/cuemby/solo/pkg/addressbook"
	"github.com/cuemby/solo/pkg/config"
)

// RequestFromConfig builds the deployment request described by cfg
func RequestFromConfig(cfg *config.Config) Request {
	return Request{
		Namespace:    cfg.Namespace,
		NodeIDs:      cfg.NodeIDs,
		ReleaseTag:   cfg.ReleaseTag,
		ChainID:      cfg.ChainID,
		CacheDir:     cfg.CacheDir,
		TemplatesDir: cfg.TemplatesDir,
		AddressBook: addressbook.Options{
			Namespace: cfg.Namespace,
			AppName:   cfg.AppName,
		},
		Chart: ChartRequest{
			Ref:     cfg.Chart.Ref,
			Release: cfg.Chart.Release,
			Version: cfg.Chart.Version,
			Values:  cfg.Chart.Values(),
			Timeout: cfg.Timeouts.PodReady,
		},
		PodSelector:       cfg.PodSelector,
		Container:         cfg.Container,
		PodReadyTimeout:   cfg.Timeouts.PodReady,
		SupportedReleases: cfg.SupportedReleases,
		KeepStaging:       cfg.KeepStaging,
	}
}
