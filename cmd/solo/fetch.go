package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [tag]",
	Short: "Download and verify a platform release",
	Long: `Download the release archive of a tag into the cache directory and
verify it against its published checksum.

Examples:
  # Fetch the configured release
  solo fetch

  # Fetch a specific release, ignoring the cache
  solo fetch v0.42.5 --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		tag := cfg.ReleaseTag
		if len(args) == 1 {
			tag = args[0]
		}

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, cancel := signalContext()
		defer cancel()

		artifact, err := newFetcher(store, force).Fetch(ctx, tag, cfg.CacheDir)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Release %s verified\n", artifact.Tag.Raw)
		fmt.Printf("  Archive: %s\n", artifact.ArchivePath)
		fmt.Printf("  Digest:  %s:%s\n", artifact.Algorithm, artifact.Digest)
		return nil
	},
}

func init() {
	fetchCmd.Flags().Bool("force", false, "Download even if a verified archive is cached")
}
