package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/security"
	"github.com/cuemby/solo/pkg/types"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate node keys",
	Long: `Generate the signing, gossip and TLS identities of every node into a
directory, using the same file names the nodes expect.

Examples:
  solo keys --node-ids node0,node1,node2 --dir ./keys`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if len(cfg.NodeIDs) == 0 {
			return errdefs.Missing("keys", "node ids")
		}

		m, err := security.NewKeyManager(dir, security.WithAlgorithm(cfg.KeyAlgorithm))
		if err != nil {
			return err
		}

		for _, nodeID := range cfg.NodeIDs {
			signing, signingFiles, err := m.SigningIdentity(nodeID)
			if err != nil {
				return err
			}
			gossip, gossipFiles, err := m.GossipIdentity(nodeID, signing)
			if err != nil {
				return err
			}
			tls, tlsFiles, err := m.TLSIdentity(nodeID, signing)
			if err != nil {
				return err
			}

			fmt.Printf("✓ %s\n", nodeID)
			if err := printIdentities(
				[]*types.NodeIdentity{signing, gossip, tls},
				[]types.KeyContainer{signingFiles, gossipFiles, tlsFiles},
			); err != nil {
				return err
			}
		}
		return nil
	},
}

func printIdentities(identities []*types.NodeIdentity, containers []types.KeyContainer) error {
	for i, identity := range identities {
		summary, err := security.Summarize(identity)
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", summary)
		fmt.Printf("    %s\n    %s\n", containers[i].PrivatePath, containers[i].PublicPath)
	}
	return nil
}

func init() {
	keysCmd.Flags().String("dir", "keys", "Output directory")
}
