package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/solo/pkg/addressbook"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the network address book",
	Long: `Render config.txt for the configured nodes. Without --output the
address book is printed.

Examples:
  solo render --node-ids node0,node1,node2 --output config.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		chainID, _ := cmd.Flags().GetString("chain-id")
		if chainID == "" {
			chainID = cfg.ChainID
		}

		lines, err := addressbook.Render(cfg.NodeIDs, chainID, addressbook.Options{
			Namespace: cfg.Namespace,
			AppName:   cfg.AppName,
		})
		if err != nil {
			return err
		}

		if output == "" {
			fmt.Println(addressbook.Text(lines))
			return nil
		}
		if err := addressbook.Write(output, lines); err != nil {
			return err
		}
		fmt.Printf("✓ Address book written to %s\n", output)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	renderCmd.Flags().String("chain-id", "", "Chain ID (defaults to the configured chainId)")
}
