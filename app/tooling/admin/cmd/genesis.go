package cmd

import (
	"github.com/spf13/cobra"
)

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Print the genesis entry and its hash",
	RunE:  genesisRun,
}

func init() {
	rootCmd.AddCommand(genesisCmd)
}

func genesisRun(cmd *cobra.Command, args []string) error {
	ch, cleanup, err := newChain()
	if err != nil {
		return err
	}
	defer cleanup()

	printEntry(cmd.OutOrStdout(), ch, 0, ch.Genesis())
	return nil
}
