package cmd

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/powchain/foundation/chain"
	"github.com/ardanlabs/powchain/foundation/validate"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var entries []string

var mineCmd = &cobra.Command{
	Use:     "mine",
	Short:   "Mine entries onto a new chain and print the listing",
	Example: `  admin mine -e "Gandalf:0x01020304:You shall not pass!" -e "Dumbledore:0x05060708:Expelliarmus!"`,
	RunE:    mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().StringArrayVarP(&entries, "entry", "e", nil, "Entry to mine as name:0xkey:payload, repeatable.")
	mineCmd.MarkFlagRequired("entry")
}

func mineRun(cmd *cobra.Command, args []string) error {
	ids, payloads, err := parseEntries(entries)
	if err != nil {
		return err
	}

	ch, cleanup, err := newChain()
	if err != nil {
		return err
	}
	defer cleanup()

	var opts []chain.MineOption
	if maxAttempts > 0 {
		opts = append(opts, chain.WithMaxAttempts(maxAttempts))
	}

	for i := range ids {
		entry, err := ch.NextEntry(ids[i], payloads[i])
		if err != nil {
			return err
		}

		res, err := ch.Mine(cmd.Context(), entry, difficulty, opts...)
		if err != nil {
			return fmt.Errorf("mining %s: %w", ids[i].Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Entry mined: %q nonce[%d] attempts[%d] duration[%v]\n", entry.Payload, res.Nonce, res.Attempts, res.Duration)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Chain entries:")
	for i, entry := range ch.Entries() {
		printEntry(cmd.OutOrStdout(), ch, i, entry)
	}

	return nil
}

func parseEntries(specs []string) ([]chain.Identity, []string, error) {
	ids := make([]chain.Identity, len(specs))
	payloads := make([]string, len(specs))

	for i, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 {
			return nil, nil, fmt.Errorf("entry %q: expected name:0xkey:payload", spec)
		}

		key, err := hexutil.Decode(parts[1])
		if err != nil {
			return nil, nil, fmt.Errorf("entry %q: key: %w", spec, err)
		}

		ids[i] = chain.NewIdentity(parts[0], key)
		if err := validate.Check(ids[i]); err != nil {
			return nil, nil, fmt.Errorf("entry %q: %w", spec, err)
		}
		payloads[i] = parts[2]
	}

	return ids, payloads, nil
}
