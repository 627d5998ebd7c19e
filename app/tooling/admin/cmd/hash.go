package cmd

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/chain"
	"github.com/ardanlabs/powchain/foundation/validate"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var (
	hashName      string
	hashKey       string
	hashPayload   string
	hashTimeStamp uint64
	hashNonce     uint64
	hashPrev      string
)

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Print the hash of an entry and whether it meets the difficulty",
	RunE:  hashRun,
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().StringVarP(&hashName, "name", "n", "", "Identity name.")
	hashCmd.Flags().StringVarP(&hashKey, "key", "k", "0x", "Identity key blob in 0x hex.")
	hashCmd.Flags().StringVar(&hashPayload, "payload", "", "Entry payload.")
	hashCmd.Flags().Uint64Var(&hashTimeStamp, "timestamp", 0, "Entry timestamp in unix seconds.")
	hashCmd.Flags().Uint64Var(&hashNonce, "nonce", 0, "Entry nonce.")
	hashCmd.Flags().StringVar(&hashPrev, "prev", "0x", "Previous entry hash in 0x hex.")
}

func hashRun(cmd *cobra.Command, args []string) error {
	key, err := hexutil.Decode(hashKey)
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}

	id := chain.NewIdentity(hashName, key)
	if err := validate.Check(id); err != nil {
		return err
	}

	prev, err := chain.ParseHash(hashPrev)
	if err != nil {
		return err
	}

	ch, cleanup, err := newChain()
	if err != nil {
		return err
	}
	defer cleanup()

	entry := chain.NewEntry(id, hashPayload, hashTimeStamp, prev)
	entry.Nonce = hashNonce

	hash := ch.Hash(entry)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", hash)
	fmt.Fprintf(cmd.OutOrStdout(), "leading zero bytes: %d, meets difficulty %d: %t\n", hash.LeadingZeros(), difficulty, ch.MatchesDifficulty(entry, difficulty))

	return nil
}
