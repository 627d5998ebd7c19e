// Package cmd contains the admin app commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/powchain/foundation/chain"
	"github.com/ardanlabs/powchain/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	difficulty  uint
	hasherName  string
	maxAttempts uint64
	verbose     bool
)

func init() {
	rootCmd.PersistentFlags().UintVarP(&difficulty, "difficulty", "d", 2, "Number of leading zero bytes a mined hash needs.")
	rootCmd.PersistentFlags().StringVar(&hasherName, "hasher", chain.HasherSHA256, fmt.Sprintf("Hash algorithm, one of %v.", chain.Hashers()))
	rootCmd.PersistentFlags().Uint64Var(&maxAttempts, "max-attempts", 0, "Bound on nonce attempts per entry, 0 for no bound.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log chain events.")
}

var rootCmd = &cobra.Command{
	Use:          "admin",
	Short:        "Mine and inspect a proof of work chain",
	SilenceUsage: true,
}

// Execute runs the root command. An interrupt cancels any mining in flight.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newChain constructs a chain using the persistent flags. Chain events are
// logged when verbose is set.
func newChain() (*chain.Chain, func(), error) {
	cfg := chain.Config{
		Hasher: hasherName,
	}

	cleanup := func() {}
	if verbose {
		log, err := logger.New("ADMIN", "stderr")
		if err != nil {
			return nil, nil, err
		}
		cfg.EvHandler = evHandler(log)
		cleanup = func() { log.Sync() }
	}

	ch, err := chain.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	return ch, cleanup, nil
}

func evHandler(log *zap.SugaredLogger) chain.EventHandler {
	return func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}
}

func printEntry(w io.Writer, ch *chain.Chain, i int, entry chain.Entry) {
	fmt.Fprintf(w, "[%d] Identity: %s, Payload: %s, Nonce: %d\n", i, entry.Identity.Name, entry.Payload, entry.Nonce)
	fmt.Fprintf(w, "    Key: %s Time: %d\n", chain.Hash(entry.Identity.KeyBlob), entry.TimeStamp)
	fmt.Fprintf(w, "    Prev: %s\n", entry.PrevHash)
	fmt.Fprintf(w, "    Hash: %s\n", ch.Hash(entry))
}
