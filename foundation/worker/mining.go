package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/ardanlabs/powchain/foundation/chain"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case qj := <-w.jobs:
			if !w.isShutdown() {
				w.runMiningOperation(qj)
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines the job's entry onto the tail of the chain and
// delivers the result.
func (w *Worker) runMiningOperation(qj queuedJob) {
	w.evHandler("worker: runMiningOperation: MINING: started: job[%s]", qj.id)
	defer w.evHandler("worker: runMiningOperation: MINING: completed: job[%s]", qj.id)

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	var ctx context.Context
	var cancel context.CancelFunc
	switch {
	case w.cfg.MineTimeout > 0:
		ctx, cancel = context.WithTimeout(context.Background(), w.cfg.MineTimeout)
	default:
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	// Can't return from this function until this G is complete.
	var wg sync.WaitGroup
	wg.Add(1)

	// This G exists to cancel the mining operation.
	go func() {
		defer wg.Done()

		select {
		case <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
			cancel()
		case <-w.shut:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: shutdown")
			cancel()
		case <-ctx.Done():
		}
	}()

	res := Result{
		JobID: qj.id,
		Job:   qj.job,
	}
	res.Mined, res.Err = w.mine(ctx, qj.job)

	cancel()
	wg.Wait()

	switch {
	case res.Err == nil:
		w.evHandler("worker: runMiningOperation: MINING: SOLVED: job[%s] nonce[%d] duration[%v]", qj.id, res.Mined.Nonce, res.Mined.Duration)
	case errors.Is(res.Err, chain.ErrCancelled):
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete: job[%s]", qj.id)
	default:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: job[%s]: %s", qj.id, res.Err)
	}

	select {
	case w.results <- res:
	case <-w.shut:
		w.evHandler("worker: runMiningOperation: MINING: result dropped on shutdown: job[%s]", qj.id)
	}
}

// mine builds the entry against the current tail and performs the work.
func (w *Worker) mine(ctx context.Context, job Job) (chain.MineResult, error) {
	entry, err := w.chain.NextEntry(job.Identity, job.Payload)
	if err != nil {
		return chain.MineResult{}, err
	}

	var opts []chain.MineOption
	if w.cfg.MaxAttempts > 0 {
		opts = append(opts, chain.WithMaxAttempts(w.cfg.MaxAttempts))
	}

	return w.chain.Mine(ctx, entry, w.cfg.Difficulty, opts...)
}
