// Package worker implements background mining of entries onto a chain.
package worker

import (
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/chain"
	"github.com/ardanlabs/powchain/foundation/validate"
	"github.com/google/uuid"
)

// Set of errors the worker can return.
var (
	ErrQueueFull = errors.New("mining queue is full")
	ErrShutdown  = errors.New("worker is shut down")
)

// Config represents the configuration required to run the worker.
type Config struct {
	Difficulty  uint
	MaxAttempts uint64        // Zero leaves the nonce search unbounded.
	MineTimeout time.Duration // Zero leaves the job without a deadline.
	QueueSize   int
	EvHandler   chain.EventHandler
}

// Job represents a request to mine a new entry.
type Job struct {
	Identity chain.Identity `json:"identity"`
	Payload  string         `json:"payload" validate:"required"`
}

// Result represents the outcome of a mining job.
type Result struct {
	JobID string
	Job   Job
	Mined chain.MineResult
	Err   error
}

type queuedJob struct {
	id  string
	job Job
}

// =============================================================================

// Worker manages the mining workflow for a chain. Jobs are mined one at a
// time in the order they were submitted.
type Worker struct {
	chain        *chain.Chain
	cfg          Config
	wg           sync.WaitGroup
	shut         chan struct{}
	shutOnce     sync.Once
	jobs         chan queuedJob
	cancelMining chan struct{}
	results      chan Result
	evHandler    chain.EventHandler
}

// Run creates a worker and starts up the mining goroutine.
func Run(ch *chain.Chain, cfg Config) *Worker {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}

	w := Worker{
		chain:        ch,
		cfg:          cfg,
		shut:         make(chan struct{}),
		jobs:         make(chan queuedJob, cfg.QueueSize),
		cancelMining: make(chan struct{}, 1),
		results:      make(chan Result, cfg.QueueSize),
		evHandler:    ev,
	}

	w.wg.Add(1)

	// We don't want to return until we know the G is up and running.
	hasStarted := make(chan bool)

	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.miningOperations()
	}()

	<-hasStarted

	return &w
}

// Shutdown cancels any mining in flight and waits for the mining goroutine
// to terminate. The results channel is closed once it has.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()

		close(w.results)
	})
}

// Submit validates the job and queues it for mining. The returned id is
// carried on the job's result.
func (w *Worker) Submit(job Job) (string, error) {
	if err := validate.Check(job); err != nil {
		return "", err
	}

	if w.isShutdown() {
		return "", ErrShutdown
	}

	qj := queuedJob{
		id:  uuid.NewString(),
		job: job,
	}

	select {
	case w.jobs <- qj:
		w.evHandler("worker: Submit: job[%s] queued: entry[%s:%q]", qj.id, job.Identity.Name, job.Payload)
		return qj.id, nil
	default:
		w.evHandler("worker: Submit: queue full, job for %s rejected", job.Identity.Name)
		return "", ErrQueueFull
	}
}

// Results returns the channel mining results are delivered on.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop the job in flight.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- struct{}{}:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
