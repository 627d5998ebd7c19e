package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/powchain/foundation/chain"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/logger"
	"github.com/ardanlabs/powchain/foundation/worker"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("MINER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Chain struct {
			Difficulty  uint          `conf:"default:2"`
			Hasher      string        `conf:"default:sha256"`
			MaxAttempts uint64        `conf:"default:0"`
			MineTimeout time.Duration `conf:"default:1m"`
		}
		Worker struct {
			QueueSize int `conf:"default:10"`
		}
		Demo struct {
			Entries []string `conf:"default:Gandalf:0x01020304:You shall not pass!;Dumbledore:0x05060708:Expelliarmus!"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "MINER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	jobs, err := parseJobs(cfg.Demo.Entries)
	if err != nil {
		return fmt.Errorf("parsing demo entries: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Chain Support

	// The chain packages accept a function of this signature to allow the
	// application to log. The raw messages are also sent to any subscriber
	// through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// Announce every solved entry on the console.
	id, announcements := evts.Subscribe()
	announced := make(chan struct{})
	go func() {
		defer close(announced)
		for s := range announcements {
			if strings.HasPrefix(s, "chain: Mine: MINING: SOLVED") {
				fmt.Println(s)
			}
		}
	}()
	defer func() {
		evts.Release(id)
		<-announced
	}()

	ch, err := chain.New(chain.Config{
		Hasher:    cfg.Chain.Hasher,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing chain: %w", err)
	}

	w := worker.Run(ch, worker.Config{
		Difficulty:  cfg.Chain.Difficulty,
		MaxAttempts: cfg.Chain.MaxAttempts,
		MineTimeout: cfg.Chain.MineTimeout,
		QueueSize:   cfg.Worker.QueueSize,
		EvHandler:   ev,
	})
	defer w.Shutdown()

	// =========================================================================
	// Mining

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Each job is mined against the tail left by the one before it.
	for _, job := range jobs {
		jobID, err := w.Submit(job)
		if err != nil {
			return fmt.Errorf("submitting job for %s: %w", job.Identity.Name, err)
		}

		select {
		case res := <-w.Results():
			if res.Err != nil {
				return fmt.Errorf("mining job[%s] for %s: %w", jobID, job.Identity.Name, res.Err)
			}
			log.Infow("mined", "job", jobID, "name", job.Identity.Name, "payload", job.Payload, "nonce", res.Mined.Nonce, "attempts", res.Mined.Attempts, "duration", res.Mined.Duration, "hash", res.Mined.Hash)

		case sig := <-shutdown:
			log.Infow("shutdown", "status", "shutdown started", "signal", sig)
			w.SignalCancelMining()
			return nil
		}
	}

	// =========================================================================
	// Listing

	if err := ch.VerifyAll(cfg.Chain.Difficulty); err != nil {
		return fmt.Errorf("verifying chain: %w", err)
	}

	fmt.Println("Chain entries:")
	for i, entry := range ch.Entries() {
		fmt.Printf("Identity: %s, Payload: %s, Nonce: %d\n", entry.Identity.Name, entry.Payload, entry.Nonce)
		log.Infow("listing", "index", i, "name", entry.Identity.Name, "payload", entry.Payload, "nonce", entry.Nonce, "hash", ch.Hash(entry))
	}

	return nil
}

// parseJobs converts name:0xkey:payload strings into mining jobs.
func parseJobs(specs []string) ([]worker.Job, error) {
	jobs := make([]worker.Job, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("entry %q: expected name:0xkey:payload", spec)
		}

		key, err := hexutil.Decode(parts[1])
		if err != nil {
			return nil, fmt.Errorf("entry %q: key: %w", spec, err)
		}

		jobs = append(jobs, worker.Job{
			Identity: chain.NewIdentity(parts[0], key),
			Payload:  parts[2],
		})
	}
	return jobs, nil
}
