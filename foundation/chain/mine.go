package chain

import (
	"context"
	"fmt"
	"time"
)

// progressInterval is how many attempts pass between progress events.
const progressInterval = 1_000_000

// MineResult represents the outcome of a successful mining operation.
type MineResult struct {
	Entry    Entry
	Hash     Hash
	Nonce    uint64
	Attempts uint64
	Duration time.Duration
}

// MineOption sets optional bounds on a mining operation.
type MineOption func(*mineOptions)

type mineOptions struct {
	maxAttempts uint64
}

// WithMaxAttempts bounds the nonce search. A value of 0 leaves the search
// unbounded, in which case only the context can stop it.
func WithMaxAttempts(n uint64) MineOption {
	return func(o *mineOptions) {
		o.maxAttempts = n
	}
}

// Mine searches for a nonce that gives the entry a hash with difficulty
// leading zero bytes and then appends it to the chain. The linkage is
// checked once up front since no nonce can fix a bad previous hash.
func (c *Chain) Mine(ctx context.Context, entry Entry, difficulty uint, opts ...MineOption) (MineResult, error) {
	c.evHandler("chain: Mine: MINING: started: entry[%s] difficulty[%d]", entry, difficulty)
	defer c.evHandler("chain: Mine: MINING: completed: entry[%s]", entry)

	var o mineOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := c.Validate(entry); err != nil {
		return MineResult{}, err
	}

	t := time.Now()

	// Perform the proof of work on our own copy of the entry. The lock is not
	// held during the search so readers are not blocked.
	nonce, hash, attempts, err := c.performPOW(ctx, entry, difficulty, o.maxAttempts)
	if err != nil {
		return MineResult{}, err
	}
	entry.Nonce = nonce

	c.mu.Lock()
	defer c.mu.Unlock()

	// The tail may have moved while we were searching.
	if err := c.validate(entry); err != nil {
		return MineResult{}, err
	}
	c.append(entry)

	res := MineResult{
		Entry:    entry,
		Hash:     hash,
		Nonce:    nonce,
		Attempts: attempts,
		Duration: time.Since(t),
	}

	c.evHandler("chain: Mine: MINING: SOLVED: entry[%s] hash[%s] attempts[%d]", entry, hash, attempts)

	return res, nil
}

// performPOW increments the nonce from its starting value until the hash
// meets the difficulty, the context is done or the attempts run out.
func (c *Chain) performPOW(ctx context.Context, entry Entry, difficulty uint, maxAttempts uint64) (uint64, Hash, uint64, error) {
	var attempts uint64
	for {
		attempts++
		if attempts%progressInterval == 0 {
			c.evHandler("chain: performPOW: MINING: attempts[%d]", attempts)
		}

		// Did we timeout trying to solve the problem.
		if err := ctx.Err(); err != nil {
			c.evHandler("chain: performPOW: MINING: CANCELLED: attempts[%d]", attempts)
			return 0, nil, attempts, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		hash := c.Hash(entry)
		if isHashSolved(difficulty, hash) {
			return entry.Nonce, hash, attempts, nil
		}

		if maxAttempts > 0 && attempts >= maxAttempts {
			c.evHandler("chain: performPOW: MINING: EXHAUSTED: attempts[%d]", attempts)
			return 0, nil, attempts, fmt.Errorf("difficulty %d after %d attempts: %w", difficulty, attempts, ErrSearchExhausted)
		}

		entry.Nonce++
	}
}
