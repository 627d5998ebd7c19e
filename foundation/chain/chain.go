// Package chain implements a proof of work hash chain. Each entry carries the
// hash of the entry before it and is mined by searching for a nonce that gives
// the entry's hash a number of leading zero bytes.
package chain

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Set of errors the chain can return.
var (
	ErrLinkage          = errors.New("previous hash does not match chain tail")
	ErrSearchExhausted  = errors.New("nonce search exhausted")
	ErrCancelled        = errors.New("mining cancelled")
	ErrClockUnavailable = errors.New("clock unavailable")
	ErrUnknownHasher    = errors.New("unknown hasher")
)

// Genesis values seeded into every new chain.
const (
	GenesisName    = "Merlin"
	GenesisKeyBlob = "AbraKadabra"
	GenesisPayload = "Let the magic begin!"
)

// =============================================================================

// EventHandler defines a function that is called when events occur in the
// processing of the chain.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to construct a chain.
type Config struct {
	Clock     Clock
	Hasher    string
	EvHandler EventHandler
}

// Chain manages the ordered set of entries and an index of entry positions
// by identity name.
type Chain struct {
	mu         sync.RWMutex
	clock      Clock
	hasher     Hasher
	evHandler  EventHandler
	entries    []Entry
	byIdentity map[string][]int
}

// New constructs a chain seeded with the genesis entry.
func New(cfg Config) (*Chain, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}

	name := cfg.Hasher
	if name == "" {
		name = HasherSHA256
	}
	hasher, err := RetrieveHasher(name)
	if err != nil {
		return nil, err
	}

	timeStamp, err := clock()
	if err != nil {
		return nil, fmt.Errorf("genesis timestamp: %w", wrapClock(err))
	}

	c := Chain{
		clock:      clock,
		hasher:     hasher,
		evHandler:  ev,
		byIdentity: make(map[string][]int),
	}

	genesis := NewEntry(NewIdentity(GenesisName, []byte(GenesisKeyBlob)), GenesisPayload, timeStamp, nil)
	c.Append(genesis)

	ev("chain: New: genesis: hash[%s]", c.Hash(genesis))

	return &c, nil
}

// Append adds the entry to the end of the chain and records its position
// under the identity name. No validation is performed.
func (c *Chain) Append(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.append(entry)
}

// append requires the write lock to be held.
func (c *Chain) append(entry Entry) {
	c.entries = append(c.entries, entry.clone())

	name := entry.Identity.Name
	c.byIdentity[name] = append(c.byIdentity[name], len(c.entries)-1)
}

// Hash returns the digest of the entry's canonical encoding.
func (c *Chain) Hash(entry Entry) Hash {
	return c.hasher(entry.Encode())
}

// Validate checks the candidate's previous hash against the hash of the
// current tail. It does not check the candidate's proof of work.
func (c *Chain) Validate(candidate Entry) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.validate(candidate)
}

// IsValid reports whether the candidate links to the current tail.
func (c *Chain) IsValid(candidate Entry) bool {
	return c.Validate(candidate) == nil
}

// validate requires a lock to be held.
func (c *Chain) validate(candidate Entry) error {
	tailHash := c.Hash(c.entries[len(c.entries)-1])
	if !candidate.PrevHash.Equal(tailHash) {
		c.evHandler("chain: validate: invalid entry[%s]: prev hash mismatch: got[%s] exp[%s]", candidate, candidate.PrevHash, tailHash)
		return fmt.Errorf("got %s, exp %s: %w", candidate.PrevHash, tailHash, ErrLinkage)
	}
	return nil
}

// MatchesDifficulty reports whether the first difficulty bytes of the
// entry's hash are zero. A difficulty of 0 always matches. A difficulty
// larger than HashLength is accepted but can never be met.
func (c *Chain) MatchesDifficulty(entry Entry, difficulty uint) bool {
	return isHashSolved(difficulty, c.Hash(entry))
}

// NextEntry constructs a candidate stamped with the current time and the
// hash of the current tail.
func (c *Chain) NextEntry(id Identity, payload string) (Entry, error) {
	timeStamp, err := c.clock()
	if err != nil {
		return Entry{}, wrapClock(err)
	}

	return NewEntry(id, payload, timeStamp, c.TailHash()), nil
}

// =============================================================================

// Length returns the number of entries in the chain.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Genesis returns the first entry in the chain.
func (c *Chain) Genesis() Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.entries[0]
}

// Tail returns the last entry in the chain.
func (c *Chain) Tail() Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.entries[len(c.entries)-1]
}

// TailHash returns the hash of the last entry in the chain.
func (c *Chain) TailHash() Hash {
	return c.Hash(c.Tail())
}

// Entries returns a copy of all the entries in order.
func (c *Chain) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)
	return entries
}

// ByIdentity returns the entries authored by the named identity in
// chain order.
func (c *Chain) ByIdentity(name string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	positions := c.byIdentity[name]

	entries := make([]Entry, len(positions))
	for i, pos := range positions {
		entries[i] = c.entries[pos]
	}
	return entries
}

// Identities returns the sorted set of identity names with entries.
func (c *Chain) Identities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.byIdentity))
	for name := range c.byIdentity {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VerifyAll walks the chain checking the linkage of every entry and, past
// genesis, that each entry's hash meets the difficulty.
func (c *Chain) VerifyAll(difficulty uint) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.entries[0].PrevHash) != 0 {
		return fmt.Errorf("entry[0]: genesis has a previous hash %s", c.entries[0].PrevHash)
	}

	for i := 1; i < len(c.entries); i++ {
		exp := c.Hash(c.entries[i-1])
		if !c.entries[i].PrevHash.Equal(exp) {
			return fmt.Errorf("entry[%d]: got %s, exp %s: %w", i, c.entries[i].PrevHash, exp, ErrLinkage)
		}

		if hash := c.Hash(c.entries[i]); !isHashSolved(difficulty, hash) {
			return fmt.Errorf("entry[%d]: hash %s does not meet difficulty %d", i, hash, difficulty)
		}
	}

	return nil
}

// =============================================================================

func wrapClock(err error) error {
	if errors.Is(err, ErrClockUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrClockUnavailable, err)
}
