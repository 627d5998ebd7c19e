package chain

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// List of the supported hash algorithms.
const (
	HasherSHA256    = "sha256"
	HasherKeccak256 = "keccak256"
)

// HashLength is the size in bytes of every digest produced by a Hasher.
const HashLength = 32

// Hasher defines a function that produces a fixed size digest of the data.
type Hasher func(data []byte) Hash

// Map of the different hash algorithms with functions.
var hashers = map[string]Hasher{
	HasherSHA256:    sha256Hash,
	HasherKeccak256: keccak256Hash,
}

// RetrieveHasher returns the specified hash function.
func RetrieveHasher(name string) (Hasher, error) {
	fn, exists := hashers[name]
	if !exists {
		return nil, fmt.Errorf("hasher %q: %w", name, ErrUnknownHasher)
	}
	return fn, nil
}

// Hashers returns the names of the supported hash algorithms.
func Hashers() []string {
	names := make([]string, 0, len(hashers))
	for name := range hashers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sha256Hash(data []byte) Hash {
	h := sha256.Sum256(data)
	return h[:]
}

func keccak256Hash(data []byte) Hash {
	return crypto.Keccak256(data)
}

// =============================================================================

// Hash represents the digest of an entry.
type Hash []byte

// ParseHash converts a 0x prefixed hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	if s == "" || s == "0x" {
		return Hash{}, nil
	}

	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("parse hash %q: %w", s, err)
	}
	return b, nil
}

// String returns the 0x prefixed hex form of the hash. An empty hash
// renders as "0x".
func (h Hash) String() string {
	return hexutil.Encode(h)
}

// Equal reports whether both hashes hold the same bytes.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h, other)
}

// LeadingZeros returns the number of leading zero bytes.
func (h Hash) LeadingZeros() uint {
	var n uint
	for _, b := range h {
		if b != 0 {
			break
		}
		n++
	}
	return n
}

// isHashSolved checks the hash complies with the proof of work rules.
// We need to match a difficulty number of leading zero bytes. A difficulty
// larger than the hash can never be met.
func isHashSolved(difficulty uint, hash Hash) bool {
	if difficulty > uint(len(hash)) {
		return false
	}

	for _, b := range hash[:difficulty] {
		if b != 0 {
			return false
		}
	}
	return true
}
