package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// entryTag prefixes the canonical encoding of an entry so its digest can't
// collide with the digest of some other value encoded the same way.
const entryTag byte = 0x01

// Identity represents a named actor who authors entries. The key blob is
// opaque data carried along with the name and is never interpreted.
type Identity struct {
	Name    string `json:"name" validate:"required"`
	KeyBlob []byte `json:"key_blob"`
}

// NewIdentity constructs an identity. The key blob is copied so the caller
// can't change it after the fact.
func NewIdentity(name string, keyBlob []byte) Identity {
	return Identity{
		Name:    name,
		KeyBlob: bytes.Clone(keyBlob),
	}
}

// Equal reports whether two identities carry the same name and key blob.
func (id Identity) Equal(other Identity) bool {
	return id.Name == other.Name && bytes.Equal(id.KeyBlob, other.KeyBlob)
}

// =============================================================================

// Entry represents a single record in the chain.
type Entry struct {
	Identity  Identity `json:"identity"`
	Payload   string   `json:"payload"`
	TimeStamp uint64   `json:"timestamp"` // Unix seconds when the entry was constructed.
	Nonce     uint64   `json:"nonce"`     // Value identified to solve the hash puzzle.
	PrevHash  Hash     `json:"prev_hash"` // Hash of the tail entry at construction, empty for genesis.
}

// NewEntry constructs an entry with a zero nonce. The previous hash is not
// checked here, that happens when the entry is mined.
func NewEntry(id Identity, payload string, timeStamp uint64, prevHash Hash) Entry {
	return Entry{
		Identity:  NewIdentity(id.Name, id.KeyBlob),
		Payload:   payload,
		TimeStamp: timeStamp,
		Nonce:     0,
		PrevHash:  bytes.Clone(prevHash),
	}
}

// clone returns a copy of the entry that shares no memory with the original.
func (e Entry) clone() Entry {
	e.Identity = NewIdentity(e.Identity.Name, e.Identity.KeyBlob)
	e.PrevHash = bytes.Clone(e.PrevHash)
	return e
}

// Encode returns the canonical byte form of the entry that gets hashed.
// Variable length fields are length prefixed so no two distinct entries
// share an encoding.
func (e Entry) Encode() []byte {
	size := 1 + 6*8 + len(e.Identity.Name) + len(e.Identity.KeyBlob) + len(e.Payload) + len(e.PrevHash)
	buf := make([]byte, 0, size)

	buf = append(buf, entryTag)
	buf = appendField(buf, []byte(e.Identity.Name))
	buf = appendField(buf, e.Identity.KeyBlob)
	buf = appendField(buf, []byte(e.Payload))
	buf = binary.BigEndian.AppendUint64(buf, e.TimeStamp)
	buf = binary.BigEndian.AppendUint64(buf, e.Nonce)
	buf = appendField(buf, e.PrevHash)

	return buf
}

// String implements the Stringer interface for logging.
func (e Entry) String() string {
	return fmt.Sprintf("%s:%q:%d", e.Identity.Name, e.Payload, e.Nonce)
}

func appendField(buf []byte, field []byte) []byte {
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(field)))
	return append(buf, field...)
}
