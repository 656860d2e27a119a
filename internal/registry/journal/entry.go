// Package journal is the append-only, hash-chained log of accepted registry
// mutations. Replaying it in height order rebuilds the registry.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"trustreg/contracts/registry"
)

// Kind names the registry operation an entry records.
type Kind string

const (
	KindRegistered  Kind = "registered"
	KindDeactivated Kind = "deactivated"
	KindReactivated Kind = "reactivated"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindRegistered, KindDeactivated, KindReactivated:
		return true
	}
	return false
}

// Digest is a BLAKE2b-256 hash, hex encoded in JSON.
type Digest [blake2b.Size256]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(len(d)) {
		return fmt.Errorf("digest must be %d hex characters", hex.EncodedLen(len(d)))
	}
	_, err := hex.Decode(d[:], text)
	return err
}

// Entry is one accepted mutation. Name and LicenseNumber are only set for
// KindRegistered.
type Entry struct {
	ID            uuid.UUID          `json:"id"`
	Height        registry.Height    `json:"height"`
	Kind          Kind               `json:"kind"`
	EntityID      registry.EntityID  `json:"entity_id"`
	Caller        registry.Principal `json:"caller"`
	Name          string             `json:"name,omitempty"`
	LicenseNumber string             `json:"license_number,omitempty"`
	RecordedAt    time.Time          `json:"recorded_at"`
	PrevHash      Digest             `json:"prev_hash"`
	Hash          Digest             `json:"hash"`
}

// Seal links the entry to prev and stamps its hash. RecordedAt is normalized
// to UTC microseconds so the hash survives a round trip through Postgres.
func (e *Entry) Seal(prev Digest) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.RecordedAt = e.RecordedAt.UTC().Truncate(time.Microsecond)
	e.PrevHash = prev
	e.Hash = e.ComputeHash()
}

// ComputeHash hashes every field except Hash itself.
func (e Entry) ComputeHash() Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // only fails for oversized keys
	}
	h.Write(e.ID[:])
	writeUint(h, uint64(e.Height))
	writeString(h, string(e.Kind))
	writeString(h, string(e.EntityID))
	writeString(h, string(e.Caller))
	writeString(h, e.Name)
	writeString(h, e.LicenseNumber)
	writeUint(h, uint64(e.RecordedAt.UnixMicro()))
	h.Write(e.PrevHash[:])

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func writeUint(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// writeString length-prefixes s so adjacent fields cannot be shifted into each other.
func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

// Journal is implemented by every backend.
type Journal interface {
	// Append stores e. A height not greater than the last stored height is
	// rejected with sentinel.ErrConflict.
	Append(ctx context.Context, e Entry) error
	// Load returns every entry in height order.
	Load(ctx context.Context) ([]Entry, error)
	// EntriesFor returns the entries touching any of the entities, in height order.
	EntriesFor(ctx context.Context, entities ...registry.EntityID) ([]Entry, error)
}
