// Package sequencer is the execution environment around the registry contract.
//
// It owns the single Registry, serializes every call, assigns each accepted
// mutation the next height and makes the mutation durable in the journal
// before applying it. A failed append leaves the registry untouched and does
// not consume a height.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trustreg/contracts/registry"
	"trustreg/internal/registry/journal"
	"trustreg/internal/registry/metrics"
	"trustreg/pkg/platform/sentinel"
)

// ErrAuthorityMismatch is returned at startup when the journal holds entries
// written by a principal other than the configured authority.
var ErrAuthorityMismatch = errors.New("journal was written under a different authority")

// catchUpTimeout bounds the journal read-back after a failed append. It is
// detached from the caller's context, which may be what failed the append.
const catchUpTimeout = 5 * time.Second

// Listing pairs an entity with its record.
type Listing struct {
	EntityID registry.EntityID
	Record   registry.Record
}

// Status is a consistent snapshot of sequencer state.
type Status struct {
	Authority registry.Principal
	Height    registry.Height
	Entities  int
	LastHash  journal.Digest
}

type Sequencer struct {
	mu       sync.Mutex
	reg      *registry.Registry
	journal  journal.Journal
	height   registry.Height
	lastHash journal.Digest
	now      func() time.Time
	metrics  *metrics.Metrics
}

type Option func(*Sequencer)

func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) {
		s.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sequencer) {
		s.metrics = m
	}
}

// New replays j into a fresh registry owned by authority. A journal that
// fails verification or cannot be replayed is rejected.
func New(ctx context.Context, authority registry.Principal, j journal.Journal, opts ...Option) (*Sequencer, error) {
	s := &Sequencer{
		reg:     registry.New(authority),
		journal: j,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	entries, err := j.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	if err := journal.Verify(ctx, entries); err != nil {
		return nil, fmt.Errorf("verify journal: %w", err)
	}
	for _, e := range entries {
		if err := s.apply(e); err != nil {
			if errors.Is(err, registry.ErrNotAuthorized) {
				return nil, fmt.Errorf("replay height %d: %w", e.Height, ErrAuthorityMismatch)
			}
			return nil, fmt.Errorf("replay height %d: %v: %w", e.Height, err, sentinel.ErrTampered)
		}
		s.height = e.Height
		s.lastHash = e.Hash
	}
	s.publishState()
	return s, nil
}

// Register validates, journals and applies a registration.
func (s *Sequencer) Register(ctx context.Context, caller registry.Principal, entity registry.EntityID, name, licenseNumber string) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.CanRegister(caller, entity); err != nil {
		return journal.Entry{}, err
	}
	e := s.next(journal.KindRegistered, caller, entity)
	e.Name = name
	e.LicenseNumber = licenseNumber
	return s.commit(ctx, e)
}

// Deactivate validates, journals and applies a deactivation.
func (s *Sequencer) Deactivate(ctx context.Context, caller registry.Principal, entity registry.EntityID) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.CanDeactivate(caller, entity); err != nil {
		return journal.Entry{}, err
	}
	return s.commit(ctx, s.next(journal.KindDeactivated, caller, entity))
}

// Reactivate validates, journals and applies a reactivation.
func (s *Sequencer) Reactivate(ctx context.Context, caller registry.Principal, entity registry.EntityID) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.CanReactivate(caller, entity); err != nil {
		return journal.Entry{}, err
	}
	return s.commit(ctx, s.next(journal.KindReactivated, caller, entity))
}

func (s *Sequencer) IsVerified(entity registry.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.IsVerified(entity)
}

func (s *Sequencer) Record(entity registry.EntityID) (registry.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Record(entity)
}

// List returns every record ordered by entity ID.
func (s *Sequencer) List() []Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.reg.Entities()
	out := make([]Listing, 0, len(ids))
	for _, id := range ids {
		rec, _ := s.reg.Record(id)
		out = append(out, Listing{EntityID: id, Record: rec})
	}
	return out
}

func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Authority: s.reg.Authority(),
		Height:    s.height,
		Entities:  s.reg.Len(),
		LastHash:  s.lastHash,
	}
}

// History returns the journal entries for entity.
func (s *Sequencer) History(ctx context.Context, entity registry.EntityID) ([]journal.Entry, error) {
	return s.journal.EntriesFor(ctx, entity)
}

// VerifyJournal re-reads the journal and checks it against the live state.
func (s *Sequencer) VerifyJournal(ctx context.Context) (Status, error) {
	status := s.Status()
	entries, err := s.journal.Load(ctx)
	if err != nil {
		return status, fmt.Errorf("load journal: %w", err)
	}
	if err := journal.Verify(ctx, entries); err != nil {
		return status, err
	}
	if n := len(entries); n > 0 {
		last := entries[n-1]
		if last.Height != status.Height || last.Hash != status.LastHash {
			return status, fmt.Errorf("journal head %d does not match height %d: %w", last.Height, status.Height, sentinel.ErrTampered)
		}
	} else if status.Height > 0 {
		return status, fmt.Errorf("journal is empty at height %d: %w", status.Height, sentinel.ErrTampered)
	}
	return status, nil
}

func (s *Sequencer) next(kind journal.Kind, caller registry.Principal, entity registry.EntityID) journal.Entry {
	return journal.Entry{
		Height:     s.height + 1,
		Kind:       kind,
		EntityID:   entity,
		Caller:     caller,
		RecordedAt: s.now(),
	}
}

// commit must be called with s.mu held and only after the Can* check passed.
func (s *Sequencer) commit(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	e.Seal(s.lastHash)

	start := time.Now()
	err := s.journal.Append(ctx, e)
	if s.metrics != nil {
		s.metrics.ObserveJournalAppend(time.Since(start))
	}
	if err != nil {
		stored, rerr := s.catchUp(ctx, e)
		switch {
		case stored:
			return e, nil
		case rerr != nil:
			return journal.Entry{}, fmt.Errorf("append journal entry: %w (read back: %v)", err, rerr)
		default:
			return journal.Entry{}, fmt.Errorf("append journal entry: %w", err)
		}
	}

	if err := s.apply(e); err != nil {
		// Unreachable while the mutex is held: the same check passed above.
		panic(fmt.Sprintf("sequencer: journaled entry %d failed to apply: %v", e.Height, err))
	}
	s.advance(e)
	return e, nil
}

// catchUp runs after a failed append, whose entry may still have been stored
// (a commit acknowledged after the request deadline, a dropped connection).
// It reads the journal back and applies every entry past the live height that
// extends the chain. It reports whether e was among them. Must be called with
// s.mu held.
func (s *Sequencer) catchUp(ctx context.Context, e journal.Entry) (bool, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catchUpTimeout)
	defer cancel()

	entries, err := s.journal.Load(ctx)
	if err != nil {
		return false, err
	}
	stored := false
	for _, x := range entries {
		if x.Height <= s.height {
			continue
		}
		if x.Height != s.height+1 || x.PrevHash != s.lastHash || x.ComputeHash() != x.Hash {
			return stored, fmt.Errorf("journal entry %d does not extend height %d: %w", x.Height, s.height, sentinel.ErrTampered)
		}
		if err := s.apply(x); err != nil {
			return stored, fmt.Errorf("journal entry %d: %v: %w", x.Height, err, sentinel.ErrTampered)
		}
		s.advance(x)
		if x.Hash == e.Hash {
			stored = true
		}
	}
	return stored, nil
}

func (s *Sequencer) advance(e journal.Entry) {
	s.height = e.Height
	s.lastHash = e.Hash
	s.publishState()
}

func (s *Sequencer) apply(e journal.Entry) error {
	switch e.Kind {
	case journal.KindRegistered:
		return s.reg.Register(e.Caller, e.Height, e.EntityID, e.Name, e.LicenseNumber)
	case journal.KindDeactivated:
		return s.reg.Deactivate(e.Caller, e.EntityID)
	case journal.KindReactivated:
		return s.reg.Reactivate(e.Caller, e.EntityID)
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}

func (s *Sequencer) publishState() {
	if s.metrics != nil {
		s.metrics.SetState(uint64(s.height), s.reg.Len())
	}
}
