// Package registry is the manufacturer verification contract: an allow-list
// owned by a single authority principal.
//
// The Registry is a bounded state machine per entity:
//
//	Unregistered -> Active <-> Inactive
//
// Unregistered is the absence of a record. Registration is one-shot: once an
// entity has a record it keeps it for the registry's lifetime, and only the
// Active flag changes afterwards.
//
// The Registry is not safe for concurrent use. Its environment (see
// internal/registry/sequencer) totally orders calls and supplies the caller
// principal and the current height.
package registry

import "sort"

// Principal identifies a caller. It is opaque to the registry and compared by value.
type Principal string

// EntityID identifies a manufacturer (or any other verified party).
type EntityID string

// Height is the monotonic counter supplied by the execution environment.
type Height uint64

// Record is the verification metadata stored for one entity.
//
// Invariants:
//   - VerifiedAt is set at registration and never changes
//   - Active is the only field mutated after creation
type Record struct {
	Name          string `json:"name"`
	LicenseNumber string `json:"license_number"`
	VerifiedAt    Height `json:"verified_at"`
	Active        bool   `json:"active"`
}

// Registry owns the authority principal and the entity records.
type Registry struct {
	authority Principal
	records   map[EntityID]*Record
}

// New constructs an empty registry controlled by authority.
func New(authority Principal) *Registry {
	return &Registry{
		authority: authority,
		records:   make(map[EntityID]*Record),
	}
}

// Authority returns the principal allowed to mutate the registry.
func (r *Registry) Authority() Principal {
	return r.authority
}

// CanRegister reports whether Register would succeed, without mutating state.
func (r *Registry) CanRegister(caller Principal, entity EntityID) error {
	if caller != r.authority {
		return ErrNotAuthorized
	}
	if _, ok := r.records[entity]; ok {
		return ErrAlreadyRegistered
	}
	return nil
}

// Register records entity as verified at height. Name and license number are
// stored verbatim. An entity that already has a record is rejected whether it
// is active or not.
func (r *Registry) Register(caller Principal, height Height, entity EntityID, name, licenseNumber string) error {
	if err := r.CanRegister(caller, entity); err != nil {
		return err
	}
	r.records[entity] = &Record{
		Name:          name,
		LicenseNumber: licenseNumber,
		VerifiedAt:    height,
		Active:        true,
	}
	return nil
}

// IsVerified reports whether entity has a record and that record is active.
// Unknown entities are simply not verified.
func (r *Registry) IsVerified(entity EntityID) bool {
	rec, ok := r.records[entity]
	return ok && rec.Active
}

// CanDeactivate reports whether Deactivate would succeed, without mutating state.
func (r *Registry) CanDeactivate(caller Principal, entity EntityID) error {
	return r.canToggle(caller, entity)
}

// Deactivate marks entity inactive. Deactivating an inactive entity succeeds.
func (r *Registry) Deactivate(caller Principal, entity EntityID) error {
	return r.setActive(caller, entity, false)
}

// CanReactivate reports whether Reactivate would succeed, without mutating state.
func (r *Registry) CanReactivate(caller Principal, entity EntityID) error {
	return r.canToggle(caller, entity)
}

// Reactivate marks entity active again. Reactivating an active entity succeeds.
func (r *Registry) Reactivate(caller Principal, entity EntityID) error {
	return r.setActive(caller, entity, true)
}

// Record returns a copy of the stored record for entity.
func (r *Registry) Record(entity EntityID) (Record, bool) {
	rec, ok := r.records[entity]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the number of entities ever registered.
func (r *Registry) Len() int {
	return len(r.records)
}

// Entities returns the registered entity IDs in lexical order.
func (r *Registry) Entities() []EntityID {
	ids := make([]EntityID, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) canToggle(caller Principal, entity EntityID) error {
	if caller != r.authority {
		return ErrNotAuthorized
	}
	if _, ok := r.records[entity]; !ok {
		return ErrNotFound
	}
	return nil
}

func (r *Registry) setActive(caller Principal, entity EntityID, active bool) error {
	if err := r.canToggle(caller, entity); err != nil {
		return err
	}
	r.records[entity].Active = active
	return nil
}
