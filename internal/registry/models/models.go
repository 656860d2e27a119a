package models

import (
	"time"

	"github.com/google/uuid"

	"trustreg/contracts/registry"
	"trustreg/internal/registry/journal"
)

// Manufacturer is the read model for one registered entity.
type Manufacturer struct {
	EntityID      registry.EntityID `json:"entity_id"`
	Name          string            `json:"name"`
	LicenseNumber string            `json:"license_number"`
	VerifiedAt    registry.Height   `json:"verified_at"`
	Active        bool              `json:"active"`
}

func NewManufacturer(id registry.EntityID, rec registry.Record) *Manufacturer {
	return &Manufacturer{
		EntityID:      id,
		Name:          rec.Name,
		LicenseNumber: rec.LicenseNumber,
		VerifiedAt:    rec.VerifiedAt,
		Active:        rec.Active,
	}
}

// Verification is the answer to a status check.
type Verification struct {
	EntityID registry.EntityID `json:"entity_id"`
	Verified bool              `json:"verified"`
}

// Status summarizes the registry.
type Status struct {
	Authority registry.Principal `json:"authority"`
	Height    registry.Height    `json:"height"`
	Entities  int                `json:"entities"`
	LastHash  journal.Digest     `json:"last_hash"`
}

// RegisterCommand carries a registration. Name and LicenseNumber are stored verbatim.
type RegisterCommand struct {
	EntityID      registry.EntityID
	Name          string
	LicenseNumber string
}

// Mutation is the outcome of an accepted mutating call.
type Mutation struct {
	EntityID registry.EntityID `json:"entity_id"`
	Height   registry.Height   `json:"height"`
	Active   bool              `json:"active"`
}

// Event types published for downstream consumers.
const (
	EventTypeRegistered  = "manufacturer.registered"
	EventTypeDeactivated = "manufacturer.deactivated"
	EventTypeReactivated = "manufacturer.reactivated"
)

// RegistryEvent is the published form of an accepted journal entry.
type RegistryEvent struct {
	ID            uuid.UUID          `json:"id"`
	Type          string             `json:"type"`
	Height        registry.Height    `json:"height"`
	EntityID      registry.EntityID  `json:"entity_id"`
	Caller        registry.Principal `json:"caller"`
	Name          string             `json:"name,omitempty"`
	LicenseNumber string             `json:"license_number,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
	Hash          journal.Digest     `json:"hash"`
}

func EventFromEntry(e journal.Entry) RegistryEvent {
	eventType := EventTypeRegistered
	switch e.Kind {
	case journal.KindDeactivated:
		eventType = EventTypeDeactivated
	case journal.KindReactivated:
		eventType = EventTypeReactivated
	}
	return RegistryEvent{
		ID:            e.ID,
		Type:          eventType,
		Height:        e.Height,
		EntityID:      e.EntityID,
		Caller:        e.Caller,
		Name:          e.Name,
		LicenseNumber: e.LicenseNumber,
		OccurredAt:    e.RecordedAt,
		Hash:          e.Hash,
	}
}
