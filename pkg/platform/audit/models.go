package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers accepted registry state changes. These are the
	// regulatory trail of who verified which manufacturer and when.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected mutations and other access violations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine reads such as verification checks.
	// These can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	// Subject is the entity the action targeted.
	Subject  string
	Action   string
	Decision string
	Reason   string
	// ActorID is the caller principal, empty for anonymous reads.
	ActorID   string
	Height    uint64
	RequestID string
	IP        string
	Device    string
}

type AuditEvent string

const (
	EventManufacturerRegistered  AuditEvent = "manufacturer_registered"
	EventManufacturerDeactivated AuditEvent = "manufacturer_deactivated"
	EventManufacturerReactivated AuditEvent = "manufacturer_reactivated"

	EventMutationDenied  AuditEvent = "registry_mutation_denied"
	EventJournalTampered AuditEvent = "journal_tampered"

	EventVerificationChecked AuditEvent = "verification_checked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventManufacturerRegistered:  CategoryCompliance,
	EventManufacturerDeactivated: CategoryCompliance,
	EventManufacturerReactivated: CategoryCompliance,

	EventMutationDenied:  CategorySecurity,
	EventJournalTampered: CategorySecurity,

	EventVerificationChecked: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
