package handler

import (
	"time"

	"trustreg/contracts/registry"
	"trustreg/internal/registry/models"
	audit "trustreg/pkg/platform/audit"
)

type ListResponse struct {
	Manufacturers []*models.Manufacturer `json:"manufacturers"`
	Count         int                    `json:"count"`
}

type HistoryResponse struct {
	EntityID registry.EntityID      `json:"entity_id"`
	Events   []models.RegistryEvent `json:"events"`
}

// JournalCheckResponse reports the live registry state next to the outcome
// of re-verifying the durable journal.
type JournalCheckResponse struct {
	models.Status
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type AuditResponse struct {
	Events []AuditEventResponse `json:"events"`
	Count  int                  `json:"count"`
}

type AuditEventResponse struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject,omitempty"`
	Action    string    `json:"action"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	Height    uint64    `json:"height,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func toAuditResponse(events []audit.Event) *AuditResponse {
	out := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, AuditEventResponse{
			ID:        e.ID.String(),
			Category:  string(e.Category),
			Timestamp: e.Timestamp,
			Subject:   e.Subject,
			Action:    e.Action,
			Decision:  e.Decision,
			Reason:    e.Reason,
			ActorID:   e.ActorID,
			Height:    e.Height,
			RequestID: e.RequestID,
		})
	}
	return &AuditResponse{Events: out, Count: len(out)}
}
