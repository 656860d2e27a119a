package service

import (
	"context"

	"trustreg/contracts/registry"
	"trustreg/internal/registry/journal"
	audit "trustreg/pkg/platform/audit"
	"trustreg/pkg/requestcontext"
)

var entryActions = map[journal.Kind]audit.AuditEvent{
	journal.KindRegistered:  audit.EventManufacturerRegistered,
	journal.KindDeactivated: audit.EventManufacturerDeactivated,
	journal.KindReactivated: audit.EventManufacturerReactivated,
}

func (s *Service) baseEvent(ctx context.Context, action audit.AuditEvent, entity registry.EntityID) audit.Event {
	return audit.Event{
		Category:  action.Category(),
		Timestamp: requestcontext.Now(ctx),
		Subject:   string(entity),
		Action:    string(action),
		ActorID:   string(requestcontext.Caller(ctx)),
		RequestID: requestcontext.RequestID(ctx),
		IP:        requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	}
}

func (s *Service) emitAccepted(ctx context.Context, e journal.Entry) {
	event := s.baseEvent(ctx, entryActions[e.Kind], e.EntityID)
	event.Decision = "accepted"
	event.Height = uint64(e.Height)
	s.emit(ctx, event)
}

func (s *Service) emitDenied(ctx context.Context, operation string, entity registry.EntityID, reason string) {
	event := s.baseEvent(ctx, audit.EventMutationDenied, entity)
	event.Decision = "denied"
	event.Reason = operation + ":" + reason
	s.emit(ctx, event)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	s.logger.InfoContext(ctx, event.Action,
		"log_type", "audit",
		"category", string(event.Category),
		"entity_id", event.Subject,
		"caller", event.ActorID,
		"decision", event.Decision,
		"request_id", event.RequestID,
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"action", event.Action,
			"request_id", event.RequestID,
		)
	}
}
