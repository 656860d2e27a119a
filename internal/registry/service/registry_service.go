package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trustreg/contracts/registry"
	"trustreg/internal/registry/journal"
	"trustreg/internal/registry/models"
	"trustreg/internal/registry/sequencer"
	dErrors "trustreg/pkg/domain-errors"
	audit "trustreg/pkg/platform/audit"
	"trustreg/pkg/platform/sentinel"
	"trustreg/pkg/requestcontext"
)

const (
	opRegister   = "register"
	opDeactivate = "deactivate"
	opReactivate = "reactivate"
)

// Register records cmd.EntityID as verified. Only the authority may call it,
// and an entity can be registered once.
func (s *Service) Register(ctx context.Context, cmd models.RegisterCommand) (*models.Mutation, error) {
	return s.mutate(ctx, opRegister, cmd.EntityID, func(ctx context.Context, caller registry.Principal) (journal.Entry, error) {
		return s.seq.Register(ctx, caller, cmd.EntityID, cmd.Name, cmd.LicenseNumber)
	})
}

// Deactivate marks entity inactive. Idempotent.
func (s *Service) Deactivate(ctx context.Context, entity registry.EntityID) (*models.Mutation, error) {
	return s.mutate(ctx, opDeactivate, entity, func(ctx context.Context, caller registry.Principal) (journal.Entry, error) {
		return s.seq.Deactivate(ctx, caller, entity)
	})
}

// Reactivate marks entity active again. Idempotent.
func (s *Service) Reactivate(ctx context.Context, entity registry.EntityID) (*models.Mutation, error) {
	return s.mutate(ctx, opReactivate, entity, func(ctx context.Context, caller registry.Principal) (journal.Entry, error) {
		return s.seq.Reactivate(ctx, caller, entity)
	})
}

func (s *Service) mutate(
	ctx context.Context,
	operation string,
	entity registry.EntityID,
	call func(ctx context.Context, caller registry.Principal) (journal.Entry, error),
) (*models.Mutation, error) {
	start := time.Now()
	caller := requestcontext.Caller(ctx)

	ctx, span := s.tracer.Start(ctx, "registry."+operation, trace.WithAttributes(
		attribute.String("registry.entity_id", string(entity)),
		attribute.String("registry.caller", string(caller)),
	))
	defer span.End()

	entry, err := call(ctx, caller)
	if s.metrics != nil {
		s.metrics.ObserveMutation(operation, start)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if reason := denialReason(err); reason != "" {
			s.logger.WarnContext(ctx, "registry mutation denied",
				"operation", operation,
				"reason", reason,
				"entity_id", string(entity),
				"caller", string(caller),
				"request_id", requestcontext.RequestID(ctx),
			)
			if s.metrics != nil {
				s.metrics.IncDenial(operation, reason)
			}
			s.emitDenied(ctx, operation, entity, reason)
		} else {
			s.logger.ErrorContext(ctx, "registry mutation failed",
				"operation", operation,
				"error", err,
				"entity_id", string(entity),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil, wrapRegistryErr(err)
	}

	span.SetAttributes(attribute.Int64("registry.height", int64(entry.Height)))
	s.incrementAccepted(entry.Kind)
	s.emitAccepted(ctx, entry)
	s.publish(ctx, entry)

	return &models.Mutation{
		EntityID: entity,
		Height:   entry.Height,
		Active:   entry.Kind != journal.KindDeactivated,
	}, nil
}

// IsVerified is the public status check. It never fails.
func (s *Service) IsVerified(ctx context.Context, entity registry.EntityID) models.Verification {
	_, span := s.tracer.Start(ctx, "registry.is_verified", trace.WithAttributes(
		attribute.String("registry.entity_id", string(entity)),
	))
	defer span.End()

	verified := s.seq.IsVerified(entity)
	span.SetAttributes(attribute.Bool("registry.verified", verified))
	if s.metrics != nil {
		s.metrics.IncVerificationCheck(verified)
	}
	if s.opsTracker != nil {
		event := s.baseEvent(ctx, audit.EventVerificationChecked, entity)
		event.Decision = "unverified"
		if verified {
			event.Decision = "verified"
		}
		s.opsTracker.Track(ctx, event)
	}
	return models.Verification{EntityID: entity, Verified: verified}
}

func (s *Service) GetManufacturer(ctx context.Context, entity registry.EntityID) (*models.Manufacturer, error) {
	rec, ok := s.seq.Record(entity)
	if !ok {
		return nil, wrapRegistryErr(registry.ErrNotFound)
	}
	return models.NewManufacturer(entity, rec), nil
}

func (s *Service) ListManufacturers(ctx context.Context) []*models.Manufacturer {
	listings := s.seq.List()
	out := make([]*models.Manufacturer, 0, len(listings))
	for _, l := range listings {
		out = append(out, models.NewManufacturer(l.EntityID, l.Record))
	}
	return out
}

func (s *Service) Status(ctx context.Context) models.Status {
	return toStatus(s.seq.Status())
}

// History returns the accepted mutations for entity, oldest first.
func (s *Service) History(ctx context.Context, entity registry.EntityID) ([]models.RegistryEvent, error) {
	if _, ok := s.seq.Record(entity); !ok {
		return nil, wrapRegistryErr(registry.ErrNotFound)
	}
	entries, err := s.seq.History(ctx, entity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
	}
	events := make([]models.RegistryEvent, 0, len(entries))
	for _, e := range entries {
		events = append(events, models.EventFromEntry(e))
	}
	return events, nil
}

// VerifyJournal checks the durable journal against the live registry.
func (s *Service) VerifyJournal(ctx context.Context) (models.Status, error) {
	ctx, span := s.tracer.Start(ctx, "registry.verify_journal")
	defer span.End()

	status, err := s.seq.VerifyJournal(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, sentinel.ErrTampered) {
			s.logger.ErrorContext(ctx, "journal integrity check failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			event := s.baseEvent(ctx, audit.EventJournalTampered, "")
			event.Decision = "failed"
			event.Reason = err.Error()
			event.Height = uint64(status.Height)
			s.emit(ctx, event)
			return toStatus(status), dErrors.Wrap(err, dErrors.CodeInvariantViolation, "journal integrity check failed")
		}
		return toStatus(status), dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read journal")
	}
	return toStatus(status), nil
}

func (s *Service) publish(ctx context.Context, e journal.Entry) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, models.EventFromEntry(e)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish registry event",
			"error", err,
			"height", uint64(e.Height),
			"entity_id", string(e.EntityID),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) incrementAccepted(kind journal.Kind) {
	if s.metrics == nil {
		return
	}
	switch kind {
	case journal.KindRegistered:
		s.metrics.Registrations.Inc()
	case journal.KindDeactivated:
		s.metrics.Deactivations.Inc()
	case journal.KindReactivated:
		s.metrics.Reactivations.Inc()
	}
}

func toStatus(st sequencer.Status) models.Status {
	return models.Status{
		Authority: st.Authority,
		Height:    st.Height,
		Entities:  st.Entities,
		LastHash:  st.LastHash,
	}
}
