package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"trustreg/contracts/registry"
	"trustreg/internal/registry/journal"
	"trustreg/internal/registry/metrics"
	"trustreg/internal/registry/models"
	"trustreg/internal/registry/sequencer"
	audit "trustreg/pkg/platform/audit"
)

const tracerName = "trustreg/internal/registry/service"

// Sequencer is the serialized environment that owns the registry.
type Sequencer interface {
	Register(ctx context.Context, caller registry.Principal, entity registry.EntityID, name, licenseNumber string) (journal.Entry, error)
	Deactivate(ctx context.Context, caller registry.Principal, entity registry.EntityID) (journal.Entry, error)
	Reactivate(ctx context.Context, caller registry.Principal, entity registry.EntityID) (journal.Entry, error)
	IsVerified(entity registry.EntityID) bool
	Record(entity registry.EntityID) (registry.Record, bool)
	List() []sequencer.Listing
	Status() sequencer.Status
	History(ctx context.Context, entity registry.EntityID) ([]journal.Entry, error)
	VerifyJournal(ctx context.Context) (sequencer.Status, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, evt models.RegistryEvent) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type OpsTracker interface {
	Track(ctx context.Context, event audit.Event)
}

// Service orchestrates registry calls: it reads the caller from the request
// context and records audit, events, metrics and spans around the sequencer.
type Service struct {
	seq            Sequencer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	opsTracker     OpsTracker
	events         EventPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithOpsTracker(tracker OpsTracker) Option {
	return func(s *Service) {
		s.opsTracker = tracker
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.events = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(seq Sequencer, opts ...Option) *Service {
	s := &Service{
		seq:    seq,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
