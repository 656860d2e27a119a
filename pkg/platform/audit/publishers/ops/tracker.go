// Package ops tracks high-volume operational audit events, such as public
// verification checks, with sampling and without ever failing the caller.
package ops

import (
	"context"
	"log/slog"

	audit "trustreg/pkg/platform/audit"
)

// Emitter is the audit sink the tracker forwards kept events to.
type Emitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Tracker samples ops events and forwards the kept ones.
type Tracker struct {
	emitter Emitter
	sampler *Sampler
	metrics *Metrics
	logger  *slog.Logger
}

type Option func(*Tracker)

func WithSampler(s *Sampler) Option {
	return func(t *Tracker) {
		t.sampler = s
	}
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func NewTracker(emitter Emitter, opts ...Option) *Tracker {
	t := &Tracker{
		emitter: emitter,
		sampler: NewSampler(1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records event if the sampler keeps it. Failures are logged and counted only.
func (t *Tracker) Track(ctx context.Context, event audit.Event) {
	if event.Category == "" {
		event.Category = audit.CategoryOperations
	}
	if !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.Sampled.Inc()
		}
		return
	}
	if err := t.emitter.Emit(ctx, event); err != nil {
		if t.metrics != nil {
			t.metrics.PersistFailures.Inc()
		}
		t.logger.DebugContext(ctx, "ops audit event not persisted",
			"error", err,
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return
	}
	if t.metrics != nil {
		t.metrics.Tracked.Inc()
	}
}
