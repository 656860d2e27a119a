package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	jwttoken "trustreg/internal/jwt_token"
	"trustreg/internal/platform/config"
	"trustreg/internal/platform/httpserver"
	"trustreg/internal/platform/kafka"
	"trustreg/internal/platform/logger"
	"trustreg/internal/platform/metrics"
	"trustreg/internal/platform/postgres"
	"trustreg/internal/platform/redis"
	ratelimitmw "trustreg/internal/ratelimit/middleware"
	ratelimitmodels "trustreg/internal/ratelimit/models"
	"trustreg/internal/ratelimit/store/bucket"
	"trustreg/internal/registry/handler"
	"trustreg/internal/registry/journal"
	registrymetrics "trustreg/internal/registry/metrics"
	"trustreg/internal/registry/publisher"
	"trustreg/internal/registry/sequencer"
	"trustreg/internal/registry/service"
	httptransport "trustreg/internal/transport/http"
	id "trustreg/pkg/domain"
	audit "trustreg/pkg/platform/audit"
	auditpublisher "trustreg/pkg/platform/audit/publisher"
	"trustreg/pkg/platform/audit/publishers/ops"
	auditmemory "trustreg/pkg/platform/audit/store/memory"
	auditpostgres "trustreg/pkg/platform/audit/store/postgres"
)

// main wires dependencies and keeps the process lifecycle small. Registry
// logic lives in internal/registry.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("trustreg exited", "error", err)
		os.Exit(1)
	}
}

// backends holds the optional infrastructure clients shared by the journal,
// audit store and health checks.
type backends struct {
	db    *sql.DB
	redis *redis.Client
}

func (b *backends) close() {
	if b.db != nil {
		_ = b.db.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	authority, err := id.ParsePrincipal(cfg.Authority)
	if err != nil {
		return fmt.Errorf("TRUSTREG_AUTHORITY: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registryMetrics := registrymetrics.New(reg)

	j, err := openJournal(ctx, cfg, b)
	if err != nil {
		return err
	}
	seq, err := sequencer.New(ctx, authority, j, sequencer.WithMetrics(registryMetrics))
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	status := seq.Status()
	log.InfoContext(ctx, "registry state restored",
		"journal", cfg.Journal.Backend,
		"authority", string(status.Authority),
		"height", uint64(status.Height),
		"entities", status.Entities,
	)

	auditStore, err := openAuditStore(ctx, b)
	if err != nil {
		return err
	}
	auditPub := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		auditpublisher.WithLogger(log),
	)
	defer auditPub.Close()
	tracker := ops.NewTracker(auditPub,
		ops.WithSampler(ops.NewSampler(cfg.Audit.OpsSampleRate)),
		ops.WithMetrics(ops.NewMetrics(reg)),
		ops.WithLogger(log),
	)

	g, gctx := errgroup.WithContext(ctx)

	events, err := openEventPublisher(gctx, cfg, log, g)
	if err != nil {
		return err
	}

	svc := service.New(seq,
		service.WithLogger(log),
		service.WithAuditPublisher(auditPub),
		service.WithOpsTracker(tracker),
		service.WithEventPublisher(events),
		service.WithMetrics(registryMetrics),
	)

	tokens := jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httptransport.NewRouter(httptransport.Dependencies{
		Registry:       handler.New(svc, auditPub, log),
		Tokens:         jwttoken.NewJWTServiceAdapter(tokens),
		AdminToken:     cfg.AdminToken,
		Logger:         log,
		HTTPMetrics:    metrics.New(reg),
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
		HealthChecks:   b.healthChecks(),
		RateLimit:      newRateLimiter(cfg.RateLimit, b, log),
	})
	if cfg.AdminToken == "" {
		log.WarnContext(ctx, "TRUSTREG_ADMIN_TOKEN not set; admin routes disabled")
	}

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.InfoContext(gctx, "starting trustreg", "addr", cfg.Addr, "env", cfg.Environment)
		return httpserver.Run(gctx, srv, cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("trustreg stopped")
	return nil
}

func openBackends(ctx context.Context, cfg config.Server) (*backends, error) {
	b := &backends{}
	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		b.db = db
	}
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("open redis: %w", err)
	}
	b.redis = rc
	return b, nil
}

func (b *backends) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if b.db != nil {
		checks["postgres"] = b.db.PingContext
	}
	if b.redis != nil {
		checks["redis"] = b.redis.Health
	}
	return checks
}

func openJournal(ctx context.Context, cfg config.Server, b *backends) (journal.Journal, error) {
	switch cfg.Journal.Backend {
	case config.JournalPostgres:
		j := journal.NewPostgres(b.db)
		if err := j.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
		return j, nil
	case config.JournalRedis:
		return journal.NewRedis(b.redis.Client, cfg.Journal.StreamKey), nil
	default:
		return journal.NewMemory(), nil
	}
}

func openAuditStore(ctx context.Context, b *backends) (audit.Store, error) {
	if b.db == nil {
		return auditmemory.NewInMemoryStore(), nil
	}
	store := auditpostgres.New(b.db)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate audit store: %w", err)
	}
	return store, nil
}

// openEventPublisher returns the Kafka publisher when brokers are configured
// and starts its backlog relay on g. Without Kafka, events stay in memory.
func openEventPublisher(ctx context.Context, cfg config.Server, log *slog.Logger, g *errgroup.Group) (service.EventPublisher, error) {
	if !cfg.Kafka.Enabled() {
		return publisher.NewMemory(), nil
	}
	client, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", cfg.Kafka.Topic, err)
	}
	pub := publisher.NewKafka(client, cfg.Kafka.Topic, publisher.WithLogger(log))
	g.Go(func() error {
		defer client.Close()
		return pub.Run(ctx)
	})
	return pub, nil
}

func newRateLimiter(cfg config.RateLimitConfig, b *backends, log *slog.Logger) *ratelimitmw.Middleware {
	var store ratelimitmw.BucketStore = bucket.NewInMemoryBucketStore()
	if b.redis != nil {
		store = bucket.NewRedisStore(b.redis.Client)
	}
	return ratelimitmw.New(store, log,
		ratelimitmw.WithDisabled(cfg.Disabled),
		ratelimitmw.WithLimit(ratelimitmodels.ClassRead, ratelimitmodels.Limit{Requests: cfg.ReadPerMinute, Window: time.Minute}),
		ratelimitmw.WithLimit(ratelimitmodels.ClassWrite, ratelimitmodels.Limit{Requests: cfg.WritePerMinute, Window: time.Minute}),
	)
}
