package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"provenance/internal/jwt_token"
	"provenance/internal/platform/config"
	"provenance/internal/platform/metrics"
	"provenance/internal/platform/middleware"
	"provenance/internal/platform/postgres"
	redisclient "provenance/internal/platform/redis"
	"provenance/internal/registry/cache"
	"provenance/internal/registry/handler"
	"provenance/internal/registry/service"
	memorystore "provenance/internal/registry/store/memory"
	postgresstore "provenance/internal/registry/store/postgres"
	"provenance/pkg/domain"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/audit/outbox"
	"provenance/pkg/platform/audit/publishers/compliance"
	auditmemory "provenance/pkg/platform/audit/store/memory"
	auditpostgres "provenance/pkg/platform/audit/store/postgres"
	"provenance/pkg/platform/circuit"
	"provenance/pkg/platform/httputil"
	"provenance/pkg/platform/middleware/admin"
	"provenance/pkg/platform/middleware/metadata"
	"provenance/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

// app holds every long-lived dependency of the serve command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	db       *sql.DB
	redis    *redisclient.Client
	kafka    *kgo.Client
	relay    *outbox.Relay
	service  *service.Service
	router   http.Handler
}

// newApp wires the registry. Without a Postgres URL it runs on the in-memory
// store, and without Redis it caches assets in process.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var (
		repo       service.Repository
		auditStore audit.Store
	)
	if cfg.Postgres.URL != "" {
		if cfg.Postgres.AutoMigrate {
			if err := postgres.MigrateUp(cfg.Postgres.URL); err != nil {
				return nil, err
			}
			logger.InfoContext(ctx, "schema migrated")
		}
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.db = db
		repo = postgresstore.New(db)
		auditStore = auditpostgres.New(db)
		logger.InfoContext(ctx, "using postgres registry store")
	} else {
		repo = memorystore.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
		logger.WarnContext(ctx, "postgres not configured, registry state is in memory only")
	}

	assetCache, err := a.newCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher := compliance.New(auditStore,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics(a.registry)),
	)
	svc, err := service.New(repo, domain.Identity(cfg.Registry.MintingAuthority),
		service.WithLogger(logger),
		service.WithMetrics(service.NewMetrics(a.registry)),
		service.WithAuditPublisher(publisher),
		service.WithCache(assetCache),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = svc

	if err := a.newRelay(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.router = a.newRouter()
	return a, nil
}

// newCache picks the asset cache. Redis outlives an in-memory ledger, whose
// ids restart at 1, so it is only used on top of Postgres.
func (a *app) newCache(ctx context.Context) (service.AssetCache, error) {
	if a.db == nil {
		if a.cfg.Redis.URL != "" {
			a.logger.WarnContext(ctx, "redis configured without postgres, using local asset cache")
		}
		return cache.NewLocal(a.cfg.Registry.CacheTTL), nil
	}
	client, err := redisclient.New(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return cache.NewLocal(a.cfg.Registry.CacheTTL), nil
	}
	a.redis = client
	a.logger.InfoContext(ctx, "using redis asset cache")
	breaker := circuit.New("redis-asset-cache",
		circuit.WithFailureThreshold(a.cfg.Registry.CacheFailureThreshold),
		circuit.WithCooldown(a.cfg.Registry.CacheCooldown),
	)
	return cache.NewGuarded(cache.NewRedis(client.Client, a.cfg.Registry.CacheTTL), breaker, a.logger), nil
}

// newRelay starts a Kafka client for the outbox relay. The relay needs the
// Postgres outbox, so Kafka settings are ignored in memory mode.
func (a *app) newRelay(ctx context.Context) error {
	if !a.cfg.Kafka.Enabled() {
		return nil
	}
	if a.db == nil {
		a.logger.WarnContext(ctx, "kafka configured without postgres, audit relay disabled")
		return nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(a.cfg.Kafka.Brokers...),
		kgo.ClientID("provenance-outbox-relay"),
	)
	if err != nil {
		return fmt.Errorf("kafka client: %w", err)
	}
	a.kafka = client

	if err := outbox.EnsureTopic(ctx, kadm.NewClient(client), a.cfg.Kafka.Topic,
		a.cfg.Kafka.Partitions, a.cfg.Kafka.ReplicationFactor); err != nil {
		return err
	}

	a.relay = outbox.NewRelay(a.db, client, a.cfg.Kafka.Topic,
		outbox.WithBatchSize(a.cfg.Kafka.BatchSize),
		outbox.WithPollInterval(a.cfg.Kafka.PollInterval),
		outbox.WithLogger(a.logger),
		outbox.WithMetrics(outbox.NewMetrics(a.registry)),
	)
	return nil
}

func (a *app) newRouter() http.Handler {
	var validator middleware.JWTValidator
	if a.cfg.Auth.JWTSigningKey != "" {
		validator = jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(
			a.cfg.Auth.JWTSigningKey,
			a.cfg.Auth.JWTIssuer,
			a.cfg.Auth.JWTAudience,
		))
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(a.logger))
	r.Use(middleware.LatencyMiddleware(metrics.New(a.registry)))

	r.Get("/healthz", a.handleHealth)
	r.With(admin.RequireAdminToken(a.cfg.Auth.AdminToken, a.logger)).
		Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.cfg.Server.RequestTimeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.CallerIdentity(a.cfg.Auth.IdentityHeader, validator, a.logger))
		handler.New(a.service, a.logger).Register(r)
	})
	return r
}

type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Minting string            `json:"minting_authority"`
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status:  "ok",
		Checks:  map[string]string{},
		Minting: a.service.MintingAuthority().String(),
	}
	check := func(name string, err error) {
		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			return
		}
		resp.Checks[name] = "ok"
	}
	if a.db != nil {
		check("postgres", a.db.PingContext(ctx))
	}
	if a.redis != nil {
		check("redis", a.redis.Health(ctx))
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

// Close releases external connections.
func (a *app) Close() error {
	var errs []error
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
