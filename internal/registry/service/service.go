// Package service implements the part provenance registry.
//
// Every mutating operation runs as one store transaction: it either commits
// all of its writes together with its compliance audit event, or changes
// nothing. Checks run in a fixed order (existence, authorization, bounds,
// then uniqueness or capacity) so that callers always see the same error for
// the same request.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/sentinel"
	"provenance/pkg/requestcontext"
)

// Repository is a registry store that can also open transactions.
type Repository interface {
	store.Store
	store.Tx
}

// AuditPublisher records audit events. Emit called with a transaction
// context must join that transaction.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
	List(ctx context.Context, assetID domain.AssetID) ([]audit.Event, error)
}

// AssetCache caches immutable asset records. Get returns
// sentinel.ErrNotFound on a miss.
type AssetCache interface {
	Get(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	Set(ctx context.Context, asset *models.Asset) error
}

// Service is the registry facade over all ledgers.
type Service struct {
	repo             Repository
	mintingAuthority domain.Identity
	logger           *slog.Logger
	metrics          *Metrics
	auditor          AuditPublisher
	cache            AssetCache
	tracer           trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithCache(c AssetCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// ErrNoMintingAuthority is returned by New when no minting authority is given.
var ErrNoMintingAuthority = errors.New("minting authority is required")

// New creates a registry. The minting authority is fixed for the lifetime of
// the Service.
func New(repo Repository, mintingAuthority domain.Identity, opts ...Option) (*Service, error) {
	if mintingAuthority.IsNil() {
		return nil, ErrNoMintingAuthority
	}
	s := &Service{
		repo:             repo,
		mintingAuthority: mintingAuthority,
		logger:           slog.Default(),
		tracer:           otel.Tracer("provenance/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MintingAuthority returns the identity allowed to create assets.
func (s *Service) MintingAuthority() domain.Identity {
	return s.mintingAuthority
}

// begin opens a span and returns the func that records the outcome.
func (s *Service) begin(ctx context.Context, op string, assetID domain.AssetID) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry."+op, trace.WithAttributes(
		attribute.String("registry.operation", op),
	))
	if !assetID.IsNil() {
		span.SetAttributes(attribute.Int64("registry.asset_id", int64(assetID)))
	}
	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			result = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.SetAttributes(attribute.String("registry.result", result))
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(op, result, time.Since(start).Seconds())
		}
	}
}

// internal wraps an uncoded storage failure. Coded errors pass through.
func internal(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// requireAsset loads an asset inside a transaction, mapping absence to
// CodeInvalidID.
func requireAsset(ctx context.Context, st store.Store, id domain.AssetID) (*models.Asset, error) {
	asset, err := st.FindAsset(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidID, "asset not found")
		}
		return nil, internal(err, "failed to load asset")
	}
	return asset, nil
}

// requireCustodian checks that caller currently holds asset id.
func requireCustodian(ctx context.Context, st store.Store, id domain.AssetID, caller domain.Identity) error {
	if _, err := requireAsset(ctx, st, id); err != nil {
		return err
	}
	owner, err := st.FindOwner(ctx, id)
	if err != nil {
		return internal(err, "failed to load custodian")
	}
	if owner != caller {
		return dErrors.New(dErrors.CodeNotOwner, "caller is not the current custodian")
	}
	return nil
}

// requireCreator checks that caller minted asset id.
func requireCreator(ctx context.Context, st store.Store, id domain.AssetID, caller domain.Identity) error {
	asset, err := requireAsset(ctx, st, id)
	if err != nil {
		return err
	}
	if asset.Creator != caller {
		return dErrors.New(dErrors.CodeNotAuthorized, "caller is not the asset creator")
	}
	return nil
}

// emit writes a compliance event inside the current transaction. A failed
// write fails the operation.
func (s *Service) emit(ctx context.Context, action audit.AuditEvent, assetID domain.AssetID, actor domain.Identity, subject, detail string) error {
	if s.auditor == nil {
		return nil
	}
	err := s.auditor.Emit(ctx, audit.Event{
		AssetID: assetID,
		ActorID: actor,
		Action:  string(action),
		Subject: subject,
		Detail:  detail,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// logAudit writes the success line for a committed mutation.
func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, assetID domain.AssetID, actor domain.Identity, attrs ...any) {
	args := append([]any{
		"asset_id", assetID,
		"actor", actor,
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit",
	}, attrs...)
	s.logger.InfoContext(ctx, string(action), args...)
}

// reportRejection records denied and blocked attempts as security events.
// It runs after the failed transaction has rolled back, so it is best effort.
func (s *Service) reportRejection(ctx context.Context, err error, op string, assetID domain.AssetID, caller domain.Identity, subject string) {
	var event audit.AuditEvent
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotAuthorized, dErrors.CodeNotOwner:
		event = audit.EventAuthorizationDenied
	case dErrors.CodeTransferRestricted:
		event = audit.EventTransferBlocked
	default:
		return
	}

	s.logger.WarnContext(ctx, string(event),
		"operation", op,
		"asset_id", assetID,
		"caller", caller,
		"reason", dErrors.CodeOf(err),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.auditor == nil || assetID.IsNil() {
		return
	}
	if emitErr := s.auditor.Emit(ctx, audit.Event{
		AssetID: assetID,
		ActorID: caller,
		Action:  string(event),
		Subject: subject,
		Detail:  op,
	}); emitErr != nil {
		s.logger.ErrorContext(ctx, "failed to record security event",
			"event", event,
			"asset_id", assetID,
			"error", emitErr,
		)
	}
}

// AuditTrail returns the audit events recorded for an asset.
func (s *Service) AuditTrail(ctx context.Context, assetID domain.AssetID) (events []audit.Event, err error) {
	ctx, done := s.begin(ctx, "audit_trail", assetID)
	defer func() { done(err) }()

	if s.auditor == nil {
		return []audit.Event{}, nil
	}
	events, err = s.auditor.List(ctx, assetID)
	if err != nil {
		return nil, internal(err, "failed to list audit events")
	}
	return events, nil
}
