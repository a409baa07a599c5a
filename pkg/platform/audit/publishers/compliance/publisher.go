// Package compliance provides a fail-closed audit publisher for registry
// mutations.
//
// Emit writes synchronously. When the write fails an error is returned and the
// calling registry operation MUST fail, which rolls back its transaction.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"provenance/pkg/domain"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/requestcontext"
)

// Publisher emits compliance events with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher. With the Postgres store the write joins
// the registry transaction carried by ctx.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes event to the audit store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	start := time.Now()

	if event.AssetID.IsNil() {
		return fmt.Errorf("compliance event requires AssetID")
	}
	if event.Action == "" {
		return fmt.Errorf("compliance event requires Action")
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"asset_id", event.AssetID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted(event.Category)
	}
	return nil
}

// List returns the events recorded for an asset.
func (p *Publisher) List(ctx context.Context, assetID domain.AssetID) ([]audit.Event, error) {
	return p.store.ListByAsset(ctx, assetID)
}

// Close is a no-op for the synchronous publisher.
func (p *Publisher) Close() error {
	return nil
}
