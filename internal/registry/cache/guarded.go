package cache

import (
	"context"
	"errors"
	"log/slog"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	"provenance/pkg/platform/circuit"
	"provenance/pkg/platform/sentinel"
)

// Backend is the cache contract shared by every implementation in this
// package.
type Backend interface {
	Get(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	Set(ctx context.Context, asset *models.Asset) error
}

// Guarded puts a circuit breaker in front of a remote cache. While the
// circuit is open reads report a miss and writes are dropped, so the
// registry serves from its store without waiting on a dead cache.
type Guarded struct {
	next    Backend
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewGuarded wraps next. A nil logger discards breaker transitions.
func NewGuarded(next Backend, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Get(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	if !g.breaker.Allow() {
		return nil, sentinel.ErrNotFound
	}
	asset, err := g.next.Get(ctx, id)
	g.record(ctx, err)
	return asset, err
}

func (g *Guarded) Set(ctx context.Context, asset *models.Asset) error {
	if !g.breaker.Allow() {
		return nil
	}
	err := g.next.Set(ctx, asset)
	g.record(ctx, err)
	return err
}

// record treats only unavailability as a failure. A miss is a healthy answer.
func (g *Guarded) record(ctx context.Context, err error) {
	if err != nil && errors.Is(err, sentinel.ErrUnavailable) {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "asset cache circuit opened",
				"breaker", g.breaker.Name(),
				"error", err,
			)
		}
		return
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "asset cache circuit closed", "breaker", g.breaker.Name())
	}
}
