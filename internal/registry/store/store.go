// Package store declares the persistence contract of the registry ledgers.
//
// Implementations report storage facts with pkg/platform/sentinel errors
// (ErrNotFound, ErrConflict, ErrCapacity) and never produce coded domain
// errors; translation belongs to the service.
package store

import (
	"context"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
)

// Store is the union of every ledger the registry keeps for an asset.
type Store interface {
	// NextAssetID returns the id the next created asset receives. It does
	// not reserve it; CreateAsset advances the counter.
	NextAssetID(ctx context.Context) (domain.AssetID, error)
	// CreateAsset stores the asset, sets its custodian to the creator, starts
	// its provenance count at zero and advances the id counter past it.
	// Returns ErrConflict when the id slot is taken.
	CreateAsset(ctx context.Context, asset *models.Asset) error
	FindAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	FindOwner(ctx context.Context, id domain.AssetID) (domain.Identity, error)
	UpdateOwner(ctx context.Context, id domain.AssetID, owner domain.Identity) error
	// ListAssetsByOwner returns the assets currently held by owner in
	// ascending id order.
	ListAssetsByOwner(ctx context.Context, owner domain.Identity) ([]*models.Asset, error)

	FindRevision(ctx context.Context, id domain.AssetID, index uint32) (*models.Revision, error)
	// CreateRevision returns ErrConflict when the (asset, index) pair exists.
	CreateRevision(ctx context.Context, rev *models.Revision) error

	FindCertification(ctx context.Context, id domain.AssetID, certifier domain.Identity) (*models.Certification, error)
	UpsertCertification(ctx context.Context, cert *models.Certification) error
	// ListCertifications returns certifications ordered by certifier.
	ListCertifications(ctx context.Context, id domain.AssetID) ([]*models.Certification, error)

	FindWarranty(ctx context.Context, id domain.AssetID) (*models.Warranty, error)
	SaveWarranty(ctx context.Context, w *models.Warranty) error

	EventCount(ctx context.Context, id domain.AssetID) (uint32, error)
	// AppendEvent stores ev and sets the asset's count to ev.Index. ev.Index
	// must equal the current count plus one; otherwise ErrConflict. Returns
	// ErrCapacity when the log is full.
	AppendEvent(ctx context.Context, ev *models.ProvenanceEvent) error
	FindEvent(ctx context.Context, id domain.AssetID, index uint32) (*models.ProvenanceEvent, error)
	// ListEvents returns events 1..count in index order.
	ListEvents(ctx context.Context, id domain.AssetID) ([]*models.ProvenanceEvent, error)

	FindTransferPolicy(ctx context.Context, id domain.AssetID) (*models.TransferPolicy, error)
	SaveTransferPolicy(ctx context.Context, p *models.TransferPolicy) error
}

// Tx runs fn as one atomic unit. Either every write fn made through the
// supplied store becomes visible, or none does. Transactions are applied in a
// single total order. fn must use the ctx it is given so that collaborators
// (such as the audit outbox) join the same transaction.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
