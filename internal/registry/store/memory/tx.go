package memory

import (
	"context"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/pkg/domain"
)

// txStore is the view handed to a transaction. The owning InMemoryStore
// already holds the writer lock, so it touches the ledger directly and
// journals an undo step for every successful write.
type txStore struct {
	ledger *ledger
	undo   []func()
}

func (t *txStore) record(undo func(), err error) error {
	if err != nil {
		return err
	}
	t.undo = append(t.undo, undo)
	return nil
}

func (t *txStore) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *txStore) NextAssetID(context.Context) (domain.AssetID, error) {
	return t.ledger.nextID, nil
}

func (t *txStore) CreateAsset(_ context.Context, asset *models.Asset) error {
	return t.record(t.ledger.createAsset(asset))
}

func (t *txStore) FindAsset(_ context.Context, id domain.AssetID) (*models.Asset, error) {
	return t.ledger.findAsset(id)
}

func (t *txStore) FindOwner(_ context.Context, id domain.AssetID) (domain.Identity, error) {
	return t.ledger.findOwner(id)
}

func (t *txStore) UpdateOwner(_ context.Context, id domain.AssetID, owner domain.Identity) error {
	return t.record(t.ledger.updateOwner(id, owner))
}

func (t *txStore) ListAssetsByOwner(_ context.Context, owner domain.Identity) ([]*models.Asset, error) {
	return t.ledger.listAssetsByOwner(owner), nil
}

func (t *txStore) FindRevision(_ context.Context, id domain.AssetID, index uint32) (*models.Revision, error) {
	return t.ledger.findRevision(id, index)
}

func (t *txStore) CreateRevision(_ context.Context, rev *models.Revision) error {
	return t.record(t.ledger.createRevision(rev))
}

func (t *txStore) FindCertification(_ context.Context, id domain.AssetID, certifier domain.Identity) (*models.Certification, error) {
	return t.ledger.findCertification(id, certifier)
}

func (t *txStore) UpsertCertification(_ context.Context, cert *models.Certification) error {
	return t.record(t.ledger.upsertCertification(cert), nil)
}

func (t *txStore) ListCertifications(_ context.Context, id domain.AssetID) ([]*models.Certification, error) {
	return t.ledger.listCertifications(id), nil
}

func (t *txStore) FindWarranty(_ context.Context, id domain.AssetID) (*models.Warranty, error) {
	return t.ledger.findWarranty(id)
}

func (t *txStore) SaveWarranty(_ context.Context, w *models.Warranty) error {
	return t.record(t.ledger.saveWarranty(w), nil)
}

func (t *txStore) EventCount(_ context.Context, id domain.AssetID) (uint32, error) {
	return t.ledger.eventCount(id)
}

func (t *txStore) AppendEvent(_ context.Context, ev *models.ProvenanceEvent) error {
	return t.record(t.ledger.appendEvent(ev))
}

func (t *txStore) FindEvent(_ context.Context, id domain.AssetID, index uint32) (*models.ProvenanceEvent, error) {
	return t.ledger.findEvent(id, index)
}

func (t *txStore) ListEvents(_ context.Context, id domain.AssetID) ([]*models.ProvenanceEvent, error) {
	return t.ledger.listEvents(id), nil
}

func (t *txStore) FindTransferPolicy(_ context.Context, id domain.AssetID) (*models.TransferPolicy, error) {
	return t.ledger.findTransferPolicy(id)
}

func (t *txStore) SaveTransferPolicy(_ context.Context, p *models.TransferPolicy) error {
	return t.record(t.ledger.saveTransferPolicy(p), nil)
}

var _ store.Store = (*txStore)(nil)
