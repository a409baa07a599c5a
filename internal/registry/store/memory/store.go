// Package memory is the in-process registry store.
//
// A single writer lock gives every transaction exclusive access, so
// mutations are totally ordered. Writes made inside RunInTx apply directly
// and are undone in reverse order if the transaction fails; readers take the
// read lock and therefore never observe a transaction in progress.
package memory

import (
	"context"
	"sync"
	"time"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

type InMemoryStore struct {
	mu      sync.RWMutex
	ledger  *ledger
	timeout time.Duration
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{ledger: newLedger(), timeout: defaultTxTimeout}
}

// RunInTx holds the writer lock for the duration of fn.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx := &txStore{ledger: s.ledger}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *InMemoryStore) NextAssetID(_ context.Context) (domain.AssetID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.nextID, nil
}

func (s *InMemoryStore) CreateAsset(_ context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.ledger.createAsset(asset)
	return err
}

func (s *InMemoryStore) FindAsset(_ context.Context, id domain.AssetID) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.findAsset(id)
}

func (s *InMemoryStore) FindOwner(_ context.Context, id domain.AssetID) (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.findOwner(id)
}

func (s *InMemoryStore) UpdateOwner(_ context.Context, id domain.AssetID, owner domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.ledger.updateOwner(id, owner)
	return err
}

func (s *InMemoryStore) ListAssetsByOwner(_ context.Context, owner domain.Identity) ([]*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.listAssetsByOwner(owner), nil
}

func (s *InMemoryStore) FindRevision(_ context.Context, id domain.AssetID, index uint32) (*models.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.findRevision(id, index)
}

func (s *InMemoryStore) CreateRevision(_ context.Context, rev *models.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.ledger.createRevision(rev)
	return err
}

func (s *InMemoryStore) FindCertification(_ context.Context, id domain.AssetID, certifier domain.Identity) (*models.Certification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.findCertification(id, certifier)
}

func (s *InMemoryStore) UpsertCertification(_ context.Context, cert *models.Certification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.upsertCertification(cert)
	return nil
}

func (s *InMemoryStore) ListCertifications(_ context.Context, id domain.AssetID) ([]*models.Certification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.listCertifications(id), nil
}

func (s *InMemoryStore) FindWarranty(_ context.Context, id domain.AssetID) (*models.Warranty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.findWarranty(id)
}

func (s *InMemoryStore) SaveWarranty(_ context.Context, w *models.Warranty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.saveWarranty(w)
	return nil
}

func (s *InMemoryStore) EventCount(_ context.Context, id domain.AssetID) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.eventCount(id)
}

func (s *InMemoryStore) AppendEvent(_ context.Context, ev *models.ProvenanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.ledger.appendEvent(ev)
	return err
}

func (s *InMemoryStore) FindEvent(_ context.Context, id domain.AssetID, index uint32) (*models.ProvenanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.findEvent(id, index)
}

func (s *InMemoryStore) ListEvents(_ context.Context, id domain.AssetID) ([]*models.ProvenanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.listEvents(id), nil
}

func (s *InMemoryStore) FindTransferPolicy(_ context.Context, id domain.AssetID) (*models.TransferPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.findTransferPolicy(id)
}

func (s *InMemoryStore) SaveTransferPolicy(_ context.Context, p *models.TransferPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.saveTransferPolicy(p)
	return nil
}

var (
	_ store.Store = (*InMemoryStore)(nil)
	_ store.Tx    = (*InMemoryStore)(nil)
)
