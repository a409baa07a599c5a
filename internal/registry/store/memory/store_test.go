package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) asset(id domain.AssetID, creator domain.Identity) *models.Asset {
	return &models.Asset{ID: id, Serial: "SN", Creator: creator, CreatedAt: s.now}
}

func (s *InMemoryStoreSuite) TestCreateAsset() {
	s.Run("advances the counter and sets custody", func() {
		next, err := s.store.NextAssetID(s.ctx)
		s.Require().NoError(err)
		s.Equal(domain.AssetID(1), next)

		s.Require().NoError(s.store.CreateAsset(s.ctx, s.asset(1, "mint")))

		next, _ = s.store.NextAssetID(s.ctx)
		s.Equal(domain.AssetID(2), next)
		owner, err := s.store.FindOwner(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(domain.Identity("mint"), owner)
		count, err := s.store.EventCount(s.ctx, 1)
		s.Require().NoError(err)
		s.Zero(count)
	})

	s.Run("occupied slot conflicts", func() {
		err := s.store.CreateAsset(s.ctx, s.asset(1, "mint"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing asset is not found", func() {
		_, err := s.store.FindAsset(s.ctx, 99)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindOwner(s.ctx, 99)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestReturnedRecordsAreCopies() {
	s.Require().NoError(s.store.CreateAsset(s.ctx, s.asset(1, "mint")))
	a, err := s.store.FindAsset(s.ctx, 1)
	s.Require().NoError(err)
	a.Serial = "tampered"

	again, _ := s.store.FindAsset(s.ctx, 1)
	s.Equal("SN", again.Serial)

	s.Require().NoError(s.store.SaveTransferPolicy(s.ctx, &models.TransferPolicy{
		AssetID: 1, Restricted: true, AllowedTransferees: []domain.Identity{"bob"},
	}))
	p, _ := s.store.FindTransferPolicy(s.ctx, 1)
	p.AllowedTransferees[0] = "eve"
	p2, _ := s.store.FindTransferPolicy(s.ctx, 1)
	s.Equal([]domain.Identity{"bob"}, p2.AllowedTransferees)
}

func (s *InMemoryStoreSuite) TestAppendEvent() {
	s.Require().NoError(s.store.CreateAsset(s.ctx, s.asset(1, "mint")))

	s.Run("index must follow the count", func() {
		err := s.store.AppendEvent(s.ctx, &models.ProvenanceEvent{AssetID: 1, Index: 2})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("fills up to the cap", func() {
		for i := uint32(1); i <= models.MaxProvenanceEvents; i++ {
			s.Require().NoError(s.store.AppendEvent(s.ctx, &models.ProvenanceEvent{AssetID: 1, Index: i, Action: "scan"}))
		}
		err := s.store.AppendEvent(s.ctx, &models.ProvenanceEvent{AssetID: 1, Index: models.MaxProvenanceEvents + 1})
		s.ErrorIs(err, sentinel.ErrCapacity)

		events, err := s.store.ListEvents(s.ctx, 1)
		s.Require().NoError(err)
		s.Len(events, models.MaxProvenanceEvents)
		for i, ev := range events {
			s.Equal(uint32(i+1), ev.Index)
		}
	})

	s.Run("unknown asset", func() {
		err := s.store.AppendEvent(s.ctx, &models.ProvenanceEvent{AssetID: 7, Index: 1})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestListOrdering() {
	for _, id := range []domain.AssetID{3, 1, 2} {
		s.Require().NoError(s.store.CreateAsset(s.ctx, s.asset(id, "mint")))
	}
	s.Require().NoError(s.store.UpdateOwner(s.ctx, 2, "shop"))

	assets, err := s.store.ListAssetsByOwner(s.ctx, "mint")
	s.Require().NoError(err)
	s.Require().Len(assets, 2)
	s.Equal(domain.AssetID(1), assets[0].ID)
	s.Equal(domain.AssetID(3), assets[1].ID)

	none, err := s.store.ListAssetsByOwner(s.ctx, "nobody")
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)

	for _, certifier := range []domain.Identity{"tuv", "iso", "ul"} {
		s.Require().NoError(s.store.UpsertCertification(s.ctx, &models.Certification{AssetID: 1, Certifier: certifier, Active: true}))
	}
	certs, err := s.store.ListCertifications(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(certs, 3)
	s.Equal(domain.Identity("iso"), certs[0].Certifier)
	s.Equal(domain.Identity("ul"), certs[2].Certifier)
}

func (s *InMemoryStoreSuite) TestRunInTx() {
	s.Run("failed transaction leaves no trace", func() {
		boom := errors.New("boom")
		err := s.store.RunInTx(s.ctx, func(ctx context.Context, st store.Store) error {
			id, err := st.NextAssetID(ctx)
			s.Require().NoError(err)
			s.Require().NoError(st.CreateAsset(ctx, s.asset(id, "mint")))
			s.Require().NoError(st.AppendEvent(ctx, &models.ProvenanceEvent{AssetID: id, Index: 1}))
			s.Require().NoError(st.SaveWarranty(ctx, &models.Warranty{AssetID: id, Duration: time.Hour}))
			s.Require().NoError(st.UpdateOwner(ctx, id, "bob"))
			return boom
		})
		s.ErrorIs(err, boom)

		_, err = s.store.FindAsset(s.ctx, 1)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindWarranty(s.ctx, 1)
		s.ErrorIs(err, sentinel.ErrNotFound)
		next, _ := s.store.NextAssetID(s.ctx)
		s.Equal(domain.AssetID(1), next)
	})

	s.Run("rollback restores overwritten values", func() {
		s.Require().NoError(s.store.CreateAsset(s.ctx, s.asset(1, "mint")))
		s.Require().NoError(s.store.SaveWarranty(s.ctx, &models.Warranty{AssetID: 1, Terms: "v1"}))

		_ = s.store.RunInTx(s.ctx, func(ctx context.Context, st store.Store) error {
			s.Require().NoError(st.SaveWarranty(ctx, &models.Warranty{AssetID: 1, Terms: "v2"}))
			s.Require().NoError(st.UpsertCertification(ctx, &models.Certification{AssetID: 1, Certifier: "iso"}))
			return errors.New("abort")
		})

		w, err := s.store.FindWarranty(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal("v1", w.Terms)
		_, err = s.store.FindCertification(s.ctx, 1, "iso")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("panic rolls back and releases the lock", func() {
		s.store = NewInMemoryStore()
		s.Require().NoError(s.store.CreateAsset(s.ctx, s.asset(1, "mint")))

		s.Panics(func() {
			_ = s.store.RunInTx(s.ctx, func(ctx context.Context, st store.Store) error {
				s.Require().NoError(st.UpdateOwner(ctx, 1, "bob"))
				s.Require().NoError(st.AppendEvent(ctx, &models.ProvenanceEvent{AssetID: 1, Index: 1}))
				panic("handler bug")
			})
		})

		owner, err := s.store.FindOwner(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(domain.Identity("mint"), owner)
		count, err := s.store.EventCount(s.ctx, 1)
		s.Require().NoError(err)
		s.Zero(count)

		s.Require().NoError(s.store.RunInTx(s.ctx, func(ctx context.Context, st store.Store) error {
			return st.UpdateOwner(ctx, 1, "carol")
		}))
	})

	s.Run("cancelled context never runs fn", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		called := false
		err := s.store.RunInTx(ctx, func(context.Context, store.Store) error {
			called = true
			return nil
		})
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		s.False(called)
	})
}

func TestRunInTx_SerializesWriters(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
				id, err := tx.NextAssetID(ctx)
				if err != nil {
					return err
				}
				return tx.CreateAsset(ctx, &models.Asset{ID: id, Creator: "mint"})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	next, err := st.NextAssetID(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetID(21), next)
	assets, err := st.ListAssetsByOwner(ctx, "mint")
	require.NoError(t, err)
	assert.Len(t, assets, 20)
}
