package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AuditPublisher,AssetCache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"provenance/internal/registry/models"
	"provenance/internal/registry/service/mocks"
	"provenance/internal/registry/store/memory"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/audit/publishers/compliance"
	auditmemory "provenance/pkg/platform/audit/store/memory"
	"provenance/pkg/platform/sentinel"
	"provenance/pkg/requestcontext"
)

const (
	mint     domain.Identity = "mint-authority"
	stranger domain.Identity = "stranger"
	buyer    domain.Identity = "buyer"
)

var baseTime = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func digest(b byte) []byte {
	return bytes.Repeat([]byte{b}, domain.DigestSize)
}

func sn1() models.AssetMetadata {
	return models.AssetMetadata{
		Serial:      "SN1",
		AuthHash:    digest(0xAA),
		Model:       "M1",
		Description: "brake caliper",
	}
}

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	store      *memory.InMemoryStore
	auditStore *auditmemory.InMemoryStore
	metrics    *Metrics
	svc        *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), baseTime)
	s.store = memory.NewInMemoryStore()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.metrics = NewMetrics(prometheus.NewRegistry())

	svc, err := New(s.store, mint,
		WithMetrics(s.metrics),
		WithAuditPublisher(compliance.New(s.auditStore)),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) mustCreate() domain.AssetID {
	id, err := s.svc.CreateAsset(s.ctx, mint, sn1())
	s.Require().NoError(err)
	return id
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "unexpected error: %v", err)
}

func (s *ServiceSuite) TestNew() {
	s.Run("requires a minting authority", func() {
		_, err := New(s.store, "")
		s.ErrorIs(err, ErrNoMintingAuthority)
	})

	s.Run("exposes the configured authority", func() {
		s.Equal(mint, s.svc.MintingAuthority())
	})
}

func (s *ServiceSuite) TestCreateAsset() {
	s.Run("assigns sequential ids starting at 1", func() {
		first := s.mustCreate()
		second := s.mustCreate()
		s.Equal(domain.AssetID(1), first)
		s.Equal(domain.AssetID(2), second)

		asset, err := s.svc.GetAsset(s.ctx, first)
		s.Require().NoError(err)
		s.Equal("SN1", asset.Serial)
		s.Equal(mint, asset.Creator)
		s.Equal(baseTime, asset.CreatedAt)

		owner, err := s.svc.GetOwner(s.ctx, first)
		s.Require().NoError(err)
		s.Equal(mint, owner)
	})

	s.Run("rejects callers other than the minting authority", func() {
		_, err := s.svc.CreateAsset(s.ctx, stranger, sn1())
		s.requireCode(err, dErrors.CodeNotAuthorized)
	})

	s.Run("authorization is checked before bounds", func() {
		meta := sn1()
		meta.AuthHash = digest(0x01)[:5]
		_, err := s.svc.CreateAsset(s.ctx, stranger, meta)
		s.requireCode(err, dErrors.CodeNotAuthorized)
	})

	s.Run("rejects out of bound metadata", func() {
		meta := sn1()
		meta.Serial = strings.Repeat("s", models.MaxSerialLen+1)
		_, err := s.svc.CreateAsset(s.ctx, mint, meta)
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("failed attempts do not consume ids", func() {
		s.Equal(domain.AssetID(3), s.mustCreate())
	})

	s.Run("records one compliance event per asset", func() {
		events, err := s.svc.AuditTrail(s.ctx, 3)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventAssetCreated), events[0].Action)
		s.Equal(audit.CategoryCompliance, events[0].Category)
		s.Equal(mint, events[0].ActorID)
		s.Equal(3.0, testutil.ToFloat64(s.metrics.AssetsCreated))
	})
}

func (s *ServiceSuite) TestGetters_AbsentRecords() {
	id := s.mustCreate()

	asset, err := s.svc.GetAsset(s.ctx, 99)
	s.NoError(err)
	s.Nil(asset)

	rev, err := s.svc.GetRevision(s.ctx, id, 0)
	s.NoError(err)
	s.Nil(rev)

	rev, err = s.svc.GetRevision(s.ctx, id, 10)
	s.NoError(err)
	s.Nil(rev)

	cert, err := s.svc.GetCertification(s.ctx, id, mint)
	s.NoError(err)
	s.Nil(cert)

	w, err := s.svc.GetWarranty(s.ctx, id)
	s.NoError(err)
	s.Nil(w)

	active, err := s.svc.IsWarrantyActive(s.ctx, id)
	s.NoError(err)
	s.False(active)

	ev, err := s.svc.GetEvent(s.ctx, id, 0)
	s.NoError(err)
	s.Nil(ev)

	ev, err = s.svc.GetEvent(s.ctx, id, 51)
	s.NoError(err)
	s.Nil(ev)

	policy, err := s.svc.GetTransferPolicy(s.ctx, id)
	s.NoError(err)
	s.Nil(policy)

	_, err = s.svc.GetOwner(s.ctx, 99)
	s.requireCode(err, dErrors.CodeInvalidID)

	_, err = s.svc.EventCount(s.ctx, 99)
	s.requireCode(err, dErrors.CodeInvalidID)

	_, err = s.svc.ListEvents(s.ctx, 99)
	s.requireCode(err, dErrors.CodeInvalidID)

	_, err = s.svc.ListCertifications(s.ctx, 99)
	s.requireCode(err, dErrors.CodeInvalidID)
}

func (s *ServiceSuite) TestVerifyAuthenticity() {
	id := s.mustCreate()

	s.Run("exact digest matches", func() {
		v, err := s.svc.VerifyAuthenticity(s.ctx, id, digest(0xAA))
		s.Require().NoError(err)
		s.Equal(models.VerificationMatch, v)
	})

	s.Run("different digest mismatches", func() {
		v, err := s.svc.VerifyAuthenticity(s.ctx, id, digest(0xAB))
		s.Require().NoError(err)
		s.Equal(models.VerificationMismatch, v)
	})

	s.Run("wrong length is invalid input", func() {
		_, err := s.svc.VerifyAuthenticity(s.ctx, id, digest(0xAA)[:31])
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("unknown asset is invalid id", func() {
		_, err := s.svc.VerifyAuthenticity(s.ctx, 42, digest(0xAA))
		s.requireCode(err, dErrors.CodeInvalidID)
	})
}

func (s *ServiceSuite) TestAddRevision() {
	id := s.mustCreate()

	s.Run("records sparse indexes in any order", func() {
		for _, idx := range []uint32{7, 0, 3} {
			rev, err := s.svc.AddRevision(s.ctx, mint, id, idx, digest(byte(idx+1)), fmt.Sprintf("rev %d", idx))
			s.Require().NoError(err)
			s.Equal(idx, rev.Index)
		}
		rev, err := s.svc.GetRevision(s.ctx, id, 7)
		s.Require().NoError(err)
		s.Equal("rev 7", rev.Notes)
		s.Equal(baseTime, rev.RecordedAt)
	})

	s.Run("second write at an index already exists", func() {
		_, err := s.svc.AddRevision(s.ctx, mint, id, 7, digest(0xFF), "other payload")
		s.requireCode(err, dErrors.CodeAlreadyExists)

		rev, err := s.svc.GetRevision(s.ctx, id, 7)
		s.Require().NoError(err)
		s.Equal("rev 7", rev.Notes)
	})

	s.Run("checks run existence, auth, index, bounds, uniqueness", func() {
		_, err := s.svc.AddRevision(s.ctx, stranger, 99, 50, nil, "")
		s.requireCode(err, dErrors.CodeInvalidID)

		_, err = s.svc.AddRevision(s.ctx, stranger, id, 50, nil, "")
		s.requireCode(err, dErrors.CodeNotAuthorized)

		_, err = s.svc.AddRevision(s.ctx, mint, id, 10, nil, "")
		s.requireCode(err, dErrors.CodeInvalidRevision)

		_, err = s.svc.AddRevision(s.ctx, mint, id, 7, digest(0x01), strings.Repeat("n", models.MaxRevisionNotesLen+1))
		s.requireCode(err, dErrors.CodeInvalidInput)

		_, err = s.svc.AddRevision(s.ctx, mint, id, 7, digest(0x01)[:8], "")
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("creator keeps revision rights after transfer", func() {
		s.Require().NoError(s.svc.Transfer(s.ctx, mint, id, buyer))
		_, err := s.svc.AddRevision(s.ctx, mint, id, 9, digest(0x09), "")
		s.NoError(err)
		_, err = s.svc.AddRevision(s.ctx, buyer, id, 8, digest(0x08), "")
		s.requireCode(err, dErrors.CodeNotAuthorized)
	})
}

func (s *ServiceSuite) TestCertify_OverwritesSameCertifier() {
	id := s.mustCreate()
	expiry := time.Unix(100000, 0).UTC()

	_, err := s.svc.Certify(s.ctx, mint, id, "ISO9001", expiry, "initial audit")
	s.Require().NoError(err)

	cert, err := s.svc.GetCertification(s.ctx, id, mint)
	s.Require().NoError(err)
	s.True(cert.Active)
	s.Equal("ISO9001", cert.CertType)
	s.Equal(expiry, cert.Expiry)

	_, err = s.svc.Certify(s.ctx, mint, id, "ISO9001", expiry, "surveillance audit")
	s.Require().NoError(err)

	cert, err = s.svc.GetCertification(s.ctx, id, mint)
	s.Require().NoError(err)
	s.Equal("surveillance audit", cert.Details)
	s.True(cert.Active)

	certs, err := s.svc.ListCertifications(s.ctx, id)
	s.Require().NoError(err)
	s.Len(certs, 1)
}

func (s *ServiceSuite) TestCertify_Rejections() {
	id := s.mustCreate()

	_, err := s.svc.Certify(s.ctx, mint, 99, "ISO9001", baseTime, "")
	s.requireCode(err, dErrors.CodeInvalidID)

	_, err = s.svc.Certify(s.ctx, stranger, id, "ISO9001", baseTime, "")
	s.requireCode(err, dErrors.CodeNotAuthorized)

	_, err = s.svc.Certify(s.ctx, mint, id, strings.Repeat("c", models.MaxCertTypeLen+1), baseTime, "")
	s.requireCode(err, dErrors.CodeInvalidInput)

	_, err = s.svc.Certify(s.ctx, mint, id, "CE", baseTime, strings.Repeat("d", models.MaxCertDetailsLen+1))
	s.requireCode(err, dErrors.CodeInvalidInput)

	cert, err := s.svc.GetCertification(s.ctx, id, mint)
	s.NoError(err)
	s.Nil(cert)
}

func (s *ServiceSuite) TestWarranty() {
	id := s.mustCreate()

	s.Run("boundary instant is still active", func() {
		w, err := s.svc.AddWarranty(s.ctx, mint, id, time.Hour, "parts and labour")
		s.Require().NoError(err)
		s.Equal(baseTime, w.StartTime)
		s.Equal(mint, w.Provider)

		atEnd := requestcontext.WithTime(context.Background(), baseTime.Add(time.Hour))
		active, err := s.svc.IsWarrantyActive(atEnd, id)
		s.Require().NoError(err)
		s.True(active)

		after := requestcontext.WithTime(context.Background(), baseTime.Add(time.Hour+time.Nanosecond))
		active, err = s.svc.IsWarrantyActive(after, id)
		s.Require().NoError(err)
		s.False(active)
	})

	s.Run("a new warranty replaces the old one", func() {
		later := requestcontext.WithTime(context.Background(), baseTime.Add(48*time.Hour))
		_, err := s.svc.AddWarranty(later, mint, id, 24*time.Hour, "extended")
		s.Require().NoError(err)

		w, err := s.svc.GetWarranty(s.ctx, id)
		s.Require().NoError(err)
		s.Equal("extended", w.Terms)
		s.Equal(baseTime.Add(48*time.Hour), w.StartTime)
	})

	s.Run("only the creator may add a warranty", func() {
		_, err := s.svc.AddWarranty(s.ctx, stranger, id, time.Hour, "")
		s.requireCode(err, dErrors.CodeNotAuthorized)
	})

	s.Run("terms over the limit are invalid input", func() {
		_, err := s.svc.AddWarranty(s.ctx, mint, id, time.Hour, strings.Repeat("t", models.MaxWarrantyTermsLen+1))
		s.requireCode(err, dErrors.CodeInvalidInput)
	})
}

func (s *ServiceSuite) TestLogEvent() {
	id := s.mustCreate()
	dock := "dock 4"

	s.Run("fills fifty dense slots then refuses", func() {
		for i := 1; i <= models.MaxProvenanceEvents; i++ {
			idx, err := s.svc.LogEvent(s.ctx, mint, id, "inspected", &dock)
			s.Require().NoError(err)
			s.Equal(uint32(i), idx)
		}

		_, err := s.svc.LogEvent(s.ctx, mint, id, "inspected", nil)
		s.requireCode(err, dErrors.CodeMaxLogsReached)

		count, err := s.svc.EventCount(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(uint32(models.MaxProvenanceEvents), count)

		events, err := s.svc.ListEvents(s.ctx, id)
		s.Require().NoError(err)
		s.Require().Len(events, models.MaxProvenanceEvents)
		s.Equal(uint32(1), events[0].Index)
		s.Equal(uint32(50), events[49].Index)
		s.Equal(&dock, events[0].Location)
	})

	other := s.mustCreate()

	s.Run("non custodian is rejected before bounds", func() {
		_, err := s.svc.LogEvent(s.ctx, stranger, other, strings.Repeat("a", models.MaxActionLen+1), nil)
		s.requireCode(err, dErrors.CodeNotOwner)
	})

	s.Run("oversized fields are invalid input", func() {
		_, err := s.svc.LogEvent(s.ctx, mint, other, strings.Repeat("a", models.MaxActionLen+1), nil)
		s.requireCode(err, dErrors.CodeInvalidInput)

		far := strings.Repeat("l", models.MaxLocationLen+1)
		_, err = s.svc.LogEvent(s.ctx, mint, other, "shipped", &far)
		s.requireCode(err, dErrors.CodeInvalidInput)

		count, err := s.svc.EventCount(s.ctx, other)
		s.Require().NoError(err)
		s.Zero(count)
	})

	s.Run("unknown asset is invalid id", func() {
		_, err := s.svc.LogEvent(s.ctx, mint, 99, "shipped", nil)
		s.requireCode(err, dErrors.CodeInvalidID)
	})

	s.Run("get event returns the stored record", func() {
		idx, err := s.svc.LogEvent(s.ctx, mint, other, "shipped", nil)
		s.Require().NoError(err)
		ev, err := s.svc.GetEvent(s.ctx, other, idx)
		s.Require().NoError(err)
		s.Equal("shipped", ev.Action)
		s.Equal(mint, ev.Actor)
		s.Nil(ev.Location)
	})
}

func (s *ServiceSuite) TestTransfer() {
	s.Run("unrestricted transfer moves custody", func() {
		id := s.mustCreate()
		s.Require().NoError(s.svc.Transfer(s.ctx, mint, id, buyer))

		owner, err := s.svc.GetOwner(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(buyer, owner)

		held, err := s.svc.ListAssetsByOwner(s.ctx, buyer)
		s.Require().NoError(err)
		s.Require().Len(held, 1)
		s.Equal(id, held[0].ID)

		_, err = s.svc.LogEvent(s.ctx, mint, id, "late scan", nil)
		s.requireCode(err, dErrors.CodeNotOwner)
		_, err = s.svc.LogEvent(s.ctx, buyer, id, "received", nil)
		s.NoError(err)
	})

	s.Run("restriction blocks recipients outside the allow list", func() {
		id := s.mustCreate()
		policy, err := s.svc.SetTransferRestriction(s.ctx, mint, id, true, []domain.Identity{"dealer", " dealer ", buyer})
		s.Require().NoError(err)
		s.Equal([]domain.Identity{"dealer", buyer}, policy.AllowedTransferees)

		err = s.svc.Transfer(s.ctx, mint, id, stranger)
		s.requireCode(err, dErrors.CodeTransferRestricted)

		owner, err := s.svc.GetOwner(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(mint, owner)

		s.Require().NoError(s.svc.Transfer(s.ctx, mint, id, buyer))
		owner, err = s.svc.GetOwner(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(buyer, owner)
		s.Equal(2.0, testutil.ToFloat64(s.metrics.CustodyTransfers))
	})

	s.Run("lifting the restriction allows anyone", func() {
		id := s.mustCreate()
		_, err := s.svc.SetTransferRestriction(s.ctx, mint, id, true, nil)
		s.Require().NoError(err)
		_, err = s.svc.SetTransferRestriction(s.ctx, mint, id, false, nil)
		s.Require().NoError(err)
		s.NoError(s.svc.Transfer(s.ctx, mint, id, stranger))
	})

	s.Run("checks run existence, ownership, recipient, policy", func() {
		id := s.mustCreate()
		_, err := s.svc.SetTransferRestriction(s.ctx, mint, id, true, nil)
		s.Require().NoError(err)

		s.requireCode(s.svc.Transfer(s.ctx, mint, 999, buyer), dErrors.CodeInvalidID)
		s.requireCode(s.svc.Transfer(s.ctx, stranger, id, ""), dErrors.CodeNotOwner)
		s.requireCode(s.svc.Transfer(s.ctx, mint, id, ""), dErrors.CodeInvalidInput)
		s.requireCode(s.svc.Transfer(s.ctx, mint, id, buyer), dErrors.CodeTransferRestricted)
	})

	s.Run("allow list over ten identities is invalid input", func() {
		id := s.mustCreate()
		allowed := make([]domain.Identity, 0, 11)
		for i := 0; i < 11; i++ {
			allowed = append(allowed, domain.Identity(fmt.Sprintf("dealer-%d", i)))
		}
		_, err := s.svc.SetTransferRestriction(s.ctx, mint, id, true, allowed)
		s.requireCode(err, dErrors.CodeInvalidInput)

		_, err = s.svc.SetTransferRestriction(s.ctx, buyer, id, true, nil)
		s.requireCode(err, dErrors.CodeNotOwner)

		policy, err := s.svc.GetTransferPolicy(s.ctx, id)
		s.NoError(err)
		s.Nil(policy)
	})
}

func (s *ServiceSuite) TestSecurityEvents() {
	id := s.mustCreate()
	_, err := s.svc.SetTransferRestriction(s.ctx, mint, id, true, nil)
	s.Require().NoError(err)

	s.requireCode(s.svc.Transfer(s.ctx, stranger, id, buyer), dErrors.CodeNotOwner)
	s.requireCode(s.svc.Transfer(s.ctx, mint, id, buyer), dErrors.CodeTransferRestricted)

	events, err := s.auditStore.ListByAsset(s.ctx, id)
	s.Require().NoError(err)

	var security []audit.Event
	for _, ev := range events {
		if ev.Category == audit.CategorySecurity {
			security = append(security, ev)
		}
	}
	s.Require().Len(security, 2)
	s.Equal(string(audit.EventAuthorizationDenied), security[0].Action)
	s.Equal(stranger, security[0].ActorID)
	s.Equal(string(audit.EventTransferBlocked), security[1].Action)
	s.Equal(string(buyer), security[1].Subject)
}

func (s *ServiceSuite) TestOperationMetrics() {
	id := s.mustCreate()
	_, err := s.svc.LogEvent(s.ctx, stranger, id, "scan", nil)
	s.Require().Error(err)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Operations.WithLabelValues("create_asset", "ok")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Operations.WithLabelValues("log_event", string(dErrors.CodeNotOwner))))
}

func TestService_AuditFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := requestcontext.WithTime(context.Background(), baseTime)

	auditor := mocks.NewMockAuditPublisher(ctrl)
	st := memory.NewInMemoryStore()
	svc, err := New(st, mint, WithAuditPublisher(auditor))
	require.NoError(t, err)

	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox unavailable"))
	_, err = svc.CreateAsset(ctx, mint, sn1())
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(err))

	asset, err := svc.GetAsset(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, asset)

	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
	id, err := svc.CreateAsset(ctx, mint, sn1())
	require.NoError(t, err)
	assert.Equal(t, domain.AssetID(1), id)
}

func TestService_SecurityEventFailureIsBestEffort(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := requestcontext.WithTime(context.Background(), baseTime)

	auditor := mocks.NewMockAuditPublisher(ctrl)
	svc, err := New(memory.NewInMemoryStore(), mint, WithAuditPublisher(auditor))
	require.NoError(t, err)

	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
	id, err := svc.CreateAsset(ctx, mint, sn1())
	require.NoError(t, err)

	auditor.EXPECT().
		Emit(gomock.Any(), gomock.Cond(func(ev audit.Event) bool {
			return ev.Action == string(audit.EventAuthorizationDenied)
		})).
		Return(errors.New("store down"))
	err = svc.Transfer(ctx, stranger, id, buyer)
	assert.Equal(t, dErrors.CodeNotOwner, dErrors.CodeOf(err))
}

func TestService_AssetCache(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), baseTime)

	t.Run("hit skips the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockAssetCache(ctrl)
		metrics := NewMetrics(prometheus.NewRegistry())
		svc, err := New(memory.NewInMemoryStore(), mint, WithCache(cache), WithMetrics(metrics))
		require.NoError(t, err)

		cached := &models.Asset{ID: 5, Serial: "CACHED", Creator: mint}
		cache.EXPECT().Get(gomock.Any(), domain.AssetID(5)).Return(cached, nil)

		asset, err := svc.GetAsset(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, "CACHED", asset.Serial)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")))
	})

	t.Run("miss reads the store and fills the cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockAssetCache(ctrl)
		metrics := NewMetrics(prometheus.NewRegistry())
		svc, err := New(memory.NewInMemoryStore(), mint, WithCache(cache), WithMetrics(metrics))
		require.NoError(t, err)

		cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		id, err := svc.CreateAsset(ctx, mint, sn1())
		require.NoError(t, err)

		cache.EXPECT().Get(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)
		v, err := svc.VerifyAuthenticity(ctx, id, digest(0xAA))
		require.NoError(t, err)
		assert.Equal(t, models.VerificationMatch, v)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")))
	})

	t.Run("cache errors fall back to the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockAssetCache(ctrl)
		metrics := NewMetrics(prometheus.NewRegistry())
		svc, err := New(memory.NewInMemoryStore(), mint, WithCache(cache), WithMetrics(metrics))
		require.NoError(t, err)

		cache.EXPECT().Get(gomock.Any(), domain.AssetID(3)).Return(nil, errors.New("connection refused"))
		asset, err := svc.GetAsset(ctx, 3)
		require.NoError(t, err)
		assert.Nil(t, asset)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("error")))
	})
}
