package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/sentinel"
	"provenance/pkg/requestcontext"
)

// AddRevision records a write-once content revision at index.
//
// Errors: CodeInvalidID, CodeNotAuthorized (caller is not the creator),
// CodeInvalidRevision (index >= 10), CodeInvalidInput, CodeAlreadyExists.
func (s *Service) AddRevision(ctx context.Context, caller domain.Identity, id domain.AssetID, index uint32, updatedHash []byte, notes string) (rev *models.Revision, err error) {
	ctx, done := s.begin(ctx, "add_revision", id)
	defer func() { done(err) }()

	now := requestcontext.Now(ctx)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := requireCreator(ctx, st, id, caller); err != nil {
			return err
		}
		if err := models.ValidateRevisionIndex(index); err != nil {
			return err
		}
		r, err := models.NewRevision(id, index, updatedHash, notes, now)
		if err != nil {
			return err
		}
		if err := st.CreateRevision(ctx, r); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyExists, "revision already recorded at this index")
			}
			return internal(err, "failed to record revision")
		}
		rev = r
		return s.emit(ctx, audit.EventRevisionAdded, id, caller, "", strconv.FormatUint(uint64(index), 10))
	})
	if err != nil {
		s.reportRejection(ctx, err, "add_revision", id, caller, "")
		return nil, err
	}

	s.logAudit(ctx, audit.EventRevisionAdded, id, caller, "revision_index", index)
	return rev, nil
}

// GetRevision returns the revision or nil when none is recorded at index.
func (s *Service) GetRevision(ctx context.Context, id domain.AssetID, index uint32) (rev *models.Revision, err error) {
	ctx, done := s.begin(ctx, "get_revision", id)
	defer func() { done(err) }()

	if models.ValidateRevisionIndex(index) != nil {
		return nil, nil
	}
	rev, err = s.repo.FindRevision(ctx, id, index)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, internal(err, "failed to load revision")
	}
	return rev, nil
}

// Certify records or replaces the caller's certification of an asset. The
// record is always active; there is no revoke.
//
// Errors: CodeInvalidID, CodeNotAuthorized, CodeInvalidInput.
func (s *Service) Certify(ctx context.Context, caller domain.Identity, id domain.AssetID, certType string, expiry time.Time, details string) (cert *models.Certification, err error) {
	ctx, done := s.begin(ctx, "certify", id)
	defer func() { done(err) }()

	err = s.repo.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := requireCreator(ctx, st, id, caller); err != nil {
			return err
		}
		c, err := models.NewCertification(id, caller, certType, expiry, details)
		if err != nil {
			return err
		}
		if err := st.UpsertCertification(ctx, c); err != nil {
			return internal(err, "failed to save certification")
		}
		cert = c
		return s.emit(ctx, audit.EventAssetCertified, id, caller, caller.String(), certType)
	})
	if err != nil {
		s.reportRejection(ctx, err, "certify", id, caller, "")
		return nil, err
	}

	s.logAudit(ctx, audit.EventAssetCertified, id, caller, "cert_type", certType)
	return cert, nil
}

// GetCertification returns certifier's certification or nil.
func (s *Service) GetCertification(ctx context.Context, id domain.AssetID, certifier domain.Identity) (cert *models.Certification, err error) {
	ctx, done := s.begin(ctx, "get_certification", id)
	defer func() { done(err) }()

	cert, err = s.repo.FindCertification(ctx, id, certifier)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, internal(err, "failed to load certification")
	}
	return cert, nil
}

// ListCertifications returns every certification of an asset by certifier.
//
// Errors: CodeInvalidID when the asset does not exist.
func (s *Service) ListCertifications(ctx context.Context, id domain.AssetID) (certs []*models.Certification, err error) {
	ctx, done := s.begin(ctx, "list_certifications", id)
	defer func() { done(err) }()

	if err := s.assetExists(ctx, id); err != nil {
		return nil, err
	}
	certs, err = s.repo.ListCertifications(ctx, id)
	if err != nil {
		return nil, internal(err, "failed to list certifications")
	}
	return certs, nil
}

// AddWarranty starts a warranty now, replacing any previous one. The caller
// is recorded as provider.
//
// Errors: CodeInvalidID, CodeNotAuthorized, CodeInvalidInput.
func (s *Service) AddWarranty(ctx context.Context, caller domain.Identity, id domain.AssetID, duration time.Duration, terms string) (warranty *models.Warranty, err error) {
	ctx, done := s.begin(ctx, "add_warranty", id)
	defer func() { done(err) }()

	now := requestcontext.Now(ctx)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := requireCreator(ctx, st, id, caller); err != nil {
			return err
		}
		w, err := models.NewWarranty(id, caller, duration, terms, now)
		if err != nil {
			return err
		}
		if err := st.SaveWarranty(ctx, w); err != nil {
			return internal(err, "failed to save warranty")
		}
		warranty = w
		return s.emit(ctx, audit.EventWarrantyAdded, id, caller, "", duration.String())
	})
	if err != nil {
		s.reportRejection(ctx, err, "add_warranty", id, caller, "")
		return nil, err
	}

	s.logAudit(ctx, audit.EventWarrantyAdded, id, caller, "duration", duration.String())
	return warranty, nil
}

// GetWarranty returns the current warranty or nil.
func (s *Service) GetWarranty(ctx context.Context, id domain.AssetID) (warranty *models.Warranty, err error) {
	ctx, done := s.begin(ctx, "get_warranty", id)
	defer func() { done(err) }()

	warranty, err = s.repo.FindWarranty(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, internal(err, "failed to load warranty")
	}
	return warranty, nil
}

// IsWarrantyActive reports whether a warranty exists and the request time is
// at or before its end.
func (s *Service) IsWarrantyActive(ctx context.Context, id domain.AssetID) (bool, error) {
	w, err := s.GetWarranty(ctx, id)
	if err != nil || w == nil {
		return false, err
	}
	return w.IsActiveAt(requestcontext.Now(ctx)), nil
}

func (s *Service) assetExists(ctx context.Context, id domain.AssetID) error {
	if _, err := s.loadAsset(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInvalidID, "asset not found")
		}
		return err
	}
	return nil
}
