package service

import (
	"context"
	"errors"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/sentinel"
	"provenance/pkg/requestcontext"
)

// CreateAsset mints a new asset. Only the minting authority may call it; the
// caller becomes the first custodian. Ids start at 1 and are never reused.
//
// Errors: CodeNotAuthorized, CodeInvalidInput, CodeAlreadyExists.
func (s *Service) CreateAsset(ctx context.Context, caller domain.Identity, meta models.AssetMetadata) (id domain.AssetID, err error) {
	ctx, done := s.begin(ctx, "create_asset", 0)
	defer func() { done(err) }()

	if caller != s.mintingAuthority {
		err = dErrors.New(dErrors.CodeNotAuthorized, "only the minting authority can create assets")
		s.reportRejection(ctx, err, "create_asset", 0, caller, "")
		return 0, err
	}
	if err := meta.Validate(); err != nil {
		return 0, err
	}

	now := requestcontext.Now(ctx)
	var created *models.Asset
	err = s.repo.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		next, err := st.NextAssetID(ctx)
		if err != nil {
			return internal(err, "failed to allocate asset id")
		}
		asset, err := models.NewAsset(next, caller, meta, now)
		if err != nil {
			return err
		}
		if err := st.CreateAsset(ctx, asset); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyExists, "asset id already in use")
			}
			return internal(err, "failed to create asset")
		}
		created = asset
		return s.emit(ctx, audit.EventAssetCreated, asset.ID, caller, asset.Serial, asset.Model)
	})
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.AssetsCreated.Inc()
	}
	s.cacheAsset(ctx, created)
	s.logAudit(ctx, audit.EventAssetCreated, created.ID, caller, "serial", created.Serial)
	return created.ID, nil
}

// GetAsset returns the asset or nil when it does not exist.
func (s *Service) GetAsset(ctx context.Context, id domain.AssetID) (asset *models.Asset, err error) {
	ctx, done := s.begin(ctx, "get_asset", id)
	defer func() { done(err) }()

	asset, err = s.loadAsset(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return asset, err
}

// VerifyAuthenticity compares provided with the asset's authenticity digest.
//
// Errors: CodeInvalidID when the asset does not exist, CodeInvalidInput when
// provided is not 32 bytes.
func (s *Service) VerifyAuthenticity(ctx context.Context, id domain.AssetID, provided []byte) (result models.Verification, err error) {
	ctx, done := s.begin(ctx, "verify_authenticity", id)
	defer func() { done(err) }()

	asset, err := s.loadAsset(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeInvalidID, "asset not found")
		}
		return "", err
	}
	return asset.Verify(provided)
}

// loadAsset reads through the cache. It returns sentinel.ErrNotFound for
// absent assets and coded errors otherwise.
func (s *Service) loadAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	if id.IsNil() {
		return nil, sentinel.ErrNotFound
	}
	if s.cache != nil {
		asset, err := s.cache.Get(ctx, id)
		switch {
		case err == nil:
			s.countCacheLookup("hit")
			return asset, nil
		case errors.Is(err, sentinel.ErrNotFound):
			s.countCacheLookup("miss")
		default:
			s.countCacheLookup("error")
			s.logger.WarnContext(ctx, "asset cache read failed", "asset_id", id, "error", err)
		}
	}

	asset, err := s.repo.FindAsset(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, internal(err, "failed to load asset")
	}
	s.cacheAsset(ctx, asset)
	return asset, nil
}

func (s *Service) cacheAsset(ctx context.Context, asset *models.Asset) {
	if s.cache == nil || asset == nil {
		return
	}
	if err := s.cache.Set(ctx, asset); err != nil {
		s.logger.WarnContext(ctx, "asset cache write failed", "asset_id", asset.ID, "error", err)
	}
}

func (s *Service) countCacheLookup(result string) {
	if s.metrics != nil {
		s.metrics.IncCacheLookup(result)
	}
}

// GetOwner returns the current custodian.
//
// Errors: CodeInvalidID when the asset does not exist.
func (s *Service) GetOwner(ctx context.Context, id domain.AssetID) (owner domain.Identity, err error) {
	ctx, done := s.begin(ctx, "get_owner", id)
	defer func() { done(err) }()

	owner, err = s.repo.FindOwner(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeInvalidID, "asset not found")
		}
		return "", internal(err, "failed to load custodian")
	}
	return owner, nil
}

// ListAssetsByOwner returns the assets currently held by owner, by id.
func (s *Service) ListAssetsByOwner(ctx context.Context, owner domain.Identity) (assets []*models.Asset, err error) {
	ctx, done := s.begin(ctx, "list_assets_by_owner", 0)
	defer func() { done(err) }()

	assets, err = s.repo.ListAssetsByOwner(ctx, owner)
	if err != nil {
		return nil, internal(err, "failed to list assets")
	}
	if assets == nil {
		assets = []*models.Asset{}
	}
	return assets, nil
}

// SetTransferRestriction replaces the asset's transfer policy. Duplicate and
// blank identities in allowed are dropped before the size check.
//
// Errors: CodeInvalidID, CodeNotOwner, CodeInvalidInput.
func (s *Service) SetTransferRestriction(ctx context.Context, caller domain.Identity, id domain.AssetID, restricted bool, allowed []domain.Identity) (policy *models.TransferPolicy, err error) {
	ctx, done := s.begin(ctx, "set_transfer_restriction", id)
	defer func() { done(err) }()

	err = s.repo.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := requireCustodian(ctx, st, id, caller); err != nil {
			return err
		}
		p, err := models.NewTransferPolicy(id, restricted, allowed)
		if err != nil {
			return err
		}
		if err := st.SaveTransferPolicy(ctx, p); err != nil {
			return internal(err, "failed to save transfer policy")
		}
		policy = p
		return s.emit(ctx, audit.EventTransferRestrictionSet, id, caller, "", restrictionDetail(p))
	})
	if err != nil {
		s.reportRejection(ctx, err, "set_transfer_restriction", id, caller, "")
		return nil, err
	}

	s.logAudit(ctx, audit.EventTransferRestrictionSet, id, caller,
		"restricted", policy.Restricted,
		"allowed_count", len(policy.AllowedTransferees),
	)
	return policy, nil
}

func restrictionDetail(p *models.TransferPolicy) string {
	if !p.Restricted {
		return "unrestricted"
	}
	return "restricted"
}

// GetTransferPolicy returns the policy or nil when none was ever set.
func (s *Service) GetTransferPolicy(ctx context.Context, id domain.AssetID) (policy *models.TransferPolicy, err error) {
	ctx, done := s.begin(ctx, "get_transfer_policy", id)
	defer func() { done(err) }()

	policy, err = s.repo.FindTransferPolicy(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, internal(err, "failed to load transfer policy")
	}
	return policy, nil
}

// Transfer moves custody of an asset to recipient.
//
// Errors: CodeInvalidID, CodeNotOwner, CodeInvalidInput (empty recipient),
// CodeTransferRestricted.
func (s *Service) Transfer(ctx context.Context, caller domain.Identity, id domain.AssetID, recipient domain.Identity) (err error) {
	ctx, done := s.begin(ctx, "transfer", id)
	defer func() { done(err) }()

	err = s.repo.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := requireCustodian(ctx, st, id, caller); err != nil {
			return err
		}
		if recipient.IsNil() {
			return dErrors.New(dErrors.CodeInvalidInput, "recipient cannot be empty")
		}
		policy, err := st.FindTransferPolicy(ctx, id)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return internal(err, "failed to load transfer policy")
		}
		if !policy.Permits(recipient) {
			return dErrors.New(dErrors.CodeTransferRestricted, "recipient is not an allowed transferee")
		}
		if err := st.UpdateOwner(ctx, id, recipient); err != nil {
			return internal(err, "failed to update custodian")
		}
		return s.emit(ctx, audit.EventCustodyTransferred, id, caller, recipient.String(), "")
	})
	if err != nil {
		s.reportRejection(ctx, err, "transfer", id, caller, recipient.String())
		return err
	}

	if s.metrics != nil {
		s.metrics.CustodyTransfers.Inc()
	}
	s.logAudit(ctx, audit.EventCustodyTransferred, id, caller, "recipient", recipient)
	return nil
}
