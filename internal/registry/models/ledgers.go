package models

import (
	"time"

	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

// Revision is a write-once content update recorded by the asset's creator.
// Indexes are chosen by the caller; gaps and out-of-order writes are allowed.
type Revision struct {
	AssetID     domain.AssetID `json:"asset_id"`
	Index       uint32         `json:"revision_index"`
	UpdatedHash domain.Digest  `json:"updated_hash"`
	Notes       string         `json:"notes"`
	RecordedAt  time.Time      `json:"recorded_at"`
}

// ValidateRevisionIndex enforces index < MaxRevisions.
func ValidateRevisionIndex(index uint32) error {
	if index >= MaxRevisions {
		return dErrors.New(dErrors.CodeInvalidRevision, "revision index must be between 0 and 9")
	}
	return nil
}

// NewRevision validates bounds and builds a Revision. The index is checked
// separately by ValidateRevisionIndex so its error code stays distinct.
func NewRevision(assetID domain.AssetID, index uint32, updatedHash []byte, notes string, now time.Time) (*Revision, error) {
	if err := ValidateRevisionIndex(index); err != nil {
		return nil, err
	}
	if err := checkLen("notes", notes, MaxRevisionNotesLen); err != nil {
		return nil, err
	}
	hash, err := domain.DigestFromBytes(updatedHash)
	if err != nil {
		return nil, err
	}
	return &Revision{
		AssetID:     assetID,
		Index:       index,
		UpdatedHash: hash,
		Notes:       notes,
		RecordedAt:  now,
	}, nil
}

// Certification is one certifier's attestation for an asset. A later
// certification by the same certifier replaces it. Active is always true:
// there is no revoke path.
type Certification struct {
	AssetID   domain.AssetID  `json:"asset_id"`
	Certifier domain.Identity `json:"certifier"`
	CertType  string          `json:"cert_type"`
	Expiry    time.Time       `json:"expiry"`
	Details   string          `json:"details"`
	Active    bool            `json:"active"`
}

func NewCertification(assetID domain.AssetID, certifier domain.Identity, certType string, expiry time.Time, details string) (*Certification, error) {
	if err := checkLen("cert_type", certType, MaxCertTypeLen); err != nil {
		return nil, err
	}
	if err := checkLen("details", details, MaxCertDetailsLen); err != nil {
		return nil, err
	}
	return &Certification{
		AssetID:   assetID,
		Certifier: certifier,
		CertType:  certType,
		Expiry:    expiry,
		Details:   details,
		Active:    true,
	}, nil
}

// Warranty is the single current warranty term of an asset.
type Warranty struct {
	AssetID   domain.AssetID  `json:"asset_id"`
	Duration  time.Duration   `json:"duration"`
	Terms     string          `json:"terms"`
	StartTime time.Time       `json:"start_time"`
	Provider  domain.Identity `json:"provider"`
}

func NewWarranty(assetID domain.AssetID, provider domain.Identity, duration time.Duration, terms string, now time.Time) (*Warranty, error) {
	if duration < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "duration cannot be negative")
	}
	if err := checkLen("terms", terms, MaxWarrantyTermsLen); err != nil {
		return nil, err
	}
	return &Warranty{
		AssetID:   assetID,
		Duration:  duration,
		Terms:     terms,
		StartTime: now,
		Provider:  provider,
	}, nil
}

// EndsAt is the last instant at which the warranty still counts as active.
func (w *Warranty) EndsAt() time.Time {
	return w.StartTime.Add(w.Duration)
}

// IsActiveAt reports whether now <= StartTime + Duration. The expiry instant
// itself is still active.
func (w *Warranty) IsActiveAt(now time.Time) bool {
	return !now.After(w.EndsAt())
}
