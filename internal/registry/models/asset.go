package models

import (
	"crypto/subtle"
	"time"

	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

// Asset is the immutable authenticity record of one physical part.
//
// Invariants:
//   - ID is assigned by the directory and never reused
//   - Serial and Model are at most 64 bytes, Description at most 500
//   - AuthHash is exactly 32 bytes
//   - no field changes after creation
type Asset struct {
	ID          domain.AssetID  `json:"asset_id"`
	Serial      string          `json:"serial"`
	AuthHash    domain.Digest   `json:"auth_hash"`
	Creator     domain.Identity `json:"creator"`
	Model       string          `json:"model"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AssetMetadata is the caller-supplied part of an Asset.
type AssetMetadata struct {
	Serial      string
	AuthHash    []byte
	Model       string
	Description string
}

// Validate checks every bound at once so nothing is written on failure.
func (m AssetMetadata) Validate() error {
	if err := checkLen("serial", m.Serial, MaxSerialLen); err != nil {
		return err
	}
	if len(m.AuthHash) != domain.DigestSize {
		return dErrors.New(dErrors.CodeInvalidInput, "auth_hash must be exactly 32 bytes")
	}
	if err := checkLen("model", m.Model, MaxModelLen); err != nil {
		return err
	}
	return checkLen("description", m.Description, MaxDescriptionLen)
}

// NewAsset builds an Asset from validated metadata.
func NewAsset(id domain.AssetID, creator domain.Identity, meta AssetMetadata, now time.Time) (*Asset, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidID, "asset id must be positive")
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	hash, err := domain.DigestFromBytes(meta.AuthHash)
	if err != nil {
		return nil, err
	}
	return &Asset{
		ID:          id,
		Serial:      meta.Serial,
		AuthHash:    hash,
		Creator:     creator,
		Model:       meta.Model,
		Description: meta.Description,
		CreatedAt:   now,
	}, nil
}

// Verification is the outcome of an authenticity probe.
type Verification string

const (
	VerificationMatch    Verification = "match"
	VerificationMismatch Verification = "mismatch"
)

// Verify compares provided against the stored digest over its full length.
// A probe of the wrong length is an input error, never a mismatch.
func (a *Asset) Verify(provided []byte) (Verification, error) {
	if len(provided) != domain.DigestSize {
		return "", dErrors.New(dErrors.CodeInvalidInput, "hash must be exactly 32 bytes")
	}
	if subtle.ConstantTimeCompare(a.AuthHash[:], provided) == 1 {
		return VerificationMatch, nil
	}
	return VerificationMismatch, nil
}
