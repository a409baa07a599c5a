package handler

import (
	"time"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	audit "provenance/pkg/platform/audit"
)

// CreateAssetResponse is returned by POST /v1/assets.
type CreateAssetResponse struct {
	AssetID domain.AssetID `json:"asset_id"`
}

// VerifyResponse is returned by POST /v1/assets/{id}/verify.
type VerifyResponse struct {
	AssetID domain.AssetID      `json:"asset_id"`
	Result  models.Verification `json:"result"`
}

// OwnerResponse is returned by GET /v1/assets/{id}/owner.
type OwnerResponse struct {
	AssetID domain.AssetID  `json:"asset_id"`
	Owner   domain.Identity `json:"owner"`
}

// AssetListResponse is returned by GET /v1/owners/{owner}/assets.
type AssetListResponse struct {
	Owner  domain.Identity `json:"owner"`
	Assets []*models.Asset `json:"assets"`
}

// CertificationListResponse is returned by GET /v1/assets/{id}/certifications.
type CertificationListResponse struct {
	AssetID        domain.AssetID          `json:"asset_id"`
	Certifications []*models.Certification `json:"certifications"`
}

// WarrantyResponse adds the computed status to a stored warranty.
type WarrantyResponse struct {
	*models.Warranty
	DurationSeconds int64     `json:"duration_seconds"`
	EndsAt          time.Time `json:"ends_at"`
	Active          bool      `json:"active"`
}

func toWarrantyResponse(w *models.Warranty, now time.Time) WarrantyResponse {
	return WarrantyResponse{
		Warranty:        w,
		DurationSeconds: int64(w.Duration / time.Second),
		EndsAt:          w.EndsAt(),
		Active:          w.IsActiveAt(now),
	}
}

// LogEventResponse is returned by POST /v1/assets/{id}/events.
type LogEventResponse struct {
	AssetID  domain.AssetID `json:"asset_id"`
	LogIndex uint32         `json:"log_index"`
}

// EventListResponse is returned by GET /v1/assets/{id}/events.
type EventListResponse struct {
	AssetID domain.AssetID            `json:"asset_id"`
	Count   uint32                    `json:"count"`
	Events  []*models.ProvenanceEvent `json:"events"`
}

// EventCountResponse is returned by GET /v1/assets/{id}/events/count.
type EventCountResponse struct {
	AssetID domain.AssetID `json:"asset_id"`
	Count   uint32         `json:"count"`
}

// AuditTrailResponse is returned by GET /v1/assets/{id}/audit.
type AuditTrailResponse struct {
	AssetID domain.AssetID `json:"asset_id"`
	Events  []audit.Event  `json:"events"`
}
