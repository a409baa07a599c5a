package handler

import (
	"strings"
	"time"

	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

// Request DTOs only check syntax. Bounds, lengths and authorization are left
// to the service so that its check order decides which error a caller sees.

// decodeDigest returns nil for text that is not hex. The service then rejects
// the digest by length, after its existence and authorization checks.
func decodeDigest(s string) []byte {
	raw, err := domain.DecodeHex(s)
	if err != nil {
		return nil
	}
	return raw
}

// CreateAssetRequest is the body of POST /v1/assets.
type CreateAssetRequest struct {
	Serial      string `json:"serial"`
	AuthHash    string `json:"auth_hash"`
	Model       string `json:"model"`
	Description string `json:"description"`

	authHash []byte
}

func (r *CreateAssetRequest) Validate() error {
	r.authHash = decodeDigest(r.AuthHash)
	return nil
}

// VerifyRequest is the body of POST /v1/assets/{id}/verify.
type VerifyRequest struct {
	Hash string `json:"hash"`

	hash []byte
}

func (r *VerifyRequest) Validate() error {
	r.hash = decodeDigest(r.Hash)
	return nil
}

// AddRevisionRequest is the body of PUT /v1/assets/{id}/revisions/{index}.
type AddRevisionRequest struct {
	UpdatedHash string `json:"updated_hash"`
	Notes       string `json:"notes"`

	updatedHash []byte
}

func (r *AddRevisionRequest) Validate() error {
	r.updatedHash = decodeDigest(r.UpdatedHash)
	return nil
}

// CertifyRequest is the body of PUT /v1/assets/{id}/certifications.
type CertifyRequest struct {
	CertType string    `json:"cert_type"`
	Expiry   time.Time `json:"expiry"`
	Details  string    `json:"details"`
}

func (r *CertifyRequest) Validate() error {
	return nil
}

// AddWarrantyRequest is the body of PUT /v1/assets/{id}/warranty.
// DurationSeconds is whole seconds.
type AddWarrantyRequest struct {
	DurationSeconds int64  `json:"duration_seconds"`
	Terms           string `json:"terms"`
}

func (r *AddWarrantyRequest) Validate() error {
	if r.DurationSeconds > int64(maxWarrantyDuration/time.Second) {
		return dErrors.New(dErrors.CodeInvalidInput, "duration_seconds is too large")
	}
	return nil
}

// maxWarrantyDuration keeps DurationSeconds convertible to time.Duration.
const maxWarrantyDuration = time.Duration(1<<63 - 1)

func (r *AddWarrantyRequest) duration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}

// LogEventRequest is the body of POST /v1/assets/{id}/events.
type LogEventRequest struct {
	Action   string  `json:"action"`
	Location *string `json:"location,omitempty"`
}

func (r *LogEventRequest) Validate() error {
	return nil
}

// TransferPolicyRequest is the body of PUT /v1/assets/{id}/transfer-policy.
type TransferPolicyRequest struct {
	Restricted         bool     `json:"restricted"`
	AllowedTransferees []string `json:"allowed_transferees"`
}

func (r *TransferPolicyRequest) Validate() error {
	return nil
}

func (r *TransferPolicyRequest) allowed() []domain.Identity {
	out := make([]domain.Identity, 0, len(r.AllowedTransferees))
	for _, a := range r.AllowedTransferees {
		out = append(out, domain.Identity(a))
	}
	return out
}

// TransferRequest is the body of POST /v1/assets/{id}/transfer.
type TransferRequest struct {
	Recipient string `json:"recipient"`
}

func (r *TransferRequest) Validate() error {
	r.Recipient = strings.TrimSpace(r.Recipient)
	return nil
}
