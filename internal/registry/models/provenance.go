package models

import (
	"time"

	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	pstrings "provenance/pkg/platform/strings"
)

// ProvenanceEvent is one immutable custody or handling record. Indexes are
// dense and 1-based: the n-th event logged for an asset has Index n.
type ProvenanceEvent struct {
	AssetID    domain.AssetID  `json:"asset_id"`
	Index      uint32          `json:"log_index"`
	Actor      domain.Identity `json:"actor"`
	Action     string          `json:"action"`
	Location   *string         `json:"location,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// ValidateEventInput checks action and location bounds.
func ValidateEventInput(action string, location *string) error {
	if err := checkLen("action", action, MaxActionLen); err != nil {
		return err
	}
	if location != nil {
		return checkLen("location", *location, MaxLocationLen)
	}
	return nil
}

// NextEventIndex returns the index the next event for an asset receives
// given how many it already has.
//
// Errors: returns CodeMaxLogsReached once count reaches MaxProvenanceEvents.
func NextEventIndex(count uint32) (uint32, error) {
	if count >= MaxProvenanceEvents {
		return 0, dErrors.New(dErrors.CodeMaxLogsReached, "provenance log is full")
	}
	return count + 1, nil
}

// ValidateEventIndex enforces 1 <= index <= MaxProvenanceEvents.
func ValidateEventIndex(index uint32) error {
	if index == 0 || index > MaxProvenanceEvents {
		return dErrors.New(dErrors.CodeInvalidLog, "log index must be between 1 and 50")
	}
	return nil
}

// TransferPolicy optionally restricts who may receive custody of an asset.
// A missing policy, or one with Restricted false, permits any recipient.
type TransferPolicy struct {
	AssetID            domain.AssetID    `json:"asset_id"`
	Restricted         bool              `json:"restricted"`
	AllowedTransferees []domain.Identity `json:"allowed_transferees"`
}

// NewTransferPolicy normalizes allowed into an ordered set and enforces the
// MaxAllowedTransferees cap.
func NewTransferPolicy(assetID domain.AssetID, restricted bool, allowed []domain.Identity) (*TransferPolicy, error) {
	set, ok := pstrings.OrderedSet(allowed, MaxAllowedTransferees)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "allowed transferees must contain 10 identities or fewer")
	}
	return &TransferPolicy{
		AssetID:            assetID,
		Restricted:         restricted,
		AllowedTransferees: set,
	}, nil
}

// Permits reports whether recipient may receive custody under p. A nil
// policy permits everyone.
func (p *TransferPolicy) Permits(recipient domain.Identity) bool {
	if p == nil || !p.Restricted {
		return true
	}
	return pstrings.Contains(p.AllowedTransferees, recipient)
}
