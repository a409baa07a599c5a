package audit

import (
	"context"
	"time"

	"provenance/pkg/domain"
)

// EventCategory classifies audit events for routing and retention.
type EventCategory string

const (
	// CategoryCompliance covers registry mutations. Every successful write to
	// the registry produces exactly one compliance event inside the same
	// transaction.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected attempts worth alerting on, such as a
	// non-custodian trying to move an asset.
	CategorySecurity EventCategory = "security"
)

// Event is emitted from registry logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory   `json:"category"`
	Timestamp time.Time       `json:"timestamp"`
	AssetID   domain.AssetID  `json:"asset_id"`
	ActorID   domain.Identity `json:"actor_id"`
	Action    string          `json:"action"`
	// Subject is the counterparty of the action when there is one, e.g. the
	// recipient of a transfer or the certifier of a certification.
	Subject   string `json:"subject,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventAssetCreated           AuditEvent = "asset_created"
	EventRevisionAdded          AuditEvent = "revision_added"
	EventAssetCertified         AuditEvent = "asset_certified"
	EventWarrantyAdded          AuditEvent = "warranty_added"
	EventProvenanceLogged       AuditEvent = "provenance_logged"
	EventTransferRestrictionSet AuditEvent = "transfer_restriction_set"
	EventCustodyTransferred     AuditEvent = "custody_transferred"

	EventAuthorizationDenied AuditEvent = "authorization_denied"
	EventTransferBlocked     AuditEvent = "transfer_blocked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAuthorizationDenied: CategorySecurity,
	EventTransferBlocked:     CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryCompliance.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryCompliance
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAsset(ctx context.Context, assetID domain.AssetID) ([]Event, error)
}
