package models

import (
	"fmt"

	dErrors "provenance/pkg/domain-errors"
)

// Field bounds. Text limits are measured in bytes.
const (
	MaxSerialLen        = 64
	MaxModelLen         = 64
	MaxDescriptionLen   = 500
	MaxRevisionNotesLen = 200
	MaxCertTypeLen      = 32
	MaxCertDetailsLen   = 200
	MaxWarrantyTermsLen = 300
	MaxActionLen        = 64
	MaxLocationLen      = 128

	// MaxRevisions bounds revision indexes to [0, MaxRevisions).
	MaxRevisions = 10
	// MaxProvenanceEvents bounds log indexes to [1, MaxProvenanceEvents].
	MaxProvenanceEvents = 50
	// MaxAllowedTransferees bounds a transfer policy allow-list.
	MaxAllowedTransferees = 10
)

func checkLen(field, value string, limit int) error {
	if len(value) > limit {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must be %d bytes or less", field, limit))
	}
	return nil
}
