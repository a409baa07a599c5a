// Package cache holds read-through caches for asset metadata.
//
// Only assets are cached: they are immutable after creation, so entries never
// need invalidation. Custody and every other ledger are always read from the
// store.
package cache

import (
	"fmt"

	"provenance/pkg/domain"
)

const keyPrefix = "provenance:asset:"

func assetKey(id domain.AssetID) string {
	return fmt.Sprintf("%s%d", keyPrefix, uint64(id))
}
