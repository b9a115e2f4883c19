package catalog

import "time"

// Product is the engine's read-only view of a catalog product. Ownership
// stays with the catalog; the engine only reads fallback costs from it.
type Product struct {
	ID                   int64
	BusinessID           int64
	Name                 string
	SKU                  string
	FallbackPurchaseCost *int64
	SaleCost             *int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
