/*
Package catalog provides the normalized product/price/discount catalog.

PURPOSE:
  This package contains the core catalog entities and the reconciliation
  logic that keeps them consistent across repeated CSV ingestion runs from
  multiple retail chains:
  - Find-or-create resolution of Store/Brand/Category/Product master data
  - Idempotent price observation upserts keyed by (product, store, date)
  - Discount upserts governed by a recorded-date conflict policy

KEY CONCEPTS IN THIS FILE (types.go):
  - Store/Brand/Category: master data, deduplicated case-insensitively
  - Product: name + brand natural key; category is mutable master data
  - PriceEntry: one price observation per (product, store, day)
  - Discount: a percentage valid over a [FromDate, ToDate] window

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every price and package quantity
  2. Natural keys: equality by surrogate ID once persisted, by natural key
     before persistence
  3. Idempotency: re-ingesting the same source data never duplicates rows

SEE ALSO:
  - resolver.go: Find-or-create resolution
  - decision.go: Discount conflict-resolution policy
  - upsert.go: Natural-key upserts
  - store.go: Persistence interfaces
*/
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	StoreID      int64
	BrandID      int64
	CategoryID   int64
	ProductID    int64
	PriceEntryID int64
	DiscountID   int64
)

// =============================================================================
// MASTER DATA - Store / Brand / Category
// =============================================================================

// Store is a retail chain. Names are unique case-insensitively.
type Store struct {
	ID        StoreID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Brand is a product brand. Names are unique case-insensitively.
type Brand struct {
	ID        BrandID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category is a product category. Names are unique case-insensitively.
type Category struct {
	ID        CategoryID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PRODUCT
// =============================================================================

// Product is identified by (name case-insensitive, brand). Its category is
// mutable master data: the most recently ingested category wins.
type Product struct {
	ID         ProductID
	Name       string
	BrandID    BrandID
	CategoryID CategoryID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// PRICE ENTRY - One observation per (product, store, day)
// =============================================================================

// PriceEntry holds the latest known price for a product at a store on a
// given day. Re-ingesting the same day replaces the row in full.
type PriceEntry struct {
	ID             PriceEntryID
	ProductID      ProductID
	StoreID        StoreID
	EntryDate      Day
	StoreProductID string // the store's own identifier for the product
	Price          decimal.Decimal
	Currency       string
	PackageQty     decimal.Decimal
	PackageUnit    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate enforces the price entry invariants: price and package quantity
// must both be strictly positive.
func (e PriceEntry) Validate() error {
	if !e.Price.IsPositive() {
		return &InvalidEntryError{Field: "price", Value: e.Price.String()}
	}
	if !e.PackageQty.IsPositive() {
		return &InvalidEntryError{Field: "package_qty", Value: e.PackageQty.String()}
	}
	return nil
}

// =============================================================================
// DISCOUNT - Percentage window with recorded-date conflict resolution
// =============================================================================

// Discount is a percentage off the matching price entry, valid over the
// inclusive [FromDate, ToDate] window. RecordedAt is the date the record was
// observed in a source file, independent of the validity window; it drives
// the conflict policy in decision.go.
type Discount struct {
	ID          DiscountID
	ProductID   ProductID
	StoreID     StoreID
	FromDate    Day
	ToDate      Day
	PackageQty  decimal.Decimal
	PackageUnit string
	Percentage  int // 1..100
	RecordedAt  Day
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DiscountKey is the natural key of a discount. PackageQty is normalized to
// its canonical decimal string so the key is comparable.
type DiscountKey struct {
	ProductID   ProductID
	StoreID     StoreID
	FromDate    Day
	PackageQty  string
	PackageUnit string
}

// Key returns the discount's natural key.
func (d Discount) Key() DiscountKey {
	return DiscountKey{
		ProductID:   d.ProductID,
		StoreID:     d.StoreID,
		FromDate:    d.FromDate,
		PackageQty:  d.PackageQty.String(),
		PackageUnit: d.PackageUnit,
	}
}

// ActiveAt reports whether the discount window covers the given day.
// The window is inclusive on both ends.
func (d Discount) ActiveAt(day Day) bool {
	return !day.Before(d.FromDate) && !day.After(d.ToDate)
}

// Validate enforces the discount invariants: percentage in [1,100] and a
// window whose end does not precede its start.
func (d Discount) Validate() error {
	if d.Percentage < 1 || d.Percentage > 100 {
		return &InvalidEntryError{Field: "percentage", Value: itoa(d.Percentage)}
	}
	if d.ToDate.Before(d.FromDate) {
		return &InvalidEntryError{Field: "to_date", Value: d.ToDate.String()}
	}
	if !d.PackageQty.IsPositive() {
		return &InvalidEntryError{Field: "package_qty", Value: d.PackageQty.String()}
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// PriceQuery selects the most recent price entry on or before AsOf.
// StoreID, PackageQty and PackageUnit are optional filters; nil means
// "any value".
type PriceQuery struct {
	ProductID   ProductID
	StoreID     *StoreID
	PackageQty  *decimal.Decimal
	PackageUnit *string
	AsOf        Day
}

func itoa(n int) string {
	return decimal.NewFromInt(int64(n)).String()
}
