/*
Package pricing answers "what does this item cost, right now, per store".

PURPOSE:
  Every query-side feature resolves prices through this one engine so the
  semantics stay identical across call sites:
  - Discount listings need the exact-package original price a discount
    applies against
  - Value analysis and basket optimization need each store's most recent
    observation
  - Alert checking needs the minimum effective price across stores

KEY CONCEPTS:
  Latest price: the most recent PriceEntry with EntryDate <= the reference
  date, under optional store/package filters. No entry is not an error;
  it is a data-completeness gap.

  Effective price: the price actually payable after an active discount,
  rounded half-up to 2 decimals.

SEE ALSO:
  - basket.go: The optimizer layered on this engine
  - alerts: The alert checker, another consumer
*/
package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pricefeed/basket-engine/catalog"
)

// Source is the read-only query surface the engine needs. Both the SQLite
// store and the in-memory store implement it.
type Source interface {
	FindProductByID(ctx context.Context, id catalog.ProductID) (*catalog.Product, error)
	FindStoreByID(ctx context.Context, id catalog.StoreID) (*catalog.Store, error)

	// LatestEntry returns the most recent entry with EntryDate <= AsOf
	// matching every supplied filter, or nil.
	LatestEntry(ctx context.Context, q catalog.PriceQuery) (*catalog.PriceEntry, error)

	// LatestEntriesPerStore returns one entry per store (each store's most
	// recent observation on or before asOf), ordered by ascending store id.
	LatestEntriesPerStore(ctx context.Context, productID catalog.ProductID, asOf catalog.Day) ([]catalog.PriceEntry, error)

	// ActiveDiscounts returns all discounts whose window covers asOf.
	ActiveDiscounts(ctx context.Context, asOf catalog.Day) ([]catalog.Discount, error)

	// ActiveDiscountFor returns the discount active on asOf for the exact
	// (product, store, package) combination, or nil.
	ActiveDiscountFor(ctx context.Context, productID catalog.ProductID, storeID catalog.StoreID, pkgQty decimal.Decimal, pkgUnit string, asOf catalog.Day) (*catalog.Discount, error)
}

// Engine resolves prices against a Source.
type Engine struct {
	Source Source
}

func NewEngine(src Source) *Engine {
	return &Engine{Source: src}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// LatestPrice returns the most recent price entry on or before q.AsOf under
// the query's filters, or nil when no observation exists.
func (e *Engine) LatestPrice(ctx context.Context, q catalog.PriceQuery) (*catalog.PriceEntry, error) {
	return e.Source.LatestEntry(ctx, q)
}

// LatestPerStore returns each store's most recent observation of the
// product on or before asOf.
func (e *Engine) LatestPerStore(ctx context.Context, productID catalog.ProductID, asOf catalog.Day) ([]catalog.PriceEntry, error) {
	return e.Source.LatestEntriesPerStore(ctx, productID, asOf)
}

// OriginalPrice returns the price a discount is applied against: the latest
// entry for the discount's exact (product, store, package) on or before
// asOf. nil means the discount cannot be priced yet.
func (e *Engine) OriginalPrice(ctx context.Context, d catalog.Discount, asOf catalog.Day) (*catalog.PriceEntry, error) {
	return e.Source.LatestEntry(ctx, catalog.PriceQuery{
		ProductID:   d.ProductID,
		StoreID:     &d.StoreID,
		PackageQty:  &d.PackageQty,
		PackageUnit: &d.PackageUnit,
		AsOf:        asOf,
	})
}

// DiscountedPrice applies a percentage to an original price, rounded
// half-up to the currency's minor unit (2 decimals).
func DiscountedPrice(original decimal.Decimal, percentage int) decimal.Decimal {
	factor := decimal.NewFromInt(int64(100 - percentage)).Div(decimal.NewFromInt(100))
	return original.Mul(factor).Round(2)
}

// EffectivePrice is the unit price payable given an optional active
// discount.
func EffectivePrice(entry catalog.PriceEntry, d *catalog.Discount) decimal.Decimal {
	if d == nil {
		return entry.Price
	}
	return DiscountedPrice(entry.Price, d.Percentage)
}

// =============================================================================
// DISCOUNT LISTING
// =============================================================================

// DiscountPrice is a discount enriched with the price it applies against.
type DiscountPrice struct {
	Discount   catalog.Discount
	Product    *catalog.Product
	Original   decimal.Decimal
	Discounted decimal.Decimal
	Currency   string
}

// ActiveDiscountPrices returns every discount active on asOf that has a
// matching original price. Discounts with no exact-package price entry are
// excluded rather than reported as errors.
func (e *Engine) ActiveDiscountPrices(ctx context.Context, asOf catalog.Day) ([]DiscountPrice, error) {
	discounts, err := e.Source.ActiveDiscounts(ctx, asOf)
	if err != nil {
		return nil, err
	}

	out := make([]DiscountPrice, 0, len(discounts))
	for _, d := range discounts {
		entry, err := e.OriginalPrice(ctx, d, asOf)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue // no matching price yet
		}
		product, err := e.Source.FindProductByID(ctx, d.ProductID)
		if err != nil {
			return nil, err
		}
		out = append(out, DiscountPrice{
			Discount:   d,
			Product:    product,
			Original:   entry.Price,
			Discounted: DiscountedPrice(entry.Price, d.Percentage),
			Currency:   entry.Currency,
		})
	}
	return out, nil
}
