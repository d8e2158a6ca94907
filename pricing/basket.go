/*
basket.go - Multi-store basket optimization

PURPOSE:
  Given a list of (product, desired quantity) pairs, assign each item to the
  store where it is cheapest on the reference date, discount-aware, and
  report per-store shopping lists, a grand total, and the savings against a
  worst-single-pick baseline.

ALGORITHM:
  Per-item greedy. Each product is assigned independently to its
  minimum-effective-cost offer; there is no attempt to minimize the number
  of stores visited or to account for travel cost.

DETERMINISM:
  Offers are ordered by ascending store id and only a strictly cheaper
  offer displaces the current pick, so equal-cost ties always go to the
  lowest store id.

QUANTITY SEMANTICS:
  Desired quantity is a package count (a multiple of the store's sold
  package), not a target weight or volume.

SEE ALSO:
  - engine.go: Effective-price resolution feeding the offers
*/
package pricing

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pricefeed/basket-engine/catalog"
)

// =============================================================================
// REQUEST / RESULT TYPES
// =============================================================================

// Item is one basket line: a product and how many packages of it.
type Item struct {
	ProductID catalog.ProductID
	Quantity  int64
}

// Offer is one store's effective terms for a product.
type Offer struct {
	StoreID     catalog.StoreID
	StoreName   string
	UnitPrice   decimal.Decimal // effective price per package
	Currency    string
	PackageQty  decimal.Decimal
	PackageUnit string
	DiscountPct int // 0 when no discount applied
}

// Pick is an item assigned to the offer that won it.
type Pick struct {
	ProductID catalog.ProductID
	Quantity  int64
	Offer     Offer
	Cost      decimal.Decimal // UnitPrice * Quantity
}

// StoreList is the shopping list for one store.
type StoreList struct {
	StoreID   catalog.StoreID
	StoreName string
	Items     []Pick
	Subtotal  decimal.Decimal
	ItemCount int
}

// Result is the full optimization outcome. Unfulfillable products (unknown
// id, no price anywhere) are reported, not errors: the rest of the basket
// is still optimized.
type Result struct {
	Unfulfillable []catalog.ProductID
	Stores        []StoreList
	Total         decimal.Decimal
	Baseline      decimal.Decimal // sum of worst per-store costs
	Savings       decimal.Decimal // max(0, Baseline - Total)
}

// =============================================================================
// PURE ASSIGNMENT
// =============================================================================

// Assign performs the greedy per-item store assignment over prepared
// offers. It is pure: no storage access, fully deterministic for a given
// input (offer slices must be ordered by ascending store id).
func Assign(items []Item, offers map[catalog.ProductID][]Offer) Result {
	res := Result{
		Total:    decimal.Zero,
		Baseline: decimal.Zero,
	}

	lists := make(map[catalog.StoreID]*StoreList)

	for _, item := range items {
		candidates := offers[item.ProductID]
		if len(candidates) == 0 {
			res.Unfulfillable = append(res.Unfulfillable, item.ProductID)
			continue
		}

		qty := decimal.NewFromInt(item.Quantity)
		best := 0
		bestCost := candidates[0].UnitPrice.Mul(qty)
		worstCost := bestCost
		for i := 1; i < len(candidates); i++ {
			cost := candidates[i].UnitPrice.Mul(qty)
			if cost.LessThan(bestCost) { // strict: first-seen wins ties
				best = i
				bestCost = cost
			}
			if cost.GreaterThan(worstCost) {
				worstCost = cost
			}
		}

		chosen := candidates[best]
		list := lists[chosen.StoreID]
		if list == nil {
			list = &StoreList{StoreID: chosen.StoreID, StoreName: chosen.StoreName, Subtotal: decimal.Zero}
			lists[chosen.StoreID] = list
		}
		list.Items = append(list.Items, Pick{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Offer:     chosen,
			Cost:      bestCost,
		})
		list.Subtotal = list.Subtotal.Add(bestCost)
		list.ItemCount++

		res.Baseline = res.Baseline.Add(worstCost)
	}

	for _, list := range lists {
		res.Stores = append(res.Stores, *list)
		res.Total = res.Total.Add(list.Subtotal)
	}
	sort.Slice(res.Stores, func(i, j int) bool { return res.Stores[i].StoreID < res.Stores[j].StoreID })

	res.Savings = res.Baseline.Sub(res.Total)
	if res.Savings.IsNegative() {
		res.Savings = decimal.Zero
	}
	return res
}

// =============================================================================
// OPTIMIZER - Offer building + assignment
// =============================================================================

// Optimizer builds discount-aware offers from the pricing engine and runs
// the assignment.
type Optimizer struct {
	Engine *Engine
}

func NewOptimizer(e *Engine) *Optimizer {
	return &Optimizer{Engine: e}
}

// Optimize resolves offers for every requested product as of the reference
// date and assigns each item to its cheapest store.
func (o *Optimizer) Optimize(ctx context.Context, items []Item, asOf catalog.Day) (*Result, error) {
	offers := make(map[catalog.ProductID][]Offer)

	for _, item := range items {
		if _, done := offers[item.ProductID]; done {
			continue
		}

		product, err := o.Engine.Source.FindProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			offers[item.ProductID] = nil // unknown product: unfulfillable
			continue
		}

		entries, err := o.Engine.LatestPerStore(ctx, item.ProductID, asOf)
		if err != nil {
			return nil, err
		}

		var productOffers []Offer
		for _, entry := range entries {
			discount, err := o.Engine.Source.ActiveDiscountFor(ctx,
				entry.ProductID, entry.StoreID, entry.PackageQty, entry.PackageUnit, asOf)
			if err != nil {
				return nil, err
			}

			offer := Offer{
				StoreID:     entry.StoreID,
				UnitPrice:   EffectivePrice(entry, discount),
				Currency:    entry.Currency,
				PackageQty:  entry.PackageQty,
				PackageUnit: entry.PackageUnit,
			}
			if discount != nil {
				offer.DiscountPct = discount.Percentage
			}
			if store, err := o.Engine.Source.FindStoreByID(ctx, entry.StoreID); err != nil {
				return nil, err
			} else if store != nil {
				offer.StoreName = store.Name
			}
			productOffers = append(productOffers, offer)
		}
		offers[item.ProductID] = productOffers
	}

	res := Assign(items, offers)
	return &res, nil
}
