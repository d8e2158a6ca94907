/*
upsert.go - Natural-key upserts for price entries and discounts

PURPOSE:
  Both write paths of the ingestion pipeline. Each upsert looks up by
  natural key and either inserts, replaces, or leaves the row alone, which
  is what makes file replay safe:

  UpsertPriceEntry: (product, store, date) holds only the latest known
  value for that date. A hit replaces every mutable field in full; there is
  no merge and no historical versioning within a day.

  UpsertDiscount: governed by the DecideDiscount policy. A NoOp performs no
  write at all, so the stored row's UpdatedAt is untouched.

SEE ALSO:
  - decision.go: The discount conflict policy
  - ingest/orchestrator.go: The caller
*/
package catalog

import "context"

// UpsertPriceEntry writes one price observation. On a natural-key hit the
// mutable fields (price, currency, package, store product id) are replaced
// in full. Returns the persisted row.
func UpsertPriceEntry(ctx context.Context, cat Catalog, e PriceEntry) (*PriceEntry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	existing, err := cat.FindPriceEntry(ctx, e.ProductID, e.StoreID, e.EntryDate)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.StoreProductID = e.StoreProductID
		existing.Price = e.Price
		existing.Currency = e.Currency
		existing.PackageQty = e.PackageQty
		existing.PackageUnit = e.PackageUnit
		if err := cat.UpdatePriceEntry(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	ins := e
	if err := cat.InsertPriceEntry(ctx, &ins); err != nil {
		return nil, err
	}
	return &ins, nil
}

// UpsertDiscount writes one discount window according to the conflict
// policy. Stale or identical records are a no-op and the existing row is
// returned unchanged. Returns the persisted row.
func UpsertDiscount(ctx context.Context, cat Catalog, d Discount) (*Discount, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	existing, err := cat.FindDiscount(ctx, d.Key())
	if err != nil {
		return nil, err
	}

	switch DecideDiscount(existing, d) {
	case ActionNoOp:
		return existing, nil

	case ActionUpdate:
		existing.Percentage = d.Percentage
		existing.ToDate = d.ToDate
		existing.RecordedAt = d.RecordedAt
		if err := cat.UpdateDiscount(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil

	default: // ActionInsert
		ins := d
		if err := cat.InsertDiscount(ctx, &ins); err != nil {
			return nil, err
		}
		return &ins, nil
	}
}
