/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with API clients, separate from the
  domain types. Domain types carry decimal.Decimal and catalog.Day;
  DTOs carry strings so the wire format is explicit and stable.

CONVENTIONS:
  - Money is a decimal string ("6.40"), never a float
  - Dates are yyyy-MM-dd strings
  - Timestamps are RFC3339 strings

SEE ALSO:
  - handlers.go: Handler implementations that populate these
*/
package api

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// PRICING
// =============================================================================

// DiscountPriceDTO is one row of the active-discounts listing.
type DiscountPriceDTO struct {
	ProductID       int64  `json:"product_id"`
	ProductName     string `json:"product_name"`
	StoreID         int64  `json:"store_id"`
	FromDate        string `json:"from_date"`
	ToDate          string `json:"to_date"`
	PackageQty      string `json:"package_qty"`
	PackageUnit     string `json:"package_unit"`
	Percentage      int64  `json:"percentage"`
	OriginalPrice   string `json:"original_price"`
	DiscountedPrice string `json:"discounted_price"`
	Currency        string `json:"currency"`
}

// StorePriceDTO is one store's current price for a product.
type StorePriceDTO struct {
	StoreID        int64  `json:"store_id"`
	StoreName      string `json:"store_name,omitempty"`
	EntryDate      string `json:"entry_date"`
	Price          string `json:"price"`
	EffectivePrice string `json:"effective_price"`
	DiscountPct    int64  `json:"discount_pct,omitempty"`
	Currency       string `json:"currency"`
	PackageQty     string `json:"package_qty"`
	PackageUnit    string `json:"package_unit"`
}

// ProductPricesResponse lists a product's per-store prices as of a day.
type ProductPricesResponse struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	AsOf      string          `json:"as_of"`
	Prices    []StorePriceDTO `json:"prices"`
}

// =============================================================================
// BASKET
// =============================================================================

// BasketItemRequest is one requested product in an optimization call.
type BasketItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// OptimizeBasketRequest is the body of POST /api/basket/optimize.
type OptimizeBasketRequest struct {
	Items []BasketItemRequest `json:"items"`
	AsOf  string              `json:"as_of,omitempty"`
}

// BasketLineDTO is one assigned product within a store's shopping list.
type BasketLineDTO struct {
	ProductID   int64  `json:"product_id"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	DiscountPct int64  `json:"discount_pct,omitempty"`
	Cost        string `json:"cost"`
	Currency    string `json:"currency"`
}

// StoreListDTO is the shopping list for one store.
type StoreListDTO struct {
	StoreID   int64           `json:"store_id"`
	StoreName string          `json:"store_name"`
	Items     []BasketLineDTO `json:"items"`
	Subtotal  string          `json:"subtotal"`
	ItemCount int             `json:"item_count"`
}

// OptimizeBasketResponse is the optimization result.
type OptimizeBasketResponse struct {
	AsOf          string         `json:"as_of"`
	Stores        []StoreListDTO `json:"stores"`
	Unfulfillable []int64        `json:"unfulfillable,omitempty"`
	Total         string         `json:"total"`
	Baseline      string         `json:"baseline"`
	Savings       string         `json:"savings"`
}

// =============================================================================
// ALERTS
// =============================================================================

// CreateAlertRequest is the body of POST /api/alerts.
type CreateAlertRequest struct {
	ProductID   int64  `json:"product_id"`
	StoreID     *int64 `json:"store_id,omitempty"`
	TargetPrice string `json:"target_price"`
}

// AlertDTO is the JSON form of a price alert.
type AlertDTO struct {
	ID               string  `json:"id"`
	ProductID        int64   `json:"product_id"`
	StoreID          *int64  `json:"store_id,omitempty"`
	TargetPrice      string  `json:"target_price"`
	Active           bool    `json:"active"`
	TriggeredPrice   *string `json:"triggered_price,omitempty"`
	TriggeredStoreID *int64  `json:"triggered_store_id,omitempty"`
	TriggeredAt      *string `json:"triggered_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// CheckAlertsResponse reports how many alerts a manual check fired.
type CheckAlertsResponse struct {
	Checked   int `json:"checked"`
	Triggered int `json:"triggered"`
}

// =============================================================================
// INGESTION
// =============================================================================

// FileResultDTO is the per-file outcome of an ingestion run.
type FileResultDTO struct {
	File         string `json:"file"`
	Type         string `json:"type"`
	RowsUpserted int    `json:"rows_upserted"`
	RowsSkipped  int    `json:"rows_skipped"`
	Error        string `json:"error,omitempty"`
}

// RunReportDTO summarizes a whole ingestion run.
type RunReportDTO struct {
	Started   string          `json:"started"`
	Duration  string          `json:"duration"`
	Committed int             `json:"committed"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Files     []FileResultDTO `json:"files"`
}
