/*
Package alerts tracks user price targets against the catalog.

PURPOSE:
  An alert watches a product, optionally pinned to one store, until its
  effective price (discount-aware) drops to the user's target. The checker
  makes the trigger decision and records the triggering price and store;
  delivering notifications is someone else's job.

SEE ALSO:
  - checker.go: The trigger decision
  - pricing: Effective-price resolution shared with every other consumer
*/
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pricefeed/basket-engine/catalog"
)

// Alert is one price watch. StoreID nil means "any store".
type Alert struct {
	ID          uuid.UUID
	ProductID   catalog.ProductID
	StoreID     *catalog.StoreID
	TargetPrice decimal.Decimal
	Active      bool

	// Set when the alert triggers; the alert is deactivated at the same
	// time.
	TriggeredPrice   *decimal.Decimal
	TriggeredStoreID *catalog.StoreID
	TriggeredAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an active alert for a product.
func New(productID catalog.ProductID, storeID *catalog.StoreID, target decimal.Decimal) *Alert {
	now := time.Now().UTC()
	return &Alert{
		ID:          uuid.New(),
		ProductID:   productID,
		StoreID:     storeID,
		TargetPrice: target,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Store persists alerts.
type Store interface {
	SaveAlert(ctx context.Context, a *Alert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error)
	ListAlerts(ctx context.Context) ([]Alert, error)
	ListActiveAlerts(ctx context.Context) ([]Alert, error)
	DeleteAlert(ctx context.Context, id uuid.UUID) error
}
