package alerts

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricefeed/basket-engine/catalog"
	"github.com/pricefeed/basket-engine/metrics"
	"github.com/pricefeed/basket-engine/pricing"
)

// Checker evaluates active alerts against current effective prices.
type Checker struct {
	Engine  *pricing.Engine
	Alerts  Store
	Metrics *metrics.Collector
}

func NewChecker(engine *pricing.Engine, store Store) *Checker {
	return &Checker{Engine: engine, Alerts: store}
}

// CheckAll evaluates every active alert as of the reference date. An alert
// whose minimum effective price is at or below its target is deactivated
// with the triggering price and store recorded. Returns the number of
// alerts triggered.
func (c *Checker) CheckAll(ctx context.Context, asOf catalog.Day) (int, error) {
	active, err := c.Alerts.ListActiveAlerts(ctx)
	if err != nil {
		return 0, err
	}

	triggered := 0
	for i := range active {
		hit, err := c.check(ctx, &active[i], asOf)
		if err != nil {
			return triggered, err
		}
		if hit {
			triggered++
		}
	}
	return triggered, nil
}

func (c *Checker) check(ctx context.Context, a *Alert, asOf catalog.Day) (bool, error) {
	entries, err := c.candidateEntries(ctx, a, asOf)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil // no data yet, keep watching
	}

	var bestPrice decimal.Decimal
	var bestStore catalog.StoreID
	found := false
	for _, entry := range entries {
		discount, err := c.Engine.Source.ActiveDiscountFor(ctx,
			entry.ProductID, entry.StoreID, entry.PackageQty, entry.PackageUnit, asOf)
		if err != nil {
			return false, err
		}
		effective := pricing.EffectivePrice(entry, discount)
		if !found || effective.LessThan(bestPrice) {
			bestPrice = effective
			bestStore = entry.StoreID
			found = true
		}
	}

	if bestPrice.GreaterThan(a.TargetPrice) {
		return false, nil
	}

	now := time.Now().UTC()
	a.Active = false
	a.TriggeredPrice = &bestPrice
	a.TriggeredStoreID = &bestStore
	a.TriggeredAt = &now
	if err := c.Alerts.SaveAlert(ctx, a); err != nil {
		return false, err
	}

	c.Metrics.AlertTriggered()
	log.Printf("[Alerts] alert %s triggered: product %d at %s (store %d, target %s)",
		a.ID, a.ProductID, bestPrice, bestStore, a.TargetPrice)
	return true, nil
}

func (c *Checker) candidateEntries(ctx context.Context, a *Alert, asOf catalog.Day) ([]catalog.PriceEntry, error) {
	if a.StoreID != nil {
		entry, err := c.Engine.LatestPrice(ctx, catalog.PriceQuery{
			ProductID: a.ProductID,
			StoreID:   a.StoreID,
			AsOf:      asOf,
		})
		if err != nil || entry == nil {
			return nil, err
		}
		return []catalog.PriceEntry{*entry}, nil
	}
	return c.Engine.LatestPerStore(ctx, a.ProductID, asOf)
}
