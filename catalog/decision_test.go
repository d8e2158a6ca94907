package catalog_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricefeed/basket-engine/catalog"
)

func day(y int, m time.Month, d int) catalog.Day {
	return catalog.NewDay(y, m, d)
}

func sampleDiscount(recorded catalog.Day) catalog.Discount {
	return catalog.Discount{
		ProductID:   1,
		StoreID:     1,
		FromDate:    day(2026, time.March, 1),
		ToDate:      day(2026, time.March, 14),
		PackageQty:  decimal.NewFromInt(1),
		PackageUnit: "kg",
		Percentage:  20,
		RecordedAt:  recorded,
	}
}

// =============================================================================
// DISCOUNT CONFLICT POLICY TESTS
// =============================================================================

func TestDecideDiscount_InsertWhenMissing(t *testing.T) {
	incoming := sampleDiscount(day(2026, time.February, 25))

	if got := catalog.DecideDiscount(nil, incoming); got != catalog.ActionInsert {
		t.Errorf("expected insert for unseen discount, got %v", got)
	}
}

func TestDecideDiscount_NewerRecordingWins(t *testing.T) {
	existing := sampleDiscount(day(2026, time.February, 20))
	incoming := sampleDiscount(day(2026, time.February, 25))
	incoming.Percentage = 30

	if got := catalog.DecideDiscount(&existing, incoming); got != catalog.ActionUpdate {
		t.Errorf("expected update from newer recording, got %v", got)
	}
}

func TestDecideDiscount_StaleRecordingIgnored(t *testing.T) {
	// A re-ingested old file must never roll back a newer observation.
	existing := sampleDiscount(day(2026, time.February, 25))
	incoming := sampleDiscount(day(2026, time.February, 20))
	incoming.Percentage = 50

	if got := catalog.DecideDiscount(&existing, incoming); got != catalog.ActionNoOp {
		t.Errorf("expected no-op for stale recording, got %v", got)
	}
}

func TestDecideDiscount_SameDaySameContentIsNoOp(t *testing.T) {
	existing := sampleDiscount(day(2026, time.February, 25))
	incoming := sampleDiscount(day(2026, time.February, 25))

	if got := catalog.DecideDiscount(&existing, incoming); got != catalog.ActionNoOp {
		t.Errorf("expected no-op for identical same-day record, got %v", got)
	}
}

func TestDecideDiscount_SameDayChangedPercentageUpdates(t *testing.T) {
	existing := sampleDiscount(day(2026, time.February, 25))
	incoming := sampleDiscount(day(2026, time.February, 25))
	incoming.Percentage = 25

	if got := catalog.DecideDiscount(&existing, incoming); got != catalog.ActionUpdate {
		t.Errorf("expected update for same-day corrected percentage, got %v", got)
	}
}

func TestDecideDiscount_SameDayChangedWindowEndUpdates(t *testing.T) {
	existing := sampleDiscount(day(2026, time.February, 25))
	incoming := sampleDiscount(day(2026, time.February, 25))
	incoming.ToDate = day(2026, time.March, 21)

	if got := catalog.DecideDiscount(&existing, incoming); got != catalog.ActionUpdate {
		t.Errorf("expected update for same-day extended window, got %v", got)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestDiscountValidate(t *testing.T) {
	valid := sampleDiscount(day(2026, time.February, 25))
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid discount rejected: %v", err)
	}

	tooHigh := valid
	tooHigh.Percentage = 101
	if err := tooHigh.Validate(); err == nil {
		t.Error("percentage above 100 accepted")
	}

	zero := valid
	zero.Percentage = 0
	if err := zero.Validate(); err == nil {
		t.Error("zero percentage accepted")
	}

	inverted := valid
	inverted.ToDate = day(2026, time.February, 1)
	if err := inverted.Validate(); err == nil {
		t.Error("window ending before it starts accepted")
	}
}

func TestPriceEntryValidate(t *testing.T) {
	entry := catalog.PriceEntry{
		ProductID:  1,
		StoreID:    1,
		EntryDate:  day(2026, time.March, 1),
		Price:      decimal.RequireFromString("9.99"),
		PackageQty: decimal.NewFromInt(1),
	}
	if err := entry.Validate(); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}

	free := entry
	free.Price = decimal.Zero
	if err := free.Validate(); err == nil {
		t.Error("zero price accepted")
	}
	if !catalog.IsClientError(free.Validate()) {
		t.Error("invalid entry should be a client error")
	}

	negativeQty := entry
	negativeQty.PackageQty = decimal.NewFromInt(-1)
	if err := negativeQty.Validate(); err == nil {
		t.Error("negative package quantity accepted")
	}
}

func TestDiscountActiveAt_WindowInclusive(t *testing.T) {
	d := sampleDiscount(day(2026, time.February, 25))

	cases := []struct {
		day    catalog.Day
		active bool
	}{
		{day(2026, time.February, 28), false},
		{day(2026, time.March, 1), true},
		{day(2026, time.March, 7), true},
		{day(2026, time.March, 14), true},
		{day(2026, time.March, 15), false},
	}
	for _, c := range cases {
		if got := d.ActiveAt(c.day); got != c.active {
			t.Errorf("ActiveAt(%s) = %v, want %v", c.day, got, c.active)
		}
	}
}

func TestDiscountKey_NormalizesPackageQty(t *testing.T) {
	a := sampleDiscount(day(2026, time.February, 25))
	b := a
	b.PackageQty = decimal.RequireFromString("1.0")

	if a.Key() != b.Key() {
		t.Errorf("keys differ for equal quantities: %+v vs %+v", a.Key(), b.Key())
	}
}
