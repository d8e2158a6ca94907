package ingest_test

import (
	"testing"
	"time"

	"github.com/pricefeed/basket-engine/catalog"
	"github.com/pricefeed/basket-engine/ingest"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		path  string
		typ   ingest.FileType
		store string
		date  catalog.Day
	}{
		{"mercadona_2026-03-01.csv", ingest.FilePrices, "mercadona", catalog.NewDay(2026, time.March, 1)},
		{"el_corte_ingles_2026-03-01.csv", ingest.FilePrices, "el_corte_ingles", catalog.NewDay(2026, time.March, 1)},
		{"mercadona_discounts_2026-03-01.csv", ingest.FileDiscounts, "mercadona", catalog.NewDay(2026, time.March, 1)},
		{"el_corte_ingles_discounts_2026-03-01.csv", ingest.FileDiscounts, "el_corte_ingles", catalog.NewDay(2026, time.March, 1)},
		{"/incoming/lidl_2026-12-31.csv", ingest.FilePrices, "lidl", catalog.NewDay(2026, time.December, 31)},
		{"readme.txt", ingest.FileUnknown, "", catalog.Day{}},
		{"mercadona.csv", ingest.FileUnknown, "", catalog.Day{}},
		{"mercadona_2026-13-99.csv", ingest.FileUnknown, "", catalog.Day{}},
		{"_2026-03-01.csv", ingest.FileUnknown, "", catalog.Day{}},
	}

	for _, c := range cases {
		info := ingest.Classify(c.path)
		if info.Type != c.typ {
			t.Errorf("Classify(%q).Type = %v, want %v", c.path, info.Type, c.typ)
			continue
		}
		if c.typ == ingest.FileUnknown {
			continue
		}
		if info.StoreName != c.store {
			t.Errorf("Classify(%q).StoreName = %q, want %q", c.path, info.StoreName, c.store)
		}
		if !info.Date.Equal(c.date) {
			t.Errorf("Classify(%q).Date = %s, want %s", c.path, info.Date, c.date)
		}
	}
}

func TestClassify_DiscountsNeverParsedAsPrices(t *testing.T) {
	// The price pattern alone would happily match the discount file name
	// and absorb "_discounts" into the store name.
	info := ingest.Classify("mercadona_discounts_2026-03-01.csv")
	if info.Type != ingest.FileDiscounts {
		t.Fatalf("expected discounts file, got %v", info.Type)
	}
	if info.StoreName != "mercadona" {
		t.Errorf("store name polluted: %q", info.StoreName)
	}
}
