/*
csv.go - CSV readers for price and discount extracts

PURPOSE:
  Parses the two source file formats. Field contracts:

  Price rows (8 fields, ';'-delimited):
    product_id; product_name; product_category; brand;
    package_quantity; package_unit; price; currency

  Discount rows (9 fields, ';'-delimited):
    product_id; product_name; brand; package_quantity; package_unit;
    product_category; from_date; to_date; percentage_of_discount

ERROR TAXONOMY:
  A malformed header or an I/O failure is structural: the whole file is
  rejected. A malformed data row (bad field count, unparseable number or
  date) is logged, counted and skipped; its siblings continue. Decimal
  fields accept both '.' and ',' as separator.

SEE ALSO:
  - orchestrator.go: Drives the readers, one transaction per file
*/
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pricefeed/basket-engine/catalog"
)

// PriceRow is one parsed product-price record.
type PriceRow struct {
	StoreProductID string
	ProductName    string
	Category       string
	Brand          string
	PackageQty     decimal.Decimal
	PackageUnit    string
	Price          decimal.Decimal
	Currency       string
}

// DiscountRow is one parsed discount record.
type DiscountRow struct {
	StoreProductID string
	ProductName    string
	Brand          string
	PackageQty     decimal.Decimal
	PackageUnit    string
	Category       string
	FromDate       catalog.Day
	ToDate         catalog.Day
	Percentage     int
}

var priceHeader = []string{
	"product_id", "product_name", "product_category", "brand",
	"package_quantity", "package_unit", "price", "currency",
}

var discountHeader = []string{
	"product_id", "product_name", "brand", "package_quantity", "package_unit",
	"product_category", "from_date", "to_date", "percentage_of_discount",
}

// Reader is the CSV boundary the orchestrator consumes. Both methods return
// the parsed rows and the number of malformed rows that were skipped.
type Reader interface {
	ReadPriceRows(path string) ([]PriceRow, int, error)
	ReadDiscountRows(path string) ([]DiscountRow, int, error)
}

// CSVReader reads ';'-delimited extract files from disk.
type CSVReader struct{}

func (CSVReader) ReadPriceRows(path string) ([]PriceRow, int, error) {
	var rows []PriceRow
	skipped, err := readFile(path, priceHeader, func(record []string, line int) error {
		row, err := parsePriceRow(record)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, skipped, nil
}

func (CSVReader) ReadDiscountRows(path string) ([]DiscountRow, int, error) {
	var rows []DiscountRow
	skipped, err := readFile(path, discountHeader, func(record []string, line int) error {
		row, err := parseDiscountRow(record)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, skipped, nil
}

// readFile validates the header, then feeds each data record to consume.
// A consume or field-count error skips that row; header and I/O failures
// abort the file.
func readFile(path string, header []string, consume func(record []string, line int) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = len(header)
	r.TrimLeadingSpace = true

	got, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("%s: cannot read header: %w", path, err)
	}
	if err := checkHeader(got, header); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	skipped := 0
	line := 1
	for {
		line++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				log.Printf("[Ingest] %s line %d: %v, row skipped", path, line, err)
				skipped++
				continue
			}
			return skipped, fmt.Errorf("%s: read failed: %w", path, err)
		}
		if err := consume(record, line); err != nil {
			log.Printf("[Ingest] %s line %d: %v, row skipped", path, line, err)
			skipped++
		}
	}
	return skipped, nil
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("bad header: expected %d fields, got %d", len(want), len(got))
	}
	for i := range want {
		if !strings.EqualFold(strings.TrimSpace(got[i]), want[i]) {
			return fmt.Errorf("bad header: field %d is %q, expected %q", i+1, got[i], want[i])
		}
	}
	return nil
}

func parsePriceRow(rec []string) (PriceRow, error) {
	qty, err := parseDecimal(rec[4])
	if err != nil {
		return PriceRow{}, fmt.Errorf("package_quantity: %w", err)
	}
	price, err := parseDecimal(rec[6])
	if err != nil {
		return PriceRow{}, fmt.Errorf("price: %w", err)
	}
	return PriceRow{
		StoreProductID: strings.TrimSpace(rec[0]),
		ProductName:    strings.TrimSpace(rec[1]),
		Category:       strings.TrimSpace(rec[2]),
		Brand:          strings.TrimSpace(rec[3]),
		PackageQty:     qty,
		PackageUnit:    strings.TrimSpace(rec[5]),
		Price:          price,
		Currency:       strings.TrimSpace(rec[7]),
	}, nil
}

func parseDiscountRow(rec []string) (DiscountRow, error) {
	qty, err := parseDecimal(rec[3])
	if err != nil {
		return DiscountRow{}, fmt.Errorf("package_quantity: %w", err)
	}
	from, err := catalog.ParseDay(strings.TrimSpace(rec[6]))
	if err != nil {
		return DiscountRow{}, fmt.Errorf("from_date: %w", err)
	}
	to, err := catalog.ParseDay(strings.TrimSpace(rec[7]))
	if err != nil {
		return DiscountRow{}, fmt.Errorf("to_date: %w", err)
	}
	pct, err := parseDecimal(rec[8])
	if err != nil {
		return DiscountRow{}, fmt.Errorf("percentage_of_discount: %w", err)
	}
	return DiscountRow{
		StoreProductID: strings.TrimSpace(rec[0]),
		ProductName:    strings.TrimSpace(rec[1]),
		Brand:          strings.TrimSpace(rec[2]),
		PackageQty:     qty,
		PackageUnit:    strings.TrimSpace(rec[4]),
		Category:       strings.TrimSpace(rec[5]),
		FromDate:       from,
		ToDate:         to,
		Percentage:     int(pct.IntPart()),
	}, nil
}

// parseDecimal accepts both '.' and ',' as decimal separator.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	return decimal.NewFromString(s)
}
