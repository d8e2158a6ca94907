/*
classify.go - Source filename classification

PURPOSE:
  Retail chains drop CSV extracts into the input directory with the store
  name and extract date embedded in the filename:

    storename_yyyy-MM-dd.csv            product price extract
    storename_discounts_yyyy-MM-dd.csv  discount extract

  The extract date doubles as the price entry date for price files and as
  the recorded-at date for discount files. Anything else is UNKNOWN and is
  skipped (and logged) by the orchestrator.
*/
package ingest

import (
	"path/filepath"
	"regexp"

	"github.com/pricefeed/basket-engine/catalog"
)

// FileType classifies a source file.
type FileType int

const (
	FileUnknown FileType = iota
	FilePrices
	FileDiscounts
)

func (t FileType) String() string {
	switch t {
	case FilePrices:
		return "prices"
	case FileDiscounts:
		return "discounts"
	default:
		return "unknown"
	}
}

// FileInfo is a classified source file.
type FileInfo struct {
	Path      string
	Type      FileType
	StoreName string
	Date      catalog.Day
}

var (
	discountFileRe = regexp.MustCompile(`^(.+)_discounts_(\d{4}-\d{2}-\d{2})\.csv$`)
	priceFileRe    = regexp.MustCompile(`^(.+)_(\d{4}-\d{2}-\d{2})\.csv$`)
)

// Classify maps a file path onto its type, store name and extract date.
// The discount pattern is tested first: the price pattern would otherwise
// swallow "_discounts" into the store name.
func Classify(path string) FileInfo {
	name := filepath.Base(path)

	if m := discountFileRe.FindStringSubmatch(name); m != nil {
		if date, err := catalog.ParseDay(m[2]); err == nil {
			return FileInfo{Path: path, Type: FileDiscounts, StoreName: m[1], Date: date}
		}
	}
	if m := priceFileRe.FindStringSubmatch(name); m != nil {
		if date, err := catalog.ParseDay(m[2]); err == nil {
			return FileInfo{Path: path, Type: FilePrices, StoreName: m[1], Date: date}
		}
	}
	return FileInfo{Path: path, Type: FileUnknown}
}
