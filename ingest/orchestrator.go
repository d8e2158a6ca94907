/*
orchestrator.go - File-by-file ingestion with one transaction per file

PURPOSE:
  Drives the whole ingestion pipeline:

    discover -> classify -> parse -> (row loop in one tx) -> commit -> archive

  Each discovered file is processed inside exactly one catalog transaction.
  A recoverable row problem (unparseable data, unresolvable product on a
  discount row) is logged and skipped; anything else aborts and rolls back
  the entire file, which is then left in the input directory for the next
  scheduled run. Because the upserts are idempotent, re-running an unmoved
  file is always safe: this is the pipeline's at-least-once guarantee.

ROW-SKIP VS FILE-ABORT:
  The decision is typed, not a blanket catch-all. A RowError (produced
  here) or a catalog client error (blank name, invariant violation) skips
  the row. Storage failures and broken invariants escalate.

SEE ALSO:
  - classify.go, csv.go, archive.go: The consumed boundaries
  - catalog/upsert.go: The idempotent writes that make replay safe
*/
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"github.com/pricefeed/basket-engine/catalog"
	"github.com/pricefeed/basket-engine/metrics"
)

// =============================================================================
// ROW-LEVEL ERRORS
// =============================================================================

// RowError marks a recoverable data problem on a single row. The row is
// skipped; the file's transaction continues.
type RowError struct {
	Reason string
	Err    error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *RowError) Unwrap() error { return e.Err }

// skippable reports whether a row failure should be absorbed rather than
// abort the file.
func skippable(err error) bool {
	var rowErr *RowError
	return errors.As(err, &rowErr) || catalog.IsClientError(err)
}

// =============================================================================
// RUN REPORT
// =============================================================================

// FileResult is the outcome for one discovered file.
type FileResult struct {
	File         string
	Type         FileType
	RowsUpserted int
	RowsSkipped  int
	Err          error
}

// RunReport summarizes one ingestion run.
type RunReport struct {
	Started   time.Time
	Duration  time.Duration
	Committed int
	Failed    int
	Skipped   int // UNKNOWN files
	Files     []FileResult
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator discovers and ingests source files sequentially.
type Orchestrator struct {
	Catalog  catalog.TxCatalog
	Reader   Reader
	Archiver Archiver
	InputDir string
	Metrics  *metrics.Collector
}

func NewOrchestrator(cat catalog.TxCatalog, inputDir string, archiver Archiver) *Orchestrator {
	return &Orchestrator{
		Catalog:  cat,
		Reader:   CSVReader{},
		Archiver: archiver,
		InputDir: inputDir,
	}
}

// Run processes every *.csv in the input directory, one transaction per
// file, files in name order. A failed file never blocks its siblings.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{Started: time.Now()}
	defer func() {
		report.Duration = time.Since(report.Started)
		o.Metrics.RunFinished(report.Duration)
	}()

	paths, err := filepath.Glob(filepath.Join(o.InputDir, "*.csv"))
	if err != nil {
		return report, fmt.Errorf("scan %s: %w", o.InputDir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		info := Classify(path)
		if info.Type == FileUnknown {
			log.Printf("[Ingest] %s: unrecognized filename, skipped", path)
			o.Metrics.FileProcessed(info.Type.String(), "skipped")
			report.Skipped++
			continue
		}

		result := o.processFile(ctx, info)
		report.Files = append(report.Files, result)
		o.Metrics.RowsUpserted(info.Type.String(), result.RowsUpserted)
		o.Metrics.RowsSkipped(info.Type.String(), result.RowsSkipped)

		if result.Err != nil {
			log.Printf("[Ingest] %s: failed, left in place for retry: %v", path, result.Err)
			o.Metrics.FileProcessed(info.Type.String(), "failed")
			report.Failed++
			continue
		}
		o.Metrics.FileProcessed(info.Type.String(), "committed")
		report.Committed++

		if err := o.Archiver.Archive(path); err != nil {
			// The file is committed; a re-run will simply replay it as a
			// no-op, so an archive failure is logged, not fatal.
			log.Printf("[Ingest] %s: committed but not archived: %v", path, err)
		}
	}

	log.Printf("[Ingest] run finished: %d committed, %d failed, %d skipped",
		report.Committed, report.Failed, report.Skipped)
	return report, nil
}

// processFile parses one file and applies its rows inside a single
// transaction.
func (o *Orchestrator) processFile(ctx context.Context, info FileInfo) FileResult {
	result := FileResult{File: info.Path, Type: info.Type}

	switch info.Type {
	case FilePrices:
		rows, malformed, err := o.Reader.ReadPriceRows(info.Path)
		if err != nil {
			result.Err = err
			return result
		}
		result.RowsSkipped = malformed
		result.Err = o.Catalog.WithTx(ctx, func(cat catalog.Catalog) error {
			upserted, skipped, err := o.ingestPriceRows(ctx, cat, info, rows)
			result.RowsUpserted = upserted
			result.RowsSkipped += skipped
			return err
		})

	case FileDiscounts:
		rows, malformed, err := o.Reader.ReadDiscountRows(info.Path)
		if err != nil {
			result.Err = err
			return result
		}
		result.RowsSkipped = malformed
		result.Err = o.Catalog.WithTx(ctx, func(cat catalog.Catalog) error {
			upserted, skipped, err := o.ingestDiscountRows(ctx, cat, info, rows)
			result.RowsUpserted = upserted
			result.RowsSkipped += skipped
			return err
		})
	}

	if result.Err != nil {
		// Rolled back: the counts describe work that was discarded.
		result.RowsUpserted = 0
	}
	return result
}

func (o *Orchestrator) ingestPriceRows(ctx context.Context, cat catalog.Catalog, info FileInfo, rows []PriceRow) (upserted, skipped int, err error) {
	resolver := catalog.NewResolver(cat)

	store, err := resolver.ResolveStore(ctx, info.StoreName)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve store %q: %w", info.StoreName, err)
	}

	for i, row := range rows {
		if err := o.ingestPriceRow(ctx, resolver, cat, store, info.Date, row); err != nil {
			if skippable(err) {
				log.Printf("[Ingest] %s row %d (%s): %v, row skipped", info.Path, i+1, row.ProductName, err)
				skipped++
				continue
			}
			return 0, 0, err
		}
		upserted++
	}
	return upserted, skipped, nil
}

func (o *Orchestrator) ingestPriceRow(ctx context.Context, resolver *catalog.Resolver, cat catalog.Catalog, store *catalog.Store, date catalog.Day, row PriceRow) error {
	brand, err := resolver.ResolveBrand(ctx, row.Brand)
	if err != nil {
		return err
	}
	category, err := resolver.ResolveCategory(ctx, row.Category)
	if err != nil {
		return err
	}
	product, err := resolver.ResolveProduct(ctx, row.ProductName, brand, category)
	if err != nil {
		return err
	}

	_, err = catalog.UpsertPriceEntry(ctx, cat, catalog.PriceEntry{
		ProductID:      product.ID,
		StoreID:        store.ID,
		EntryDate:      date,
		StoreProductID: row.StoreProductID,
		Price:          row.Price,
		Currency:       row.Currency,
		PackageQty:     row.PackageQty,
		PackageUnit:    row.PackageUnit,
	})
	return err
}

func (o *Orchestrator) ingestDiscountRows(ctx context.Context, cat catalog.Catalog, info FileInfo, rows []DiscountRow) (upserted, skipped int, err error) {
	resolver := catalog.NewResolver(cat)

	store, err := resolver.ResolveStore(ctx, info.StoreName)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve store %q: %w", info.StoreName, err)
	}

	for i, row := range rows {
		if err := o.ingestDiscountRow(ctx, resolver, cat, store, info.Date, row); err != nil {
			if skippable(err) {
				log.Printf("[Ingest] %s row %d (%s): %v, row skipped", info.Path, i+1, row.ProductName, err)
				skipped++
				continue
			}
			return 0, 0, err
		}
		upserted++
	}
	return upserted, skipped, nil
}

func (o *Orchestrator) ingestDiscountRow(ctx context.Context, resolver *catalog.Resolver, cat catalog.Catalog, store *catalog.Store, recordedAt catalog.Day, row DiscountRow) error {
	// A discount row must never create a product: resolve by (name, brand)
	// only, and skip the row when unresolved.
	product, err := resolver.LookupProduct(ctx, row.ProductName, row.Brand)
	if err != nil {
		return err
	}
	if product == nil {
		return &RowError{Reason: fmt.Sprintf("unknown product %q (brand %q)", row.ProductName, row.Brand)}
	}

	_, err = catalog.UpsertDiscount(ctx, cat, catalog.Discount{
		ProductID:   product.ID,
		StoreID:     store.ID,
		FromDate:    row.FromDate,
		ToDate:      row.ToDate,
		PackageQty:  row.PackageQty,
		PackageUnit: row.PackageUnit,
		Percentage:  row.Percentage,
		RecordedAt:  recordedAt,
	})
	return err
}
