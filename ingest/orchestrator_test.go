package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricefeed/basket-engine/catalog"
	memstore "github.com/pricefeed/basket-engine/catalog/store"
	"github.com/pricefeed/basket-engine/ingest"
)

type testPipeline struct {
	mem      *memstore.Memory
	orch     *ingest.Orchestrator
	inputDir string
	doneDir  string
}

func newPipeline(t *testing.T) *testPipeline {
	t.Helper()
	inputDir := t.TempDir()
	doneDir := t.TempDir()
	mem := memstore.NewMemory()
	return &testPipeline{
		mem:      mem,
		orch:     ingest.NewOrchestrator(mem, inputDir, &ingest.DirArchiver{Dest: doneDir}),
		inputDir: inputDir,
		doneDir:  doneDir,
	}
}

func (p *testPipeline) drop(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(p.inputDir, name), []byte(content), 0o644))
}

func (p *testPipeline) archived(name string) bool {
	_, err := os.Stat(filepath.Join(p.doneDir, name))
	return err == nil
}

func (p *testPipeline) pending(name string) bool {
	_, err := os.Stat(filepath.Join(p.inputDir, name))
	return err == nil
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestRun_CommitsAndArchives(t *testing.T) {
	p := newPipeline(t)
	p.drop(t, "mercadona_2026-03-01.csv", priceHeader+
		"1234;whole milk;dairy;hacendado;1;l;1.45;EUR\n"+
		"5678;olive oil;pantry;carbonell;1;l;8.99;EUR\n")

	report, err := p.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Committed)
	assert.Zero(t, report.Failed)
	require.Len(t, report.Files, 1)
	assert.Equal(t, 2, report.Files[0].RowsUpserted)

	assert.True(t, p.archived("mercadona_2026-03-01.csv"), "committed file should be archived")
	assert.False(t, p.pending("mercadona_2026-03-01.csv"))

	// The catalog was actually populated.
	ctx := context.Background()
	store, err := p.mem.FindStoreByName(ctx, "mercadona")
	require.NoError(t, err)
	require.NotNil(t, store)

	r := catalog.NewResolver(p.mem)
	product, err := r.LookupProduct(ctx, "whole milk", "hacendado")
	require.NoError(t, err)
	require.NotNil(t, product)

	entry, err := p.mem.LatestEntry(ctx, catalog.PriceQuery{
		ProductID: product.ID,
		AsOf:      catalog.NewDay(2026, time.March, 1),
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Price.Equal(decimal.RequireFromString("1.45")))
}

func TestRun_PricesThenDiscountsSameRun(t *testing.T) {
	// Files are processed in name order, so the price file lands before
	// the discount file that references its products.
	p := newPipeline(t)
	p.drop(t, "mercadona_2026-03-01.csv", priceHeader+
		"1234;whole milk;dairy;hacendado;1;l;1.45;EUR\n")
	p.drop(t, "mercadona_discounts_2026-03-01.csv", discountHeader+
		"1234;whole milk;hacendado;1;l;dairy;2026-03-01;2026-03-14;20\n")

	report, err := p.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Committed)

	ctx := context.Background()
	discounts, err := p.mem.ActiveDiscounts(ctx, catalog.NewDay(2026, time.March, 7))
	require.NoError(t, err)
	require.Len(t, discounts, 1)
	assert.Equal(t, 20, discounts[0].Percentage)
	assert.True(t, discounts[0].RecordedAt.Equal(catalog.NewDay(2026, time.March, 1)),
		"recorded date must come from the file name")
}

func TestRun_ReplayIsIdempotent(t *testing.T) {
	content := priceHeader + "1234;whole milk;dairy;hacendado;1;l;1.45;EUR\n"

	p := newPipeline(t)
	p.drop(t, "mercadona_2026-03-01.csv", content)
	_, err := p.orch.Run(context.Background())
	require.NoError(t, err)

	// The same extract arrives again.
	p.drop(t, "mercadona_2026-03-01.csv", content)
	report, err := p.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Committed)

	ctx := context.Background()
	r := catalog.NewResolver(p.mem)
	product, err := r.LookupProduct(ctx, "whole milk", "hacendado")
	require.NoError(t, err)

	entries, err := p.mem.LatestEntriesPerStore(ctx, product.ID, catalog.NewDay(2026, time.March, 1))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "replay must not duplicate the observation")
}

// =============================================================================
// SKIP AND FAILURE PATHS
// =============================================================================

func TestRun_UnknownFileNameSkipped(t *testing.T) {
	p := newPipeline(t)
	p.drop(t, "notes.csv", "whatever\n")

	report, err := p.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Committed)
	assert.True(t, p.pending("notes.csv"), "unrecognized files stay put")
}

func TestRun_UnknownProductDiscountRowSkipped(t *testing.T) {
	p := newPipeline(t)
	p.drop(t, "mercadona_discounts_2026-03-01.csv", discountHeader+
		"1234;phantom product;nobrand;1;l;dairy;2026-03-01;2026-03-14;20\n")

	report, err := p.orch.Run(context.Background())
	require.NoError(t, err)

	// The file still commits; only the unresolvable row is dropped.
	assert.Equal(t, 1, report.Committed)
	require.Len(t, report.Files, 1)
	assert.Zero(t, report.Files[0].RowsUpserted)
	assert.Equal(t, 1, report.Files[0].RowsSkipped)
	assert.True(t, p.archived("mercadona_discounts_2026-03-01.csv"))
}

func TestRun_InvalidRowSkippedRestCommitted(t *testing.T) {
	p := newPipeline(t)
	p.drop(t, "mercadona_2026-03-01.csv", priceHeader+
		"1234;whole milk;dairy;hacendado;1;l;0;EUR\n"+ // zero price violates the invariant
		"5678;olive oil;pantry;carbonell;1;l;8.99;EUR\n")

	report, err := p.orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, 1, report.Files[0].RowsUpserted)
	assert.Equal(t, 1, report.Files[0].RowsSkipped)
	assert.Equal(t, 1, report.Committed)
}

func TestRun_BadHeaderFailsFileAndLeavesItInPlace(t *testing.T) {
	p := newPipeline(t)
	p.drop(t, "mercadona_2026-03-01.csv", "sku;name\n1;milk\n")
	p.drop(t, "lidl_2026-03-01.csv", priceHeader+
		"1;rye bread;bakery;lidl;1;ud;1.10;EUR\n")

	report, err := p.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Committed, "one bad file must not block its siblings")
	assert.True(t, p.pending("mercadona_2026-03-01.csv"), "failed file stays for retry")
	assert.True(t, p.archived("lidl_2026-03-01.csv"))
}

// =============================================================================
// TRANSACTION BOUNDARY
// =============================================================================

// faultyCatalog escalates a storage failure partway through a file to
// prove the whole file rolls back.
type faultyCatalog struct {
	*memstore.Memory
	failAfter int
}

func (f *faultyCatalog) WithTx(ctx context.Context, fn func(catalog.Catalog) error) error {
	return f.Memory.WithTx(ctx, func(cat catalog.Catalog) error {
		return fn(&faultyTx{Catalog: cat, failAfter: &f.failAfter})
	})
}

type faultyTx struct {
	catalog.Catalog
	failAfter *int
}

func (f *faultyTx) InsertPriceEntry(ctx context.Context, e *catalog.PriceEntry) error {
	if *f.failAfter <= 0 {
		return errors.New("disk full")
	}
	*f.failAfter--
	return f.Catalog.InsertPriceEntry(ctx, e)
}

func TestRun_StorageFailureRollsBackWholeFile(t *testing.T) {
	inputDir := t.TempDir()
	mem := memstore.NewMemory()
	cat := &faultyCatalog{Memory: mem, failAfter: 1}
	orch := ingest.NewOrchestrator(cat, inputDir, &ingest.DirArchiver{Dest: t.TempDir()})

	content := priceHeader +
		"1234;whole milk;dairy;hacendado;1;l;1.45;EUR\n" +
		"5678;olive oil;pantry;carbonell;1;l;8.99;EUR\n"
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "mercadona_2026-03-01.csv"), []byte(content), 0o644))

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Files, 1)
	require.Error(t, report.Files[0].Err)
	assert.Zero(t, report.Files[0].RowsUpserted, "rolled-back work must not be reported as upserted")

	// Nothing from the file is visible, not even the row that succeeded
	// before the failure.
	found, err := mem.FindStoreByName(context.Background(), "mercadona")
	require.NoError(t, err)
	assert.Nil(t, found)
}
