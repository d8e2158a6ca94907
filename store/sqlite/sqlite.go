/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements catalog.TxCatalog, the pricing.Source query surface and
  alerts.Store using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

NATURAL KEYS:
  Uniqueness is enforced at the storage layer, which is what lets the
  find-or-create resolvers absorb concurrent-insert races:
  - stores/brands/categories: UNIQUE(name COLLATE NOCASE)
  - products:                 UNIQUE(name COLLATE NOCASE, brand_id)
  - price_entries:            UNIQUE(product_id, store_id, entry_date)
  - discounts:                UNIQUE(product_id, store_id, from_date,
                                     package_qty, package_unit)
  A violated constraint surfaces as catalog.ErrUniqueViolation so callers
  can re-read instead of failing.

TRANSACTIONS:
  WithTx opens one database transaction and hands the caller a Catalog
  whose every statement runs inside it. The ingestion orchestrator uses
  this for its one-transaction-per-file boundary.

NUMERIC STORAGE:
  Prices and package quantities are stored as canonical decimal strings
  and parsed back through shopspring/decimal. Dates are yyyy-MM-dd text,
  which sorts and compares correctly as strings.

INDEXES:
  Critical indexes for performance:
  - idx_price_entries_product_date: Latest-price resolution (hot path)
  - idx_discounts_window: Active-window scans
  - idx_discounts_product_store: Exact discount lookups

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Read-side queries (pricing, baskets, alerts) don't block behind an
    ingestion transaction
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/prices.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := pricing.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - catalog/store.go: Interface definitions
  - catalog/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/pricefeed/basket-engine/alerts"
	"github.com/pricefeed/basket-engine/catalog"
)

const tsFormat = time.RFC3339

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database (testing only).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_stores_name
		ON stores(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS brands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_brands_name
		ON brands(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name
		ON categories(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		brand_id INTEGER NOT NULL REFERENCES brands(id),
		category_id INTEGER NOT NULL REFERENCES categories(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_products_name_brand
		ON products(name COLLATE NOCASE, brand_id);

	CREATE TABLE IF NOT EXISTS price_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		store_id INTEGER NOT NULL REFERENCES stores(id),
		entry_date TEXT NOT NULL,
		store_product_id TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		currency TEXT NOT NULL,
		package_qty TEXT NOT NULL,
		package_unit TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(product_id, store_id, entry_date)
	);
	CREATE INDEX IF NOT EXISTS idx_price_entries_product_date
		ON price_entries(product_id, entry_date DESC);
	CREATE INDEX IF NOT EXISTS idx_price_entries_store
		ON price_entries(store_id);

	CREATE TABLE IF NOT EXISTS discounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		store_id INTEGER NOT NULL REFERENCES stores(id),
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		package_qty TEXT NOT NULL,
		package_unit TEXT NOT NULL,
		percentage INTEGER NOT NULL,
		recorded_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(product_id, store_id, from_date, package_qty, package_unit)
	);
	CREATE INDEX IF NOT EXISTS idx_discounts_window
		ON discounts(from_date, to_date);
	CREATE INDEX IF NOT EXISTS idx_discounts_product_store
		ON discounts(product_id, store_id);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		product_id INTEGER NOT NULL REFERENCES products(id),
		store_id INTEGER,
		target_price TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		triggered_price TEXT,
		triggered_store_id INTEGER,
		triggered_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_active
		ON alerts(active);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the statement helpers
// below can run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL CATALOG (catalog.TxCatalog interface)
// =============================================================================

// WithTx executes fn with a Catalog whose statements all run in one
// database transaction. A non-nil error from fn rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(catalog.Catalog) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txCatalog{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txCatalog routes every catalog operation through the open transaction.
type txCatalog struct {
	tx *sql.Tx
}

func (t *txCatalog) FindStoreByName(ctx context.Context, name string) (*catalog.Store, error) {
	return findStoreByName(ctx, t.tx, name)
}
func (t *txCatalog) InsertStore(ctx context.Context, st *catalog.Store) error {
	return insertStore(ctx, t.tx, st)
}
func (t *txCatalog) FindBrandByName(ctx context.Context, name string) (*catalog.Brand, error) {
	return findBrandByName(ctx, t.tx, name)
}
func (t *txCatalog) InsertBrand(ctx context.Context, b *catalog.Brand) error {
	return insertBrand(ctx, t.tx, b)
}
func (t *txCatalog) FindCategoryByName(ctx context.Context, name string) (*catalog.Category, error) {
	return findCategoryByName(ctx, t.tx, name)
}
func (t *txCatalog) InsertCategory(ctx context.Context, c *catalog.Category) error {
	return insertCategory(ctx, t.tx, c)
}
func (t *txCatalog) FindProductByName(ctx context.Context, name string, brandID catalog.BrandID) (*catalog.Product, error) {
	return findProductByName(ctx, t.tx, name, brandID)
}
func (t *txCatalog) FindProductByID(ctx context.Context, id catalog.ProductID) (*catalog.Product, error) {
	return findProductByID(ctx, t.tx, id)
}
func (t *txCatalog) InsertProduct(ctx context.Context, p *catalog.Product) error {
	return insertProduct(ctx, t.tx, p)
}
func (t *txCatalog) UpdateProductCategory(ctx context.Context, id catalog.ProductID, categoryID catalog.CategoryID) error {
	return updateProductCategory(ctx, t.tx, id, categoryID)
}
func (t *txCatalog) FindPriceEntry(ctx context.Context, productID catalog.ProductID, storeID catalog.StoreID, date catalog.Day) (*catalog.PriceEntry, error) {
	return findPriceEntry(ctx, t.tx, productID, storeID, date)
}
func (t *txCatalog) InsertPriceEntry(ctx context.Context, e *catalog.PriceEntry) error {
	return insertPriceEntry(ctx, t.tx, e)
}
func (t *txCatalog) UpdatePriceEntry(ctx context.Context, e *catalog.PriceEntry) error {
	return updatePriceEntry(ctx, t.tx, e)
}
func (t *txCatalog) FindDiscount(ctx context.Context, key catalog.DiscountKey) (*catalog.Discount, error) {
	return findDiscount(ctx, t.tx, key)
}
func (t *txCatalog) InsertDiscount(ctx context.Context, d *catalog.Discount) error {
	return insertDiscount(ctx, t.tx, d)
}
func (t *txCatalog) UpdateDiscount(ctx context.Context, d *catalog.Discount) error {
	return updateDiscount(ctx, t.tx, d)
}

// =============================================================================
// CATALOG (catalog.Catalog interface, outside a transaction)
// =============================================================================

func (s *Store) FindStoreByName(ctx context.Context, name string) (*catalog.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findStoreByName(ctx, s.db, name)
}

func (s *Store) InsertStore(ctx context.Context, st *catalog.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertStore(ctx, s.db, st)
}

func (s *Store) FindBrandByName(ctx context.Context, name string) (*catalog.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findBrandByName(ctx, s.db, name)
}

func (s *Store) InsertBrand(ctx context.Context, b *catalog.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertBrand(ctx, s.db, b)
}

func (s *Store) FindCategoryByName(ctx context.Context, name string) (*catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findCategoryByName(ctx, s.db, name)
}

func (s *Store) InsertCategory(ctx context.Context, c *catalog.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCategory(ctx, s.db, c)
}

func (s *Store) FindProductByName(ctx context.Context, name string, brandID catalog.BrandID) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findProductByName(ctx, s.db, name, brandID)
}

func (s *Store) FindProductByID(ctx context.Context, id catalog.ProductID) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findProductByID(ctx, s.db, id)
}

func (s *Store) InsertProduct(ctx context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertProduct(ctx, s.db, p)
}

func (s *Store) UpdateProductCategory(ctx context.Context, id catalog.ProductID, categoryID catalog.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateProductCategory(ctx, s.db, id, categoryID)
}

func (s *Store) FindPriceEntry(ctx context.Context, productID catalog.ProductID, storeID catalog.StoreID, date catalog.Day) (*catalog.PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findPriceEntry(ctx, s.db, productID, storeID, date)
}

func (s *Store) InsertPriceEntry(ctx context.Context, e *catalog.PriceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPriceEntry(ctx, s.db, e)
}

func (s *Store) UpdatePriceEntry(ctx context.Context, e *catalog.PriceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePriceEntry(ctx, s.db, e)
}

func (s *Store) FindDiscount(ctx context.Context, key catalog.DiscountKey) (*catalog.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findDiscount(ctx, s.db, key)
}

func (s *Store) InsertDiscount(ctx context.Context, d *catalog.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertDiscount(ctx, s.db, d)
}

func (s *Store) UpdateDiscount(ctx context.Context, d *catalog.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateDiscount(ctx, s.db, d)
}

// =============================================================================
// MASTER DATA HELPERS
// =============================================================================

func findStoreByName(ctx context.Context, db dbtx, name string) (*catalog.Store, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM stores WHERE name = ? COLLATE NOCASE",
		strings.TrimSpace(name))

	var st catalog.Store
	var createdAt, updatedAt string
	err := row.Scan(&st.ID, &st.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.CreatedAt, st.UpdatedAt = parseTS(createdAt), parseTS(updatedAt)
	return &st, nil
}

func insertStore(ctx context.Context, db dbtx, st *catalog.Store) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		"INSERT INTO stores (name, created_at, updated_at) VALUES (?, ?, ?)",
		st.Name, now.Format(tsFormat), now.Format(tsFormat))
	if err != nil {
		return mapUnique(err)
	}
	id, _ := res.LastInsertId()
	st.ID = catalog.StoreID(id)
	st.CreatedAt, st.UpdatedAt = now, now
	return nil
}

func findBrandByName(ctx context.Context, db dbtx, name string) (*catalog.Brand, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM brands WHERE name = ? COLLATE NOCASE",
		strings.TrimSpace(name))

	var b catalog.Brand
	var createdAt, updatedAt string
	err := row.Scan(&b.ID, &b.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.CreatedAt, b.UpdatedAt = parseTS(createdAt), parseTS(updatedAt)
	return &b, nil
}

func insertBrand(ctx context.Context, db dbtx, b *catalog.Brand) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		"INSERT INTO brands (name, created_at, updated_at) VALUES (?, ?, ?)",
		b.Name, now.Format(tsFormat), now.Format(tsFormat))
	if err != nil {
		return mapUnique(err)
	}
	id, _ := res.LastInsertId()
	b.ID = catalog.BrandID(id)
	b.CreatedAt, b.UpdatedAt = now, now
	return nil
}

func findCategoryByName(ctx context.Context, db dbtx, name string) (*catalog.Category, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM categories WHERE name = ? COLLATE NOCASE",
		strings.TrimSpace(name))

	var c catalog.Category
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, c.UpdatedAt = parseTS(createdAt), parseTS(updatedAt)
	return &c, nil
}

func insertCategory(ctx context.Context, db dbtx, c *catalog.Category) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		"INSERT INTO categories (name, created_at, updated_at) VALUES (?, ?, ?)",
		c.Name, now.Format(tsFormat), now.Format(tsFormat))
	if err != nil {
		return mapUnique(err)
	}
	id, _ := res.LastInsertId()
	c.ID = catalog.CategoryID(id)
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// =============================================================================
// PRODUCT HELPERS
// =============================================================================

const productColumns = "id, name, brand_id, category_id, created_at, updated_at"

func scanProduct(row *sql.Row) (*catalog.Product, error) {
	var p catalog.Product
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &p.BrandID, &p.CategoryID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, p.UpdatedAt = parseTS(createdAt), parseTS(updatedAt)
	return &p, nil
}

func findProductByName(ctx context.Context, db dbtx, name string, brandID catalog.BrandID) (*catalog.Product, error) {
	return scanProduct(db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE name = ? COLLATE NOCASE AND brand_id = ?",
		strings.TrimSpace(name), brandID))
}

func findProductByID(ctx context.Context, db dbtx, id catalog.ProductID) (*catalog.Product, error) {
	return scanProduct(db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id))
}

func insertProduct(ctx context.Context, db dbtx, p *catalog.Product) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		"INSERT INTO products (name, brand_id, category_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		p.Name, p.BrandID, p.CategoryID, now.Format(tsFormat), now.Format(tsFormat))
	if err != nil {
		return mapUnique(err)
	}
	id, _ := res.LastInsertId()
	p.ID = catalog.ProductID(id)
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func updateProductCategory(ctx context.Context, db dbtx, id catalog.ProductID, categoryID catalog.CategoryID) error {
	res, err := db.ExecContext(ctx,
		"UPDATE products SET category_id = ?, updated_at = ? WHERE id = ?",
		categoryID, time.Now().UTC().Format(tsFormat), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// =============================================================================
// PRICE ENTRY HELPERS
// =============================================================================

const priceColumns = "id, product_id, store_id, entry_date, store_product_id, price, currency, package_qty, package_unit, created_at, updated_at"

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPriceEntry(row rowScanner) (*catalog.PriceEntry, error) {
	var e catalog.PriceEntry
	var entryDate, price, pkgQty, createdAt, updatedAt string
	err := row.Scan(&e.ID, &e.ProductID, &e.StoreID, &entryDate, &e.StoreProductID,
		&price, &e.Currency, &pkgQty, &e.PackageUnit, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.EntryDate = parseStoredDay(entryDate)
	e.Price = parseStoredDecimal(price)
	e.PackageQty = parseStoredDecimal(pkgQty)
	e.CreatedAt, e.UpdatedAt = parseTS(createdAt), parseTS(updatedAt)
	return &e, nil
}

func findPriceEntry(ctx context.Context, db dbtx, productID catalog.ProductID, storeID catalog.StoreID, date catalog.Day) (*catalog.PriceEntry, error) {
	return scanPriceEntry(db.QueryRowContext(ctx,
		"SELECT "+priceColumns+" FROM price_entries WHERE product_id = ? AND store_id = ? AND entry_date = ?",
		productID, storeID, date.String()))
}

func insertPriceEntry(ctx context.Context, db dbtx, e *catalog.PriceEntry) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO price_entries
		(product_id, store_id, entry_date, store_product_id, price, currency, package_qty, package_unit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ProductID, e.StoreID, e.EntryDate.String(), e.StoreProductID,
		e.Price.String(), e.Currency, e.PackageQty.String(), e.PackageUnit,
		now.Format(tsFormat), now.Format(tsFormat))
	if err != nil {
		return mapUnique(err)
	}
	id, _ := res.LastInsertId()
	e.ID = catalog.PriceEntryID(id)
	e.CreatedAt, e.UpdatedAt = now, now
	return nil
}

func updatePriceEntry(ctx context.Context, db dbtx, e *catalog.PriceEntry) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		UPDATE price_entries
		SET store_product_id = ?, price = ?, currency = ?, package_qty = ?, package_unit = ?, updated_at = ?
		WHERE id = ?`,
		e.StoreProductID, e.Price.String(), e.Currency,
		e.PackageQty.String(), e.PackageUnit, now.Format(tsFormat), e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrNotFound
	}
	e.UpdatedAt = now
	return nil
}

// =============================================================================
// DISCOUNT HELPERS
// =============================================================================

const discountColumns = "id, product_id, store_id, from_date, to_date, package_qty, package_unit, percentage, recorded_at, created_at, updated_at"

func scanDiscount(row rowScanner) (*catalog.Discount, error) {
	var d catalog.Discount
	var fromDate, toDate, pkgQty, recordedAt, createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.ProductID, &d.StoreID, &fromDate, &toDate,
		&pkgQty, &d.PackageUnit, &d.Percentage, &recordedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.FromDate = parseStoredDay(fromDate)
	d.ToDate = parseStoredDay(toDate)
	d.PackageQty = parseStoredDecimal(pkgQty)
	d.RecordedAt = parseStoredDay(recordedAt)
	d.CreatedAt, d.UpdatedAt = parseTS(createdAt), parseTS(updatedAt)
	return &d, nil
}

func findDiscount(ctx context.Context, db dbtx, key catalog.DiscountKey) (*catalog.Discount, error) {
	return scanDiscount(db.QueryRowContext(ctx, `
		SELECT `+discountColumns+` FROM discounts
		WHERE product_id = ? AND store_id = ? AND from_date = ? AND package_qty = ? AND package_unit = ?`,
		key.ProductID, key.StoreID, key.FromDate.String(), key.PackageQty, key.PackageUnit))
}

func insertDiscount(ctx context.Context, db dbtx, d *catalog.Discount) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO discounts
		(product_id, store_id, from_date, to_date, package_qty, package_unit, percentage, recorded_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ProductID, d.StoreID, d.FromDate.String(), d.ToDate.String(),
		d.PackageQty.String(), d.PackageUnit, d.Percentage, d.RecordedAt.String(),
		now.Format(tsFormat), now.Format(tsFormat))
	if err != nil {
		return mapUnique(err)
	}
	id, _ := res.LastInsertId()
	d.ID = catalog.DiscountID(id)
	d.CreatedAt, d.UpdatedAt = now, now
	return nil
}

func updateDiscount(ctx context.Context, db dbtx, d *catalog.Discount) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		UPDATE discounts
		SET percentage = ?, to_date = ?, recorded_at = ?, updated_at = ?
		WHERE id = ?`,
		d.Percentage, d.ToDate.String(), d.RecordedAt.String(), now.Format(tsFormat), d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrNotFound
	}
	d.UpdatedAt = now
	return nil
}

// =============================================================================
// PRICING SOURCE (pricing.Source interface)
// =============================================================================

// FindStoreByID returns a store by id, or nil if it does not exist.
func (s *Store) FindStoreByID(ctx context.Context, id catalog.StoreID) (*catalog.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM stores WHERE id = ?", id)

	var st catalog.Store
	var createdAt, updatedAt string
	err := row.Scan(&st.ID, &st.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.CreatedAt, st.UpdatedAt = parseTS(createdAt), parseTS(updatedAt)
	return &st, nil
}

// LatestEntry returns the most recent entry with entry_date on or before
// the query's as-of day, under its optional filters, or nil.
func (s *Store) LatestEntry(ctx context.Context, q catalog.PriceQuery) (*catalog.PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + priceColumns + " FROM price_entries WHERE product_id = ? AND entry_date <= ?"
	args := []any{q.ProductID, q.AsOf.String()}

	if q.StoreID != nil {
		query += " AND store_id = ?"
		args = append(args, *q.StoreID)
	}
	if q.PackageQty != nil {
		query += " AND package_qty = ?"
		args = append(args, q.PackageQty.String())
	}
	if q.PackageUnit != nil {
		query += " AND package_unit = ?"
		args = append(args, *q.PackageUnit)
	}
	query += " ORDER BY entry_date DESC LIMIT 1"

	return scanPriceEntry(s.db.QueryRowContext(ctx, query, args...))
}

// LatestEntriesPerStore returns each store's most recent observation of
// the product on or before asOf, ordered by ascending store id.
func (s *Store) LatestEntriesPerStore(ctx context.Context, productID catalog.ProductID, asOf catalog.Day) ([]catalog.PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+qualify(priceColumns, "e")+`
		FROM price_entries e
		JOIN (
			SELECT store_id, MAX(entry_date) AS max_date
			FROM price_entries
			WHERE product_id = ? AND entry_date <= ?
			GROUP BY store_id
		) latest ON e.store_id = latest.store_id AND e.entry_date = latest.max_date
		WHERE e.product_id = ?
		ORDER BY e.store_id ASC`,
		productID, asOf.String(), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []catalog.PriceEntry
	for rows.Next() {
		e, err := scanPriceEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ActiveDiscounts returns every discount whose window covers asOf,
// ordered by id.
func (s *Store) ActiveDiscounts(ctx context.Context, asOf catalog.Day) ([]catalog.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+discountColumns+" FROM discounts WHERE from_date <= ? AND to_date >= ? ORDER BY id ASC",
		asOf.String(), asOf.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []catalog.Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, *d)
	}
	return discounts, rows.Err()
}

// ActiveDiscountFor returns the discount active on asOf for the exact
// (product, store, package) combination, or nil.
func (s *Store) ActiveDiscountFor(ctx context.Context, productID catalog.ProductID, storeID catalog.StoreID, pkgQty decimal.Decimal, pkgUnit string, asOf catalog.Day) (*catalog.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanDiscount(s.db.QueryRowContext(ctx, `
		SELECT `+discountColumns+` FROM discounts
		WHERE product_id = ? AND store_id = ? AND package_qty = ? AND package_unit = ?
		  AND from_date <= ? AND to_date >= ?
		LIMIT 1`,
		productID, storeID, pkgQty.String(), pkgUnit, asOf.String(), asOf.String()))
}

// =============================================================================
// ALERT STORE (alerts.Store interface)
// =============================================================================

const alertColumns = "id, product_id, store_id, target_price, active, triggered_price, triggered_store_id, triggered_at, created_at, updated_at"

// SaveAlert inserts a new alert or updates its trigger state.
func (s *Store) SaveAlert(ctx context.Context, a *alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var storeID, triggeredStoreID, triggeredPrice, triggeredAt any
	if a.StoreID != nil {
		storeID = int64(*a.StoreID)
	}
	if a.TriggeredStoreID != nil {
		triggeredStoreID = int64(*a.TriggeredStoreID)
	}
	if a.TriggeredPrice != nil {
		triggeredPrice = a.TriggeredPrice.String()
	}
	if a.TriggeredAt != nil {
		triggeredAt = a.TriggeredAt.Format(tsFormat)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts
		(id, product_id, store_id, target_price, active, triggered_price, triggered_store_id, triggered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active = excluded.active,
			triggered_price = excluded.triggered_price,
			triggered_store_id = excluded.triggered_store_id,
			triggered_at = excluded.triggered_at,
			updated_at = excluded.updated_at`,
		a.ID.String(), a.ProductID, storeID, a.TargetPrice.String(), a.Active,
		triggeredPrice, triggeredStoreID, triggeredAt,
		a.CreatedAt.Format(tsFormat), now.Format(tsFormat))
	if err != nil {
		return err
	}
	a.UpdatedAt = now
	return nil
}

// GetAlert returns an alert by id, or nil if it does not exist.
func (s *Store) GetAlert(ctx context.Context, id uuid.UUID) (*alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found, err := s.queryAlerts(ctx, "SELECT "+alertColumns+" FROM alerts WHERE id = ?", id.String())
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

// ListAlerts returns all alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context) ([]alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryAlerts(ctx, "SELECT "+alertColumns+" FROM alerts ORDER BY created_at DESC")
}

// ListActiveAlerts returns only alerts that have not triggered yet,
// oldest first.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryAlerts(ctx, "SELECT "+alertColumns+" FROM alerts WHERE active ORDER BY created_at ASC")
}

// DeleteAlert removes an alert.
func (s *Store) DeleteAlert(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id.String())
	return err
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...any) ([]alerts.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alerts.Alert
	for rows.Next() {
		var a alerts.Alert
		var id, targetPrice, createdAt, updatedAt string
		var storeID, triggeredStoreID sql.NullInt64
		var triggeredPrice, triggeredAt sql.NullString

		if err := rows.Scan(&id, &a.ProductID, &storeID, &targetPrice, &a.Active,
			&triggeredPrice, &triggeredStoreID, &triggeredAt, &createdAt, &updatedAt); err != nil {
			return nil, err
		}

		a.ID, _ = uuid.Parse(id)
		a.TargetPrice = parseStoredDecimal(targetPrice)
		if storeID.Valid {
			sid := catalog.StoreID(storeID.Int64)
			a.StoreID = &sid
		}
		if triggeredPrice.Valid {
			p := parseStoredDecimal(triggeredPrice.String)
			a.TriggeredPrice = &p
		}
		if triggeredStoreID.Valid {
			sid := catalog.StoreID(triggeredStoreID.Int64)
			a.TriggeredStoreID = &sid
		}
		if triggeredAt.Valid {
			t := parseTS(triggeredAt.String)
			a.TriggeredAt = &t
		}
		a.CreatedAt, a.UpdatedAt = parseTS(createdAt), parseTS(updatedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func mapUnique(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return catalog.ErrUniqueViolation
	}
	return err
}

// parseTS and friends trust stored values: they were written by this
// package in canonical form.
func parseTS(s string) time.Time {
	t, _ := time.Parse(tsFormat, s)
	return t
}

func parseStoredDay(s string) catalog.Day {
	d, _ := catalog.ParseDay(s)
	return d
}

func parseStoredDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// qualify prefixes every column in a comma-separated list with a table
// alias so the list can be reused in joined queries.
func qualify(columns, alias string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
