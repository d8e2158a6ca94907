/*
Package store provides an in-memory catalog implementation for tests/dev.

Transactions are copy-on-write: WithTx runs fn against a deep copy of the
tables and swaps it in only when fn succeeds, so rollback semantics are
testable without a database. Uniqueness is checked on insert the same way
the SQLite schema enforces it, including case-insensitive name matching.
*/
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricefeed/basket-engine/catalog"
)

// Memory implements catalog.TxCatalog and the pricing source queries.
type Memory struct {
	mu sync.RWMutex
	t  *tables
}

func NewMemory() *Memory {
	return &Memory{t: &tables{}}
}

// tables holds every row. Slices, not maps: the data sets in tests are
// small and scans keep cloning trivial.
type tables struct {
	stores     []catalog.Store
	brands     []catalog.Brand
	categories []catalog.Category
	products   []catalog.Product
	prices     []catalog.PriceEntry
	discounts  []catalog.Discount
	nextID     int64
}

func (t *tables) clone() *tables {
	c := &tables{nextID: t.nextID}
	c.stores = append([]catalog.Store(nil), t.stores...)
	c.brands = append([]catalog.Brand(nil), t.brands...)
	c.categories = append([]catalog.Category(nil), t.categories...)
	c.products = append([]catalog.Product(nil), t.products...)
	c.prices = append([]catalog.PriceEntry(nil), t.prices...)
	c.discounts = append([]catalog.Discount(nil), t.discounts...)
	return c
}

func (t *tables) id() int64 {
	t.nextID++
	return t.nextID
}

func nameEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// =============================================================================
// MASTER DATA
// =============================================================================

func (t *tables) findStoreByName(name string) *catalog.Store {
	for i := range t.stores {
		if nameEqual(t.stores[i].Name, name) {
			s := t.stores[i]
			return &s
		}
	}
	return nil
}

func (t *tables) insertStore(s *catalog.Store) error {
	if t.findStoreByName(s.Name) != nil {
		return catalog.ErrUniqueViolation
	}
	now := time.Now().UTC()
	s.ID = catalog.StoreID(t.id())
	s.CreatedAt, s.UpdatedAt = now, now
	t.stores = append(t.stores, *s)
	return nil
}

func (t *tables) findBrandByName(name string) *catalog.Brand {
	for i := range t.brands {
		if nameEqual(t.brands[i].Name, name) {
			b := t.brands[i]
			return &b
		}
	}
	return nil
}

func (t *tables) insertBrand(b *catalog.Brand) error {
	if t.findBrandByName(b.Name) != nil {
		return catalog.ErrUniqueViolation
	}
	now := time.Now().UTC()
	b.ID = catalog.BrandID(t.id())
	b.CreatedAt, b.UpdatedAt = now, now
	t.brands = append(t.brands, *b)
	return nil
}

func (t *tables) findCategoryByName(name string) *catalog.Category {
	for i := range t.categories {
		if nameEqual(t.categories[i].Name, name) {
			c := t.categories[i]
			return &c
		}
	}
	return nil
}

func (t *tables) insertCategory(c *catalog.Category) error {
	if t.findCategoryByName(c.Name) != nil {
		return catalog.ErrUniqueViolation
	}
	now := time.Now().UTC()
	c.ID = catalog.CategoryID(t.id())
	c.CreatedAt, c.UpdatedAt = now, now
	t.categories = append(t.categories, *c)
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (t *tables) findProductByName(name string, brandID catalog.BrandID) *catalog.Product {
	for i := range t.products {
		if t.products[i].BrandID == brandID && nameEqual(t.products[i].Name, name) {
			p := t.products[i]
			return &p
		}
	}
	return nil
}

func (t *tables) findProductByID(id catalog.ProductID) *catalog.Product {
	for i := range t.products {
		if t.products[i].ID == id {
			p := t.products[i]
			return &p
		}
	}
	return nil
}

func (t *tables) insertProduct(p *catalog.Product) error {
	if t.findProductByName(p.Name, p.BrandID) != nil {
		return catalog.ErrUniqueViolation
	}
	now := time.Now().UTC()
	p.ID = catalog.ProductID(t.id())
	p.CreatedAt, p.UpdatedAt = now, now
	t.products = append(t.products, *p)
	return nil
}

func (t *tables) updateProductCategory(id catalog.ProductID, categoryID catalog.CategoryID) error {
	for i := range t.products {
		if t.products[i].ID == id {
			t.products[i].CategoryID = categoryID
			t.products[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return catalog.ErrNotFound
}

// =============================================================================
// PRICE ENTRIES
// =============================================================================

func (t *tables) findPriceEntry(productID catalog.ProductID, storeID catalog.StoreID, date catalog.Day) *catalog.PriceEntry {
	for i := range t.prices {
		e := &t.prices[i]
		if e.ProductID == productID && e.StoreID == storeID && e.EntryDate.Equal(date) {
			cp := *e
			return &cp
		}
	}
	return nil
}

func (t *tables) insertPriceEntry(e *catalog.PriceEntry) error {
	if t.findPriceEntry(e.ProductID, e.StoreID, e.EntryDate) != nil {
		return catalog.ErrUniqueViolation
	}
	now := time.Now().UTC()
	e.ID = catalog.PriceEntryID(t.id())
	e.CreatedAt, e.UpdatedAt = now, now
	t.prices = append(t.prices, *e)
	return nil
}

func (t *tables) updatePriceEntry(e *catalog.PriceEntry) error {
	for i := range t.prices {
		if t.prices[i].ID == e.ID {
			e.UpdatedAt = time.Now().UTC()
			e.CreatedAt = t.prices[i].CreatedAt
			t.prices[i] = *e
			return nil
		}
	}
	return catalog.ErrNotFound
}

// =============================================================================
// DISCOUNTS
// =============================================================================

func (t *tables) findDiscount(key catalog.DiscountKey) *catalog.Discount {
	for i := range t.discounts {
		if t.discounts[i].Key() == key {
			d := t.discounts[i]
			return &d
		}
	}
	return nil
}

func (t *tables) insertDiscount(d *catalog.Discount) error {
	if t.findDiscount(d.Key()) != nil {
		return catalog.ErrUniqueViolation
	}
	now := time.Now().UTC()
	d.ID = catalog.DiscountID(t.id())
	d.CreatedAt, d.UpdatedAt = now, now
	t.discounts = append(t.discounts, *d)
	return nil
}

func (t *tables) updateDiscount(d *catalog.Discount) error {
	for i := range t.discounts {
		if t.discounts[i].ID == d.ID {
			d.UpdatedAt = time.Now().UTC()
			d.CreatedAt = t.discounts[i].CreatedAt
			t.discounts[i] = *d
			return nil
		}
	}
	return catalog.ErrNotFound
}

// =============================================================================
// MEMORY - catalog.TxCatalog
// =============================================================================

func (m *Memory) FindStoreByName(_ context.Context, name string) (*catalog.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.findStoreByName(name), nil
}

func (m *Memory) InsertStore(_ context.Context, s *catalog.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.insertStore(s)
}

func (m *Memory) FindBrandByName(_ context.Context, name string) (*catalog.Brand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.findBrandByName(name), nil
}

func (m *Memory) InsertBrand(_ context.Context, b *catalog.Brand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.insertBrand(b)
}

func (m *Memory) FindCategoryByName(_ context.Context, name string) (*catalog.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.findCategoryByName(name), nil
}

func (m *Memory) InsertCategory(_ context.Context, c *catalog.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.insertCategory(c)
}

func (m *Memory) FindProductByName(_ context.Context, name string, brandID catalog.BrandID) (*catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.findProductByName(name, brandID), nil
}

func (m *Memory) FindProductByID(_ context.Context, id catalog.ProductID) (*catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.findProductByID(id), nil
}

func (m *Memory) InsertProduct(_ context.Context, p *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.insertProduct(p)
}

func (m *Memory) UpdateProductCategory(_ context.Context, id catalog.ProductID, categoryID catalog.CategoryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.updateProductCategory(id, categoryID)
}

func (m *Memory) FindPriceEntry(_ context.Context, productID catalog.ProductID, storeID catalog.StoreID, date catalog.Day) (*catalog.PriceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.findPriceEntry(productID, storeID, date), nil
}

func (m *Memory) InsertPriceEntry(_ context.Context, e *catalog.PriceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.insertPriceEntry(e)
}

func (m *Memory) UpdatePriceEntry(_ context.Context, e *catalog.PriceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.updatePriceEntry(e)
}

func (m *Memory) FindDiscount(_ context.Context, key catalog.DiscountKey) (*catalog.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.findDiscount(key), nil
}

func (m *Memory) InsertDiscount(_ context.Context, d *catalog.Discount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.insertDiscount(d)
}

func (m *Memory) UpdateDiscount(_ context.Context, d *catalog.Discount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.updateDiscount(d)
}

// WithTx runs fn against a copy of the tables. The copy replaces the live
// tables only when fn returns nil; any error discards every write fn made.
func (m *Memory) WithTx(_ context.Context, fn func(catalog.Catalog) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := m.t.clone()
	if err := fn(&txMemory{t: clone}); err != nil {
		return err
	}
	m.t = clone
	return nil
}

// txMemory is the unlocked view handed to WithTx callbacks. The parent
// holds the lock for the whole transaction.
type txMemory struct {
	t *tables
}

func (tx *txMemory) FindStoreByName(_ context.Context, name string) (*catalog.Store, error) {
	return tx.t.findStoreByName(name), nil
}
func (tx *txMemory) InsertStore(_ context.Context, s *catalog.Store) error {
	return tx.t.insertStore(s)
}
func (tx *txMemory) FindBrandByName(_ context.Context, name string) (*catalog.Brand, error) {
	return tx.t.findBrandByName(name), nil
}
func (tx *txMemory) InsertBrand(_ context.Context, b *catalog.Brand) error {
	return tx.t.insertBrand(b)
}
func (tx *txMemory) FindCategoryByName(_ context.Context, name string) (*catalog.Category, error) {
	return tx.t.findCategoryByName(name), nil
}
func (tx *txMemory) InsertCategory(_ context.Context, c *catalog.Category) error {
	return tx.t.insertCategory(c)
}
func (tx *txMemory) FindProductByName(_ context.Context, name string, brandID catalog.BrandID) (*catalog.Product, error) {
	return tx.t.findProductByName(name, brandID), nil
}
func (tx *txMemory) FindProductByID(_ context.Context, id catalog.ProductID) (*catalog.Product, error) {
	return tx.t.findProductByID(id), nil
}
func (tx *txMemory) InsertProduct(_ context.Context, p *catalog.Product) error {
	return tx.t.insertProduct(p)
}
func (tx *txMemory) UpdateProductCategory(_ context.Context, id catalog.ProductID, categoryID catalog.CategoryID) error {
	return tx.t.updateProductCategory(id, categoryID)
}
func (tx *txMemory) FindPriceEntry(_ context.Context, productID catalog.ProductID, storeID catalog.StoreID, date catalog.Day) (*catalog.PriceEntry, error) {
	return tx.t.findPriceEntry(productID, storeID, date), nil
}
func (tx *txMemory) InsertPriceEntry(_ context.Context, e *catalog.PriceEntry) error {
	return tx.t.insertPriceEntry(e)
}
func (tx *txMemory) UpdatePriceEntry(_ context.Context, e *catalog.PriceEntry) error {
	return tx.t.updatePriceEntry(e)
}
func (tx *txMemory) FindDiscount(_ context.Context, key catalog.DiscountKey) (*catalog.Discount, error) {
	return tx.t.findDiscount(key), nil
}
func (tx *txMemory) InsertDiscount(_ context.Context, d *catalog.Discount) error {
	return tx.t.insertDiscount(d)
}
func (tx *txMemory) UpdateDiscount(_ context.Context, d *catalog.Discount) error {
	return tx.t.updateDiscount(d)
}

// =============================================================================
// PRICING SOURCE QUERIES
// =============================================================================

func (m *Memory) FindStoreByID(_ context.Context, id catalog.StoreID) (*catalog.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.t.stores {
		if m.t.stores[i].ID == id {
			s := m.t.stores[i]
			return &s, nil
		}
	}
	return nil, nil
}

// LatestEntry returns the most recent entry with EntryDate <= AsOf matching
// every supplied filter, or nil.
func (m *Memory) LatestEntry(_ context.Context, q catalog.PriceQuery) (*catalog.PriceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *catalog.PriceEntry
	for i := range m.t.prices {
		e := &m.t.prices[i]
		if !matchesQuery(e, q) {
			continue
		}
		if best == nil || e.EntryDate.After(best.EntryDate) {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

// LatestEntriesPerStore returns each store's most recent entry on or before
// asOf, ordered by ascending store id for deterministic downstream
// tie-breaking.
func (m *Memory) LatestEntriesPerStore(_ context.Context, productID catalog.ProductID, asOf catalog.Day) ([]catalog.PriceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := make(map[catalog.StoreID]catalog.PriceEntry)
	for i := range m.t.prices {
		e := m.t.prices[i]
		if e.ProductID != productID || e.EntryDate.After(asOf) {
			continue
		}
		if cur, ok := best[e.StoreID]; !ok || e.EntryDate.After(cur.EntryDate) {
			best[e.StoreID] = e
		}
	}

	out := make([]catalog.PriceEntry, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreID < out[j].StoreID })
	return out, nil
}

// ActiveDiscounts returns all discounts whose window covers asOf.
func (m *Memory) ActiveDiscounts(_ context.Context, asOf catalog.Day) ([]catalog.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []catalog.Discount
	for i := range m.t.discounts {
		if m.t.discounts[i].ActiveAt(asOf) {
			out = append(out, m.t.discounts[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ActiveDiscountFor returns the discount active on asOf for the exact
// (product, store, package) combination, or nil.
func (m *Memory) ActiveDiscountFor(_ context.Context, productID catalog.ProductID, storeID catalog.StoreID, pkgQty decimal.Decimal, pkgUnit string, asOf catalog.Day) (*catalog.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.t.discounts {
		d := &m.t.discounts[i]
		if d.ProductID == productID && d.StoreID == storeID &&
			d.PackageQty.Equal(pkgQty) && d.PackageUnit == pkgUnit &&
			d.ActiveAt(asOf) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func matchesQuery(e *catalog.PriceEntry, q catalog.PriceQuery) bool {
	if e.ProductID != q.ProductID || e.EntryDate.After(q.AsOf) {
		return false
	}
	if q.StoreID != nil && e.StoreID != *q.StoreID {
		return false
	}
	if q.PackageQty != nil && !e.PackageQty.Equal(*q.PackageQty) {
		return false
	}
	if q.PackageUnit != nil && e.PackageUnit != *q.PackageUnit {
		return false
	}
	return true
}
