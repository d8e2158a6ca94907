/*
store.go - Persistence interfaces for the catalog

PURPOSE:
  Defines the interface between catalog logic and the database. The catalog
  assumes a transactional relational store with uniqueness enforcement at
  the storage layer; implementations live in store/sqlite (production) and
  catalog/store (in-memory, for tests).

LOOKUP CONTRACT:
  Find* methods return (nil, nil) when no row matches. ErrNotFound is
  reserved for operations that require a row to exist.

UNIQUENESS CONTRACT:
  Insert* methods return ErrUniqueViolation when a natural key collides.
  Find-or-create callers absorb the race between two concurrent ingestion
  runs by re-reading after a violation (see resolver.go).

TRANSACTIONS:
  TxCatalog.WithTx executes fn inside one storage transaction. The ingestion
  orchestrator opens one transaction per source file: fn returning an error
  rolls back every row of that file.

SEE ALSO:
  - store/sqlite/sqlite.go: Production implementation
  - catalog/store/memory.go: In-memory implementation for testing
*/
package catalog

import "context"

// Catalog is the transactional persistence surface for catalog entities.
type Catalog interface {
	// Master data. Name lookups are case-insensitive on trimmed names.
	FindStoreByName(ctx context.Context, name string) (*Store, error)
	InsertStore(ctx context.Context, s *Store) error
	FindBrandByName(ctx context.Context, name string) (*Brand, error)
	InsertBrand(ctx context.Context, b *Brand) error
	FindCategoryByName(ctx context.Context, name string) (*Category, error)
	InsertCategory(ctx context.Context, c *Category) error

	// Products.
	FindProductByName(ctx context.Context, name string, brandID BrandID) (*Product, error)
	FindProductByID(ctx context.Context, id ProductID) (*Product, error)
	InsertProduct(ctx context.Context, p *Product) error
	UpdateProductCategory(ctx context.Context, id ProductID, categoryID CategoryID) error

	// Price entries, keyed by (product, store, entry date).
	FindPriceEntry(ctx context.Context, productID ProductID, storeID StoreID, date Day) (*PriceEntry, error)
	InsertPriceEntry(ctx context.Context, e *PriceEntry) error
	UpdatePriceEntry(ctx context.Context, e *PriceEntry) error

	// Discounts, keyed by their natural key.
	FindDiscount(ctx context.Context, key DiscountKey) (*Discount, error)
	InsertDiscount(ctx context.Context, d *Discount) error
	UpdateDiscount(ctx context.Context, d *Discount) error
}

// TxCatalog wraps Catalog with a transactional boundary.
type TxCatalog interface {
	Catalog

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Catalog) error) error
}
