/*
resolver.go - Find-or-create resolution of master data

PURPOSE:
  Source CSV files reference stores, brands, categories and products by
  free-text name, with casing and whitespace that varies file to file.
  The Resolver maps those names onto catalog rows, creating them lazily on
  first encounter.

FIND-OR-CREATE UNDER CONCURRENCY:
  Two overlapping ingestion runs can race on the same new name. The
  resolver does not assume single-writer access: it inserts, and on a
  uniqueness violation from the storage layer it re-reads. The race becomes
  a retried read.

CATEGORY RECONCILIATION:
  A product's category is mutable master data. When a file presents an
  existing product under a different category, the most recently ingested
  category wins and the change is logged as a warning, since it indicates
  inconsistent source data.

SEE ALSO:
  - store.go: Uniqueness and lookup contracts
  - upsert.go: Price/discount writes that follow resolution
*/
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Resolver finds or creates catalog master data from free-text names.
type Resolver struct {
	Catalog Catalog
}

func NewResolver(c Catalog) *Resolver {
	return &Resolver{Catalog: c}
}

// =============================================================================
// STORE / BRAND / CATEGORY
// =============================================================================

// ResolveStore returns the store with the given name, creating it if absent.
// Case-different inputs resolve to the same store.
func (r *Resolver) ResolveStore(ctx context.Context, name string) (*Store, error) {
	name, err := cleanName("store", name)
	if err != nil {
		return nil, err
	}

	if s, err := r.Catalog.FindStoreByName(ctx, name); err != nil || s != nil {
		return s, err
	}

	s := &Store{Name: name}
	err = r.Catalog.InsertStore(ctx, s)
	if errors.Is(err, ErrUniqueViolation) {
		// Lost the find-or-create race; the row exists now.
		return r.Catalog.FindStoreByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ResolveBrand returns the brand with the given name, creating it if absent.
func (r *Resolver) ResolveBrand(ctx context.Context, name string) (*Brand, error) {
	name, err := cleanName("brand", name)
	if err != nil {
		return nil, err
	}

	if b, err := r.Catalog.FindBrandByName(ctx, name); err != nil || b != nil {
		return b, err
	}

	b := &Brand{Name: name}
	err = r.Catalog.InsertBrand(ctx, b)
	if errors.Is(err, ErrUniqueViolation) {
		return r.Catalog.FindBrandByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ResolveCategory returns the category with the given name, creating it if
// absent.
func (r *Resolver) ResolveCategory(ctx context.Context, name string) (*Category, error) {
	name, err := cleanName("category", name)
	if err != nil {
		return nil, err
	}

	if c, err := r.Catalog.FindCategoryByName(ctx, name); err != nil || c != nil {
		return c, err
	}

	c := &Category{Name: name}
	err = r.Catalog.InsertCategory(ctx, c)
	if errors.Is(err, ErrUniqueViolation) {
		return r.Catalog.FindCategoryByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// =============================================================================
// PRODUCT
// =============================================================================

// ResolveProduct returns the product with the given (name, brand) key,
// creating it with the supplied category if absent. If the product exists
// under a different category, the supplied category overwrites the stored
// one (last write wins).
func (r *Resolver) ResolveProduct(ctx context.Context, name string, brand *Brand, category *Category) (*Product, error) {
	name, err := cleanName("product", name)
	if err != nil {
		return nil, err
	}

	p, err := r.Catalog.FindProductByName(ctx, name, brand.ID)
	if err != nil {
		return nil, err
	}

	if p == nil {
		p = &Product{Name: name, BrandID: brand.ID, CategoryID: category.ID}
		err = r.Catalog.InsertProduct(ctx, p)
		if errors.Is(err, ErrUniqueViolation) {
			return r.Catalog.FindProductByName(ctx, name, brand.ID)
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	if p.CategoryID != category.ID {
		log.Printf("[Catalog] product %q (brand %q): category %d replaced by %d, source data is inconsistent",
			p.Name, brand.Name, p.CategoryID, category.ID)
		if err := r.Catalog.UpdateProductCategory(ctx, p.ID, category.ID); err != nil {
			return nil, err
		}
		p.CategoryID = category.ID
	}
	return p, nil
}

// LookupProduct resolves a product without ever creating one. It returns
// (nil, nil) when the name or brand is unknown; discount ingestion uses this
// because a discount row must not create a product.
func (r *Resolver) LookupProduct(ctx context.Context, name, brandName string) (*Product, error) {
	name = strings.TrimSpace(name)
	brandName = strings.TrimSpace(brandName)
	if name == "" || brandName == "" {
		return nil, nil
	}

	b, err := r.Catalog.FindBrandByName(ctx, brandName)
	if err != nil || b == nil {
		return nil, err
	}
	return r.Catalog.FindProductByName(ctx, name, b.ID)
}

func cleanName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%s: %w", kind, ErrBlankName)
	}
	return name, nil
}
