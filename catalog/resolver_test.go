package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricefeed/basket-engine/catalog"
	memstore "github.com/pricefeed/basket-engine/catalog/store"
)

func TestResolveStore_FindOrCreate(t *testing.T) {
	ctx := context.Background()
	r := catalog.NewResolver(memstore.NewMemory())

	first, err := r.ResolveStore(ctx, "mercadona")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	again, err := r.ResolveStore(ctx, "mercadona")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "same name should resolve to same store")
}

func TestResolveStore_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	r := catalog.NewResolver(memstore.NewMemory())

	lower, err := r.ResolveStore(ctx, "mercadona")
	require.NoError(t, err)

	upper, err := r.ResolveStore(ctx, "MERCADONA")
	require.NoError(t, err)
	assert.Equal(t, lower.ID, upper.ID, "name casing must not create a second store")
}

func TestResolveStore_TrimsWhitespace(t *testing.T) {
	ctx := context.Background()
	r := catalog.NewResolver(memstore.NewMemory())

	a, err := r.ResolveStore(ctx, "  lidl ")
	require.NoError(t, err)
	assert.Equal(t, "lidl", a.Name)

	b, err := r.ResolveStore(ctx, "lidl")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestResolveStore_BlankNameRejected(t *testing.T) {
	ctx := context.Background()
	r := catalog.NewResolver(memstore.NewMemory())

	_, err := r.ResolveStore(ctx, "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrBlankName)
	assert.True(t, catalog.IsClientError(err))
}

func TestResolveProduct_CreatesWithBrandAndCategory(t *testing.T) {
	ctx := context.Background()
	mem := memstore.NewMemory()
	r := catalog.NewResolver(mem)

	brand, err := r.ResolveBrand(ctx, "hacendado")
	require.NoError(t, err)
	category, err := r.ResolveCategory(ctx, "dairy")
	require.NoError(t, err)

	p, err := r.ResolveProduct(ctx, "whole milk", brand, category)
	require.NoError(t, err)
	assert.Equal(t, brand.ID, p.BrandID)
	assert.Equal(t, category.ID, p.CategoryID)
}

func TestResolveProduct_SameNameDifferentBrand(t *testing.T) {
	ctx := context.Background()
	r := catalog.NewResolver(memstore.NewMemory())

	brandA, err := r.ResolveBrand(ctx, "hacendado")
	require.NoError(t, err)
	brandB, err := r.ResolveBrand(ctx, "pascual")
	require.NoError(t, err)
	category, err := r.ResolveCategory(ctx, "dairy")
	require.NoError(t, err)

	pa, err := r.ResolveProduct(ctx, "whole milk", brandA, category)
	require.NoError(t, err)
	pb, err := r.ResolveProduct(ctx, "whole milk", brandB, category)
	require.NoError(t, err)

	assert.NotEqual(t, pa.ID, pb.ID, "brand is part of the product identity")
}

func TestResolveProduct_CategoryFollowsLatestIngest(t *testing.T) {
	ctx := context.Background()
	r := catalog.NewResolver(memstore.NewMemory())

	brand, err := r.ResolveBrand(ctx, "hacendado")
	require.NoError(t, err)
	dairy, err := r.ResolveCategory(ctx, "dairy")
	require.NoError(t, err)
	drinks, err := r.ResolveCategory(ctx, "drinks")
	require.NoError(t, err)

	first, err := r.ResolveProduct(ctx, "whole milk", brand, dairy)
	require.NoError(t, err)

	second, err := r.ResolveProduct(ctx, "whole milk", brand, drinks)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, drinks.ID, second.CategoryID, "reclassification should overwrite the category")
}

func TestLookupProduct_NeverCreates(t *testing.T) {
	ctx := context.Background()
	mem := memstore.NewMemory()
	r := catalog.NewResolver(mem)

	p, err := r.LookupProduct(ctx, "whole milk", "hacendado")
	require.NoError(t, err)
	assert.Nil(t, p, "lookup of an unknown product must return nil, not create it")

	// Unknown brand short-circuits the same way.
	p, err = r.LookupProduct(ctx, "anything", "no-such-brand")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMemoryWithTx_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	mem := memstore.NewMemory()

	err := mem.WithTx(ctx, func(cat catalog.Catalog) error {
		r := catalog.NewResolver(cat)
		if _, err := r.ResolveStore(ctx, "mercadona"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	found, err := mem.FindStoreByName(ctx, "mercadona")
	require.NoError(t, err)
	assert.Nil(t, found, "rolled-back insert must not be visible")
}

func TestMemoryWithTx_CommitPublishesWrites(t *testing.T) {
	ctx := context.Background()
	mem := memstore.NewMemory()

	err := mem.WithTx(ctx, func(cat catalog.Catalog) error {
		r := catalog.NewResolver(cat)
		_, err := r.ResolveStore(ctx, "mercadona")
		return err
	})
	require.NoError(t, err)

	found, err := mem.FindStoreByName(ctx, "mercadona")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.WithinDuration(t, time.Now(), found.CreatedAt, time.Minute)
}
