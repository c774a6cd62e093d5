package services

import (
	"context"
	"testing"
	"time"

	"github.com/sanjay9342/ramesh-computers/common/apperrors"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/sanjay9342/ramesh-computers/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedCatalogue(t *testing.T, store *repository.MemoryStore) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []models.Product{
		{ID: "1", Title: "Dell Inspiron 15", Category: "laptops", Brand: "Dell", Price: decimal.NewFromInt(55000), Rating: 4.1, CreatedAt: base},
		{ID: "2", Title: "HP Pavilion", Category: "laptops", Brand: "HP", Price: decimal.NewFromInt(62000), Rating: 4.5, CreatedAt: base.Add(time.Hour), IsFeatured: true},
		{ID: "3", Title: "Logitech MX Master", Category: "accessories", Brand: "Logitech", Price: decimal.NewFromInt(8000), Rating: 4.8, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "4", Title: "Dell 24in Monitor", Category: "monitors", Brand: "Dell", Price: decimal.NewFromInt(14000), Rating: 4.0, CreatedAt: base.Add(3 * time.Hour)},
	}
	for i := range products {
		require.NoError(t, store.Products().Create(context.Background(), &products[i]))
	}
}

func ids(products []models.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestListProducts(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCatalogue(t, store)
	svc := NewProductService(store.Products(), zap.NewNop())
	featured := true

	tests := []struct {
		name   string
		filter models.ProductFilter
		want   []string
	}{
		{"category", models.ProductFilter{Category: "laptops", Sort: models.SortPriceLow}, []string{"1", "2"}},
		{"brands", models.ProductFilter{Brands: []string{"Dell", "Logitech"}, Sort: models.SortPriceHigh}, []string{"1", "4", "3"}},
		{"search title or brand", models.ProductFilter{Search: "DELL", Sort: models.SortNewest}, []string{"4", "1"}},
		{"price range", models.ProductFilter{MinPrice: dec("10000"), MaxPrice: dec("60000"), Sort: models.SortPriceLow}, []string{"4", "1"}},
		{"rating", models.ProductFilter{Sort: models.SortRating}, []string{"3", "2", "1", "4"}},
		{"featured", models.ProductFilter{Featured: &featured}, []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListProducts(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestListCategories(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCatalogue(t, store)
	svc := NewProductService(store.Products(), zap.NewNop())

	cats, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 3)
	slugs := make([]string, len(cats))
	for i, c := range cats {
		slugs[i] = c.Slug
		assert.NotEmpty(t, c.ID)
	}
	assert.ElementsMatch(t, []string{"laptops", "accessories", "monitors"}, slugs)
	for _, c := range cats {
		if c.Slug == "laptops" {
			assert.Equal(t, "Laptops", c.Name)
		}
	}
}

func TestCreateProduct(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewProductService(store.Products(), zap.NewNop())
	stock := 7

	p, err := svc.CreateProduct(context.Background(), &models.ProductInput{
		Title:    "Lenovo IdeaPad Slim 3",
		Category: "laptops",
		Brand:    "Lenovo",
		Price:    dec("48990"),
		Images:   []string{"a.jpg", "b.jpg"},
		Stock:    &stock,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "lenovo-ideapad-slim-3", p.Slug)
	assert.Equal(t, "a.jpg", p.Image)
	assert.Equal(t, 7, p.Stock)
	assert.False(t, p.CreatedAt.IsZero())

	single, err := svc.CreateProduct(context.Background(), &models.ProductInput{
		Title: "Cable", Category: "accessories", Price: dec("199"), Image: "cable.jpg", Stock: &stock,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cable.jpg"}, single.Images)

	stored, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, stored.Title)
}

func TestCreateProduct_Validation(t *testing.T) {
	svc := NewProductService(repository.NewMemoryStore().Products(), zap.NewNop())
	stock := 1
	negative := -1

	cases := map[string]*models.ProductInput{
		"nil":               nil,
		"missing title":     {Category: "c", Price: dec("1"), Stock: &stock},
		"missing price":     {Title: "t", Category: "c", Stock: &stock},
		"negative price":    {Title: "t", Category: "c", Price: dec("-1"), Stock: &stock},
		"missing stock":     {Title: "t", Category: "c", Price: dec("1")},
		"negative stock":    {Title: "t", Category: "c", Price: dec("1"), Stock: &negative},
		"discount too high": {Title: "t", Category: "c", Price: dec("100"), DiscountPrice: dec("150"), Stock: &stock},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateProduct(context.Background(), input)
			require.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCatalogue(t, store)
	svc := NewProductService(store.Products(), zap.NewNop())
	stock := 25

	updated, err := svc.UpdateProduct(context.Background(), "1", &models.ProductInput{
		Title: "Dell Inspiron 15 (2026)", Category: "laptops", Brand: "Dell",
		Price: dec("52000"), DiscountPrice: dec("49999"), Stock: &stock,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Stock)
	require.NotNil(t, updated.DiscountPrice)
	assert.Equal(t, "49999", updated.EffectivePrice().String())
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), updated.CreatedAt)

	_, err = svc.UpdateProduct(context.Background(), "missing", &models.ProductInput{
		Title: "x", Category: "c", Price: dec("1"), Stock: &stock,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.DeleteProduct(context.Background(), "1"))
	_, err = svc.GetProduct(context.Background(), "1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.ErrorIs(t, svc.DeleteProduct(context.Background(), "1"), apperrors.ErrNotFound)
}
