package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Slug          string           `json:"slug"`
	Category      string           `json:"category"`
	Brand         string           `json:"brand"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Image         string           `json:"image"`
	Images        []string         `json:"images"`
	Specs         map[string]any   `json:"specs,omitempty"`
	Stock         int              `json:"stock"`
	Rating        float64          `json:"rating"`
	ReviewCount   int              `json:"reviewCount"`
	IsFeatured    bool             `json:"isFeatured"`
	FreeDelivery  bool             `json:"freeDelivery"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// EffectivePrice is the price a customer pays, the discount price when set.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.GreaterThan(decimal.Zero) {
		return *p.DiscountPrice
	}
	return p.Price
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProductFilter carries the catalogue query parameters.
type ProductFilter struct {
	Category string
	Brands   []string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
	Featured *bool
}

const (
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
	SortNewest    = "newest"
)
