package services

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sanjay9342/ramesh-computers/common/apperrors"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/sanjay9342/ramesh-computers/repository"
	"go.uber.org/zap"
)

// ProductService defines the catalogue operations.
type ProductService interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, input *models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, input *models.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type productServiceImpl struct {
	repo   repository.ProductRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewProductService(repo repository.ProductRepository, logger *zap.Logger) ProductService {
	return &productServiceImpl{repo: repo, now: time.Now, logger: logger}
}

// ListProducts filters and sorts the catalogue in memory. The catalogue of a
// single store is small enough that this beats per-backend query building.
func (s *productServiceImpl) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		return nil, apperrors.TransientStorage(err)
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.Product, 0, len(all))
	for _, p := range all {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if len(filter.Brands) > 0 && !slices.Contains(filter.Brands, p.Brand) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Brand), search) {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if filter.Featured != nil && p.IsFeatured != *filter.Featured {
			continue
		}
		out = append(out, p)
	}

	switch filter.Sort {
	case models.SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case models.SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case models.SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	case models.SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out, nil
}

// ListCategories derives the category list from the catalogue in first-seen
// order.
func (s *productServiceImpl) ListCategories(ctx context.Context) ([]models.Category, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list categories", zap.Error(err))
		return nil, apperrors.TransientStorage(err)
	}

	seen := make(map[string]bool)
	categories := make([]models.Category, 0)
	for _, p := range all {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		categories = append(categories, models.Category{
			ID:   strconv.Itoa(len(categories) + 1),
			Name: capitalize(p.Category),
			Slug: p.Category,
		})
	}
	return categories, nil
}

func (s *productServiceImpl) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Product not found")
	}
	if err != nil {
		s.logger.Error("Failed to load product", zap.String("product_id", id), zap.Error(err))
		return nil, apperrors.TransientStorage(err)
	}
	return product, nil
}

func (s *productServiceImpl) CreateProduct(ctx context.Context, input *models.ProductInput) (*models.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	product := &models.Product{ID: uuid.NewString(), CreatedAt: now}
	applyProductInput(product, input, now)

	if err := s.repo.Create(ctx, product); err != nil {
		s.logger.Error("Failed to create product", zap.String("title", product.Title), zap.Error(err))
		return nil, apperrors.TransientStorage(err)
	}
	s.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("title", product.Title))
	return product, nil
}

// UpdateProduct replaces the editable fields of a product, stock included.
func (s *productServiceImpl) UpdateProduct(ctx context.Context, id string, input *models.ProductInput) (*models.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	applyProductInput(product, input, s.now().UTC())
	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Product not found")
		}
		s.logger.Error("Failed to update product", zap.String("product_id", id), zap.Error(err))
		return nil, apperrors.TransientStorage(err)
	}
	s.logger.Info("Product updated", zap.String("product_id", id), zap.Int("stock", product.Stock))
	return product, nil
}

func (s *productServiceImpl) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Product not found")
		}
		s.logger.Error("Failed to delete product", zap.String("product_id", id), zap.Error(err))
		return apperrors.TransientStorage(err)
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

func validateProductInput(input *models.ProductInput) error {
	if input == nil {
		return apperrors.Validation([]apperrors.FieldError{{Field: "body", Message: "is required"}})
	}
	fields := validateStruct(input)
	if input.Price != nil && input.Price.IsNegative() {
		fields = append(fields, apperrors.FieldError{Field: "price", Message: "must not be negative"})
	}
	if input.DiscountPrice != nil && input.Price != nil {
		if input.DiscountPrice.IsNegative() || input.DiscountPrice.GreaterThan(*input.Price) {
			fields = append(fields, apperrors.FieldError{Field: "discountPrice", Message: "must be between 0 and price"})
		}
	}
	if len(fields) > 0 {
		return apperrors.Validation(fields)
	}
	return nil
}

// applyProductInput copies input onto p. The cover image and the gallery are
// kept consistent: either one fills in for the other when missing.
func applyProductInput(p *models.Product, input *models.ProductInput, now time.Time) {
	p.Title = strings.TrimSpace(input.Title)
	p.Slug = strings.TrimSpace(input.Slug)
	if p.Slug == "" {
		p.Slug = slugify(p.Title)
	}
	p.Category = strings.TrimSpace(input.Category)
	p.Brand = strings.TrimSpace(input.Brand)
	p.Description = input.Description
	p.Price = *input.Price
	p.DiscountPrice = nil
	if input.DiscountPrice != nil && input.DiscountPrice.IsPositive() {
		d := *input.DiscountPrice
		p.DiscountPrice = &d
	}

	p.Image = input.Image
	if p.Image == "" && len(input.Images) > 0 {
		p.Image = input.Images[0]
	}
	p.Images = append([]string(nil), input.Images...)
	if len(p.Images) == 0 && p.Image != "" {
		p.Images = []string{p.Image}
	}

	p.Specs = input.Specs
	p.Stock = *input.Stock
	p.Rating = input.Rating
	p.ReviewCount = input.ReviewCount
	p.IsFeatured = input.IsFeatured
	p.FreeDelivery = input.FreeDelivery
	p.UpdatedAt = now
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
