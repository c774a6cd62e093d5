package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sanjay9342/ramesh-computers/common/apperrors"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/sanjay9342/ramesh-computers/services"
	"github.com/shopspring/decimal"
)

// ProductController handles the catalogue endpoints.
type ProductController struct {
	productService services.ProductService
}

func NewProductController(productService services.ProductService) *ProductController {
	return &ProductController{productService: productService}
}

// ListProducts handles GET /api/products.
func (pc *ProductController) ListProducts(ctx *gin.Context) {
	filter, err := parseProductFilter(ctx)
	if err != nil {
		_ = ctx.Error(err)
		return
	}

	products, err := pc.productService.ListProducts(ctx.Request.Context(), filter)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, products)
}

func parseProductFilter(ctx *gin.Context) (models.ProductFilter, error) {
	filter := models.ProductFilter{
		Category: strings.TrimSpace(ctx.Query("category")),
		Search:   ctx.Query("search"),
		Sort:     ctx.Query("sort"),
	}
	if brand := ctx.Query("brand"); brand != "" {
		for _, b := range strings.Split(brand, ",") {
			if b = strings.TrimSpace(b); b != "" {
				filter.Brands = append(filter.Brands, b)
			}
		}
	}

	var fields []apperrors.FieldError
	parsePrice := func(key string) *decimal.Decimal {
		raw := strings.TrimSpace(ctx.Query(key))
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			fields = append(fields, apperrors.FieldError{Field: key, Message: "must be a number"})
			return nil
		}
		return &d
	}
	filter.MinPrice = parsePrice("minPrice")
	filter.MaxPrice = parsePrice("maxPrice")

	if raw := ctx.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			fields = append(fields, apperrors.FieldError{Field: "featured", Message: "must be true or false"})
		} else {
			filter.Featured = &featured
		}
	}

	if len(fields) > 0 {
		return filter, apperrors.Validation(fields)
	}
	return filter, nil
}

// ListCategories handles GET /api/products/categories/list.
func (pc *ProductController) ListCategories(ctx *gin.Context) {
	categories, err := pc.productService.ListCategories(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, categories)
}

func (pc *ProductController) GetProduct(ctx *gin.Context) {
	product, err := pc.productService.GetProduct(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func (pc *ProductController) CreateProduct(ctx *gin.Context) {
	var input models.ProductInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		_ = ctx.Error(apperrors.BadRequest("Invalid request body", err))
		return
	}

	product, err := pc.productService.CreateProduct(ctx.Request.Context(), &input)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusCreated, product)
}

func (pc *ProductController) UpdateProduct(ctx *gin.Context) {
	var input models.ProductInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		_ = ctx.Error(apperrors.BadRequest("Invalid request body", err))
		return
	}

	product, err := pc.productService.UpdateProduct(ctx.Request.Context(), ctx.Param("id"), &input)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func (pc *ProductController) DeleteProduct(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := pc.productService.DeleteProduct(ctx.Request.Context(), id); err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "deleted": id})
}
