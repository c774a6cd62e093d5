package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// storefront clients read prices as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// CreateOrderItem is one cart line. Older storefront builds send the product
// id as "id" rather than "productId".
type CreateOrderItem struct {
	ProductID string           `json:"productId"`
	LegacyID  string           `json:"id,omitempty"`
	Title     string           `json:"title"`
	Image     string           `json:"image,omitempty"`
	Price     *decimal.Decimal `json:"price" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
}

// ResolvedProductID returns the product id regardless of which field carried it.
func (i CreateOrderItem) ResolvedProductID() string {
	if id := strings.TrimSpace(i.ProductID); id != "" {
		return id
	}
	return strings.TrimSpace(i.LegacyID)
}

type CreateOrderRequest struct {
	UserID          string            `json:"userId" validate:"notblank"`
	UserEmail       string            `json:"userEmail,omitempty" validate:"omitempty,email"`
	Items           []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	TotalAmount     *decimal.Decimal  `json:"totalAmount" validate:"required"`
	PaymentMethod   string            `json:"paymentMethod,omitempty"`
	PaymentID       string            `json:"paymentId,omitempty"`
	ShippingAddress *ShippingAddress  `json:"shippingAddress" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// VerifyPaymentRequest uses the gateway's field names.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature        string `json:"razorpay_signature" validate:"required"`
}

type CreateRemoteOrderRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

// RemoteOrder is the gateway-side order a checkout page pays against.
type RemoteOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ProductInput is the admin create/update payload.
type ProductInput struct {
	Title         string           `json:"title" validate:"required"`
	Slug          string           `json:"slug,omitempty"`
	Category      string           `json:"category" validate:"required"`
	Brand         string           `json:"brand,omitempty"`
	Description   string           `json:"description,omitempty"`
	Price         *decimal.Decimal `json:"price" validate:"required"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Image         string           `json:"image,omitempty"`
	Images        []string         `json:"images,omitempty"`
	Specs         map[string]any   `json:"specs,omitempty"`
	Stock         *int             `json:"stock" validate:"required,gte=0"`
	Rating        float64          `json:"rating,omitempty" validate:"gte=0,lte=5"`
	ReviewCount   int              `json:"reviewCount,omitempty" validate:"gte=0"`
	IsFeatured    bool             `json:"isFeatured,omitempty"`
	FreeDelivery  bool             `json:"freeDelivery,omitempty"`
}
