package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentOnline         PaymentMethod = "online"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// ParsePaymentMethod normalises the method names sent by storefront clients.
// An empty value means cash on delivery.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "cod", string(PaymentCashOnDelivery):
		return PaymentCashOnDelivery, true
	case "razorpay", string(PaymentOnline):
		return PaymentOnline, true
	default:
		return "", false
	}
}

// InitialPaymentStatus derives the payment status an order is created with.
func (m PaymentMethod) InitialPaymentStatus() PaymentStatus {
	if m == PaymentOnline {
		return PaymentPaid
	}
	return PaymentPending
}

// OrderLineItem is the snapshot of a product taken when the order was placed.
type OrderLineItem struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Image     string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type ShippingAddress struct {
	Name     string `json:"name" validate:"notblank"`
	Phone    string `json:"phone" validate:"notblank"`
	Street   string `json:"street" validate:"notblank"`
	City     string `json:"city" validate:"notblank"`
	State    string `json:"state" validate:"notblank"`
	Pincode  string `json:"pincode" validate:"notblank"`
	Landmark string `json:"landmark,omitempty"`
}

// Trimmed returns the address with surrounding whitespace removed.
func (a ShippingAddress) Trimmed() ShippingAddress {
	return ShippingAddress{
		Name:     strings.TrimSpace(a.Name),
		Phone:    strings.TrimSpace(a.Phone),
		Street:   strings.TrimSpace(a.Street),
		City:     strings.TrimSpace(a.City),
		State:    strings.TrimSpace(a.State),
		Pincode:  strings.TrimSpace(a.Pincode),
		Landmark: strings.TrimSpace(a.Landmark),
	}
}

type Order struct {
	ID                     string          `json:"id"`
	UserID                 string          `json:"userId"`
	UserEmail              string          `json:"userEmail,omitempty"`
	Items                  []OrderLineItem `json:"items"`
	TotalAmount            decimal.Decimal `json:"totalAmount"`
	Status                 OrderStatus     `json:"status"`
	PaymentMethod          PaymentMethod   `json:"paymentMethod"`
	PaymentStatus          PaymentStatus   `json:"paymentStatus"`
	PaymentID              string          `json:"paymentId,omitempty"`
	ShippingAddress        ShippingAddress `json:"shippingAddress"`
	OrderedAt              time.Time       `json:"orderedAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
	FollowUpReminderSentAt *time.Time      `json:"followUpReminderSentAt,omitempty"`
	FollowUpReminderStatus OrderStatus     `json:"followUpReminderStatus,omitempty"`
}

// OrderEvent is published after an order is created or changes status.
type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"orderId"`
	UserID     string          `json:"userId"`
	Status     OrderStatus     `json:"status"`
	Previous   OrderStatus     `json:"previousStatus,omitempty"`
	Total      decimal.Decimal `json:"totalAmount"`
	ItemCount  int             `json:"itemCount"`
	OccurredAt time.Time       `json:"occurredAt"`
}

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusUpdated = "order.status_updated"
)
