package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error independently of its message.
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindProductNotFound      Kind = "product_not_found"
	KindInsufficientStock    Kind = "insufficient_stock"
	KindInvalidStatus        Kind = "invalid_status"
	KindInvalidTransition    Kind = "invalid_transition"
	KindOrderNotFound        Kind = "order_not_found"
	KindNotFound             Kind = "not_found"
	KindTransientStorage     Kind = "transient_storage_error"
	KindPaymentNotConfigured Kind = "payment_not_configured"
	KindPaymentGateway       Kind = "payment_gateway_error"
	KindInvalidSignature     Kind = "invalid_signature"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindInternal             Kind = "internal_error"
)

// Error represents an application error
type Error struct {
	Code    int            `json:"-"`
	Kind    Kind           `json:"code"`
	Message string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{Code: code, Kind: kind, Message: message, Err: err}
}

// WithDetail returns e with key set in its details.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons. Never return these directly.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrProductNotFound      = &Error{Kind: KindProductNotFound}
	ErrInsufficientStock    = &Error{Kind: KindInsufficientStock}
	ErrInvalidStatus        = &Error{Kind: KindInvalidStatus}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition}
	ErrOrderNotFound        = &Error{Kind: KindOrderNotFound}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrTransientStorage     = &Error{Kind: KindTransientStorage}
	ErrPaymentNotConfigured = &Error{Kind: KindPaymentNotConfigured}
	ErrPaymentGateway       = &Error{Kind: KindPaymentGateway}
	ErrInvalidSignature     = &Error{Kind: KindInvalidSignature}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrInternal             = &Error{Kind: KindInternal}
)

// FieldError describes one failing request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func Validation(fields []FieldError) *Error {
	msg := "Validation failed"
	if len(fields) == 1 {
		msg = fmt.Sprintf("Validation failed: %s %s", fields[0].Field, fields[0].Message)
	}
	return New(http.StatusBadRequest, KindValidation, msg, nil).WithDetail("fields", fields)
}

func ProductNotFound(productID, title string) *Error {
	name := title
	if name == "" {
		name = productID
	}
	return New(http.StatusBadRequest, KindProductNotFound, fmt.Sprintf("Product not found: %s", name), nil).
		WithDetail("productId", productID).
		WithDetail("title", title)
}

func InsufficientStock(productID, title string, available, requested int) *Error {
	return New(http.StatusBadRequest, KindInsufficientStock,
		fmt.Sprintf("Insufficient stock for %s. Available: %d", title, available), nil).
		WithDetail("productId", productID).
		WithDetail("title", title).
		WithDetail("available", available).
		WithDetail("requested", requested)
}

func InvalidStatus(status string, allowed []string) *Error {
	return New(http.StatusBadRequest, KindInvalidStatus, "Invalid status", nil).
		WithDetail("status", status).
		WithDetail("allowed", allowed)
}

func InvalidTransition(from, to string) *Error {
	return New(http.StatusConflict, KindInvalidTransition,
		fmt.Sprintf("Cannot change order status from %s to %s", from, to), nil).
		WithDetail("from", from).
		WithDetail("to", to)
}

func OrderNotFound(orderID string) *Error {
	return New(http.StatusNotFound, KindOrderNotFound, "Order not found", nil).WithDetail("orderId", orderID)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, KindNotFound, message, nil)
}

func TransientStorage(err error) *Error {
	return New(http.StatusInternalServerError, KindTransientStorage, "Storage temporarily unavailable, please retry", err)
}

func PaymentNotConfigured(err error) *Error {
	return New(http.StatusInternalServerError, KindPaymentNotConfigured, "Payment gateway is not configured", err)
}

func PaymentGateway(err error) *Error {
	return New(http.StatusBadGateway, KindPaymentGateway, "Payment gateway request failed", err)
}

func InvalidSignature() *Error {
	return New(http.StatusBadRequest, KindInvalidSignature, "Invalid payment signature", nil)
}

func BadRequest(message string, err error) *Error {
	return New(http.StatusBadRequest, KindValidation, message, err)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, KindUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, KindForbidden, message, nil)
}

func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, message, err)
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr
	}
	return Internal("Internal server error", err)
}

// ErrorMiddleware renders the last error a handler attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := From(c.Errors.Last().Err)
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
