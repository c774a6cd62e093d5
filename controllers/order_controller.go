package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sanjay9342/ramesh-computers/common/apperrors"
	"github.com/sanjay9342/ramesh-computers/middleware"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/sanjay9342/ramesh-computers/services"
)

// OrderController handles HTTP requests for order operations.
type OrderController struct {
	orderService services.OrderService
}

func NewOrderController(orderService services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// CreateOrder handles POST /api/orders. A customer may only order for
// themselves; an empty userId means the caller.
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	var req models.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		_ = ctx.Error(apperrors.BadRequest("Invalid request body", err))
		return
	}

	callerID, _ := middleware.GetUserID(ctx)
	if req.UserID == "" {
		req.UserID = callerID
	}
	if req.UserID != callerID && !middleware.IsAdmin(ctx) {
		_ = ctx.Error(apperrors.Forbidden("Cannot place an order for another user"))
		return
	}

	order, err := oc.orderService.CreateOrder(ctx.Request.Context(), &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusCreated, order)
}

// ListOrders handles GET /api/orders (admin only).
func (oc *OrderController) ListOrders(ctx *gin.Context) {
	orders, err := oc.orderService.ListOrders(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, orders)
}

// ListUserOrders handles GET /api/orders/user/:userId.
func (oc *OrderController) ListUserOrders(ctx *gin.Context) {
	userID := ctx.Param("userId")
	if !canActFor(ctx, userID) {
		_ = ctx.Error(apperrors.Forbidden("Cannot view another user's orders"))
		return
	}

	orders, err := oc.orderService.ListUserOrders(ctx.Request.Context(), userID)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/:id. Other users' orders look missing.
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	orderID := ctx.Param("id")
	order, err := oc.orderService.GetOrder(ctx.Request.Context(), orderID)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	if !canActFor(ctx, order.UserID) {
		_ = ctx.Error(apperrors.OrderNotFound(orderID))
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// StatusOptions handles GET /api/orders/:id/status-options (admin only).
func (oc *OrderController) StatusOptions(ctx *gin.Context) {
	options, err := oc.orderService.StatusOptions(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"orderId": ctx.Param("id"), "options": options})
}

// UpdateStatus handles PUT /api/orders/:id/status (admin only).
func (oc *OrderController) UpdateStatus(ctx *gin.Context) {
	var req models.UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		_ = ctx.Error(apperrors.BadRequest("Invalid request body", err))
		return
	}

	order, err := oc.orderService.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

func canActFor(ctx *gin.Context, userID string) bool {
	if middleware.IsAdmin(ctx) {
		return true
	}
	callerID, err := middleware.GetUserID(ctx)
	return err == nil && callerID == userID
}
