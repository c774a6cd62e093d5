package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sanjay9342/ramesh-computers/common/apperrors"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/sanjay9342/ramesh-computers/services"
)

type PaymentController struct {
	paymentService services.PaymentService
}

func NewPaymentController(paymentService services.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paymentService}
}

// CreateRemoteOrder handles POST /api/orders/payment/razorpay-order.
func (pc *PaymentController) CreateRemoteOrder(ctx *gin.Context) {
	var req models.CreateRemoteOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		_ = ctx.Error(apperrors.BadRequest("Valid amount is required", err))
		return
	}

	remote, err := pc.paymentService.CreateRemoteOrder(ctx.Request.Context(), &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, remote)
}

// VerifyPayment handles POST /api/orders/payment/verify.
func (pc *PaymentController) VerifyPayment(ctx *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		_ = ctx.Error(apperrors.BadRequest("Payment verification details are required", err))
		return
	}

	if err := pc.paymentService.VerifyPayment(ctx.Request.Context(), &req); err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"verified": true})
}
