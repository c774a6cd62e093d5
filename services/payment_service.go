package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sanjay9342/ramesh-computers/common/apperrors"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/sanjay9342/ramesh-computers/payment"
	aws_pkg "github.com/sanjay9342/ramesh-computers/pkg/aws"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentGateway is the online payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*models.RemoteOrder, error)
	VerifyPayment(gatewayOrderID, gatewayPaymentID, signature string) (bool, error)
}

// PaymentService creates gateway orders for checkout and verifies the
// signature the gateway hands back after payment.
type PaymentService interface {
	CreateRemoteOrder(ctx context.Context, req *models.CreateRemoteOrderRequest) (*models.RemoteOrder, error)
	VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest) error
}

type paymentServiceImpl struct {
	gateway PaymentGateway
	metrics MetricsRecorder
	now     func() time.Time
	logger  *zap.Logger
}

func NewPaymentService(gateway PaymentGateway, metrics MetricsRecorder, logger *zap.Logger) PaymentService {
	return &paymentServiceImpl{gateway: gateway, metrics: metrics, now: time.Now, logger: logger}
}

func (s *paymentServiceImpl) CreateRemoteOrder(ctx context.Context, req *models.CreateRemoteOrderRequest) (*models.RemoteOrder, error) {
	if req == nil || req.Amount == nil || !req.Amount.IsPositive() {
		return nil, apperrors.Validation([]apperrors.FieldError{{Field: "amount", Message: "must be greater than 0"}})
	}

	receipt := fmt.Sprintf("rcpt_%d", s.now().UnixMilli())
	remote, err := s.gateway.CreateOrder(ctx, *req.Amount, receipt)
	if errors.Is(err, payment.ErrNotConfigured) {
		s.logger.Error("Payment gateway keys missing")
		return nil, apperrors.PaymentNotConfigured(err)
	}
	if err != nil {
		s.logger.Error("Failed to create gateway order", zap.String("receipt", receipt), zap.Error(err))
		return nil, apperrors.PaymentGateway(err)
	}

	s.logger.Info("Gateway order created",
		zap.String("gateway_order_id", remote.ID),
		zap.Int64("amount", remote.Amount),
		zap.String("currency", remote.Currency))
	return remote, nil
}

// VerifyPayment returns nil only when the signature matches.
func (s *paymentServiceImpl) VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest) error {
	if req == nil {
		return apperrors.Validation([]apperrors.FieldError{{Field: "body", Message: "is required"}})
	}
	if fields := validateStruct(req); len(fields) > 0 {
		return apperrors.Validation(fields)
	}

	ok, err := s.gateway.VerifyPayment(req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
	if err != nil {
		s.logger.Error("Payment verification unavailable", zap.Error(err))
		return apperrors.PaymentNotConfigured(err)
	}
	if !ok {
		s.logger.Warn("Payment signature mismatch",
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.String("gateway_payment_id", req.GatewayPaymentID))
		s.record(ctx, aws_pkg.MetricPaymentsRejected)
		return apperrors.InvalidSignature()
	}

	s.logger.Info("Payment verified",
		zap.String("gateway_order_id", req.GatewayOrderID),
		zap.String("gateway_payment_id", req.GatewayPaymentID))
	s.record(ctx, aws_pkg.MetricPaymentsVerified)
	return nil
}

func (s *paymentServiceImpl) record(ctx context.Context, name string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordCount(ctx, name, nil); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}
