package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/google/uuid"
	"github.com/sanjay9342/ramesh-computers/common/apperrors"
	"github.com/sanjay9342/ramesh-computers/events"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/sanjay9342/ramesh-computers/notifier"
	aws_pkg "github.com/sanjay9342/ramesh-computers/pkg/aws"
	"github.com/sanjay9342/ramesh-computers/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MetricsRecorder is the part of the CloudWatch client the services use.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	PutMetric(ctx context.Context, metricName string, value float64, unit types.StandardUnit, dimensions map[string]string) error
}

// StatusPolicy decides which status changes an admin may make.
type StatusPolicy string

const (
	// StatusPolicyStrict only allows moves forward in the fulfilment
	// sequence, or to cancelled from a non-terminal status.
	StatusPolicyStrict StatusPolicy = "strict"
	// StatusPolicyPermissive allows any known status.
	StatusPolicyPermissive StatusPolicy = "permissive"
)

func ParseStatusPolicy(raw string) (StatusPolicy, error) {
	switch StatusPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StatusPolicyStrict:
		return StatusPolicyStrict, nil
	case StatusPolicyPermissive:
		return StatusPolicyPermissive, nil
	default:
		return "", fmt.Errorf("unknown order status policy %q", raw)
	}
}

type OrderServiceConfig struct {
	Retry        RetryPolicy
	StatusPolicy StatusPolicy
	// NotifyTimeout bounds each best-effort email or event delivery.
	NotifyTimeout time.Duration
	Clock         func() time.Time
}

// OrderService defines the order placement and fulfilment operations.
type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, req *models.UpdateStatusRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]models.Order, error)
	StatusOptions(ctx context.Context, orderID string) ([]models.OrderStatus, error)
}

type orderServiceImpl struct {
	store     repository.Store
	notifier  notifier.Notifier
	publisher events.Publisher
	metrics   MetricsRecorder
	cfg       OrderServiceConfig
	logger    *zap.Logger
}

func NewOrderService(
	store repository.Store,
	n notifier.Notifier,
	publisher events.Publisher,
	metrics MetricsRecorder,
	cfg OrderServiceConfig,
	logger *zap.Logger,
) OrderService {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.StatusPolicy == "" {
		cfg.StatusPolicy = StatusPolicyStrict
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &orderServiceImpl{
		store:     store,
		notifier:  n,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// productDemand is the total quantity one order takes of a product.
type productDemand struct {
	ProductID string
	Title     string
	Quantity  int
}

// coalesceItems sums the quantities of lines naming the same product, keeping
// the order in which products first appear.
func coalesceItems(items []models.OrderLineItem) []productDemand {
	index := make(map[string]int, len(items))
	demand := make([]productDemand, 0, len(items))
	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			demand[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(demand)
		demand = append(demand, productDemand{ProductID: it.ProductID, Title: it.Title, Quantity: it.Quantity})
	}
	return demand
}

// validateCreateOrder checks the request shape without touching storage.
func validateCreateOrder(req *models.CreateOrderRequest) (models.PaymentMethod, []models.OrderLineItem, error) {
	if req == nil {
		return "", nil, apperrors.Validation([]apperrors.FieldError{{Field: "body", Message: "is required"}})
	}
	fields := validateStruct(req)

	method, ok := models.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		fields = append(fields, apperrors.FieldError{Field: "paymentMethod", Message: "must be cash_on_delivery (cod) or online (razorpay)"})
	}
	if req.TotalAmount != nil && req.TotalAmount.IsNegative() {
		fields = append(fields, apperrors.FieldError{Field: "totalAmount", Message: "must not be negative"})
	}

	lines := make([]models.OrderLineItem, 0, len(req.Items))
	for i, it := range req.Items {
		id := it.ResolvedProductID()
		if id == "" {
			fields = append(fields, apperrors.FieldError{Field: fmt.Sprintf("items[%d].productId", i), Message: "is required"})
		}
		if it.Price != nil && it.Price.IsNegative() {
			fields = append(fields, apperrors.FieldError{Field: fmt.Sprintf("items[%d].price", i), Message: "must not be negative"})
		}
		price := decimal.Zero
		if it.Price != nil {
			price = *it.Price
		}
		lines = append(lines, models.OrderLineItem{
			ProductID: id,
			Title:     it.Title,
			Image:     it.Image,
			UnitPrice: price,
			Quantity:  it.Quantity,
		})
	}

	if len(fields) > 0 {
		return "", nil, apperrors.Validation(fields)
	}
	return method, lines, nil
}

// CreateOrder places an order. All stock checks happen before any write, and
// the stock decrements and the order insert commit together or not at all.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	method, lines, err := validateCreateOrder(req)
	if err != nil {
		s.recordCount(ctx, aws_pkg.MetricOrdersRejected, map[string]string{"Reason": string(apperrors.KindValidation)})
		return nil, err
	}

	now := s.cfg.Clock().UTC()
	order := &models.Order{
		ID:              uuid.NewString(),
		UserID:          strings.TrimSpace(req.UserID),
		UserEmail:       strings.TrimSpace(req.UserEmail),
		Items:           lines,
		TotalAmount:     *req.TotalAmount,
		Status:          models.StatusConfirmed,
		PaymentMethod:   method,
		PaymentStatus:   method.InitialPaymentStatus(),
		PaymentID:       strings.TrimSpace(req.PaymentID),
		ShippingAddress: req.ShippingAddress.Trimmed(),
		OrderedAt:       now,
		UpdatedAt:       now,
	}
	demand := coalesceItems(lines)

	err = s.cfg.Retry.Do(ctx,
		func(ctx context.Context) error {
			return s.store.RunInTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
				return placeOrder(ctx, tx, order, demand, now)
			})
		},
		isRetryable,
		func(attempt int, delay time.Duration, err error) {
			s.logger.Warn("Order transaction conflict, retrying",
				zap.String("order_id", order.ID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err))
			s.recordCount(ctx, aws_pkg.MetricOrderTxRetries, nil)
		},
	)
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			s.logger.Info("Order rejected",
				zap.String("user_id", order.UserID),
				zap.String("reason", string(appErr.Kind)),
				zap.Any("details", appErr.Details))
			s.recordCount(ctx, aws_pkg.MetricOrdersRejected, map[string]string{"Reason": string(appErr.Kind)})
			return nil, appErr
		}
		s.logger.Error("Order transaction failed", zap.String("order_id", order.ID), zap.Error(err))
		s.recordCount(ctx, aws_pkg.MetricOrdersRejected, map[string]string{"Reason": string(apperrors.KindTransientStorage)})
		return nil, apperrors.TransientStorage(err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("lines", len(order.Items)),
		zap.String("total", order.TotalAmount.String()))
	s.recordCount(ctx, aws_pkg.MetricOrdersCreated, map[string]string{"PaymentMethod": string(order.PaymentMethod)})
	units := 0
	for _, d := range demand {
		units += d.Quantity
	}
	s.putMetric(ctx, aws_pkg.MetricStockDecremented, float64(units))

	s.afterOrderCreated(ctx, order)
	return order, nil
}

// placeOrder is one transaction attempt: read and check every product, then
// write every decrement and the order.
func placeOrder(ctx context.Context, tx repository.Tx, order *models.Order, demand []productDemand, now time.Time) error {
	remaining := make([]int, len(demand))
	for i, d := range demand {
		product, err := tx.GetProduct(ctx, d.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ProductNotFound(d.ProductID, d.Title)
		}
		if err != nil {
			return fmt.Errorf("read product %s: %w", d.ProductID, err)
		}
		if product.Stock < d.Quantity {
			title := product.Title
			if title == "" {
				title = d.Title
			}
			return apperrors.InsufficientStock(d.ProductID, title, product.Stock, d.Quantity)
		}
		remaining[i] = product.Stock - d.Quantity
	}

	for i, d := range demand {
		if err := tx.SetProductStock(ctx, d.ProductID, remaining[i], now); err != nil {
			return fmt.Errorf("update stock of %s: %w", d.ProductID, err)
		}
	}
	if err := tx.InsertOrder(ctx, order); err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	return nil
}

func isRetryable(err error) bool {
	return errors.Is(err, repository.ErrConflict)
}

func (s *orderServiceImpl) afterOrderCreated(ctx context.Context, order *models.Order) {
	ctx, cancel := s.detached(ctx)
	defer cancel()

	if s.notifier != nil {
		if err := s.notifier.SendAdminOrderAlert(ctx, order); err != nil {
			s.notifyFailed(ctx, "admin_order_alert", order.ID, err)
		}
		if err := s.notifier.SendCustomerStatusEmail(ctx, order, order.Status); err != nil {
			s.notifyFailed(ctx, "customer_status", order.ID, err)
		}
	}
	if err := s.publisher.Publish(ctx, events.NewOrderEvent(models.EventOrderCreated, order, "")); err != nil {
		s.notifyFailed(ctx, "order_event", order.ID, err)
	}
}

// UpdateStatus moves an order to a new status and emails the customer.
func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID string, req *models.UpdateStatusRequest) (*models.Order, error) {
	if req == nil {
		return nil, apperrors.Validation([]apperrors.FieldError{{Field: "status", Message: "is required"}})
	}
	status := models.OrderStatus(strings.TrimSpace(req.Status))
	if !status.IsValid() {
		return nil, apperrors.InvalidStatus(string(status), statusNames(models.AllStatuses()))
	}

	// the write only lands if the status read is still current; a concurrent
	// change sends the loop back to re-read and re-check
	var (
		order    *models.Order
		previous models.OrderStatus
		now      time.Time
	)
	err := s.cfg.Retry.Do(ctx,
		func(ctx context.Context) error {
			var err error
			order, err = s.findOrder(ctx, orderID)
			if err != nil {
				return err
			}
			previous = order.Status
			if s.cfg.StatusPolicy == StatusPolicyStrict && !models.CanTransition(previous, status) {
				return apperrors.InvalidTransition(string(previous), string(status))
			}
			now = s.cfg.Clock().UTC()
			return s.store.Orders().UpdateStatus(ctx, orderID, previous, status, now)
		},
		isRetryable,
		func(attempt int, _ time.Duration, _ error) {
			s.logger.Warn("Order status changed concurrently, retrying",
				zap.String("order_id", orderID),
				zap.Int("attempt", attempt))
		},
	)
	if err != nil {
		var appErr *apperrors.Error
		switch {
		case errors.As(err, &appErr):
			return nil, appErr
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.OrderNotFound(orderID)
		}
		s.logger.Error("Failed to update order status", zap.String("order_id", orderID), zap.Error(err))
		return nil, apperrors.TransientStorage(err)
	}
	order.Status = status
	order.UpdatedAt = now

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	s.recordCount(ctx, aws_pkg.MetricOrderStatusChanged, map[string]string{"Status": string(status)})

	s.afterStatusChanged(ctx, order, previous)
	return order, nil
}

func (s *orderServiceImpl) afterStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) {
	ctx, cancel := s.detached(ctx)
	defer cancel()

	if s.notifier != nil {
		if err := s.notifier.SendCustomerStatusEmail(ctx, order, order.Status); err != nil {
			s.notifyFailed(ctx, "customer_status", order.ID, err)
		}
	}
	if err := s.publisher.Publish(ctx, events.NewOrderEvent(models.EventOrderStatusUpdated, order, previous)); err != nil {
		s.notifyFailed(ctx, "order_event", order.ID, err)
	}
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.findOrder(ctx, orderID)
}

func (s *orderServiceImpl) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.store.Orders().FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, apperrors.TransientStorage(err)
	}
	return orders, nil
}

func (s *orderServiceImpl) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.Validation([]apperrors.FieldError{{Field: "userId", Message: "is required"}})
	}
	orders, err := s.store.Orders().FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list user orders", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.TransientStorage(err)
	}
	return orders, nil
}

// StatusOptions lists the statuses an admin may move the order to next.
func (s *orderServiceImpl) StatusOptions(ctx context.Context, orderID string) ([]models.OrderStatus, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.cfg.StatusPolicy == StatusPolicyPermissive {
		return models.AllStatuses(), nil
	}
	return models.NextStatuses(order.Status), nil
}

func (s *orderServiceImpl) findOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.OrderNotFound(orderID)
	}
	if err != nil {
		s.logger.Error("Failed to load order", zap.String("order_id", orderID), zap.Error(err))
		return nil, apperrors.TransientStorage(err)
	}
	return order, nil
}

// detached keeps request values but survives the client going away, so a
// committed order still gets its notifications.
func (s *orderServiceImpl) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
}

func (s *orderServiceImpl) notifyFailed(ctx context.Context, kind, orderID string, err error) {
	s.logger.Warn("Order notification failed",
		zap.String("kind", kind),
		zap.String("order_id", orderID),
		zap.Error(err))
	s.recordCount(ctx, aws_pkg.MetricNotificationFailed, map[string]string{"Kind": kind})
}

func (s *orderServiceImpl) recordCount(ctx context.Context, name string, dims map[string]string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordCount(ctx, name, dims); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func (s *orderServiceImpl) putMetric(ctx context.Context, name string, value float64) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.PutMetric(ctx, name, value, types.StandardUnitCount, nil); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func statusNames(statuses []models.OrderStatus) []string {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return names
}
