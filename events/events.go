package events

import (
	"context"
	"errors"
	"time"

	"github.com/sanjay9342/ramesh-computers/models"
)

// Publisher delivers order domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt models.OrderEvent) error
}

// NewOrderEvent builds an event snapshot of order.
func NewOrderEvent(eventType string, order *models.Order, previous models.OrderStatus) models.OrderEvent {
	count := 0
	for _, it := range order.Items {
		count += it.Quantity
	}
	return models.OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Previous:   previous,
		Total:      order.TotalAmount,
		ItemCount:  count,
		OccurredAt: time.Now().UTC(),
	}
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt models.OrderEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, models.OrderEvent) error { return nil }
