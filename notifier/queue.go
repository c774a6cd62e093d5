package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sanjay9342/ramesh-computers/models"
	"go.uber.org/zap"
)

// MessageQueue accepts a serialized job, e.g. an SQS queue.
type MessageQueue interface {
	SendMessage(ctx context.Context, body string) error
}

const (
	jobAdminOrderAlert = "admin_order_alert"
	jobCustomerStatus  = "customer_status"
	jobPendingReminder = "pending_reminder"
)

type job struct {
	Kind   string             `json:"kind"`
	Order  models.Order       `json:"order"`
	Status models.OrderStatus `json:"status,omitempty"`
}

// QueuedNotifier defers delivery to a queue consumer so request handling
// never waits on the mail provider.
type QueuedNotifier struct {
	queue MessageQueue
}

func NewQueuedNotifier(queue MessageQueue) *QueuedNotifier {
	return &QueuedNotifier{queue: queue}
}

func (q *QueuedNotifier) SendAdminOrderAlert(ctx context.Context, order *models.Order) error {
	return q.enqueue(ctx, job{Kind: jobAdminOrderAlert, Order: *order})
}

func (q *QueuedNotifier) SendCustomerStatusEmail(ctx context.Context, order *models.Order, status models.OrderStatus) error {
	if order.UserEmail == "" {
		return nil
	}
	return q.enqueue(ctx, job{Kind: jobCustomerStatus, Order: *order, Status: status})
}

// SendAdminPendingReminder counts a reminder as sent once it is queued.
func (q *QueuedNotifier) SendAdminPendingReminder(ctx context.Context, order *models.Order) (bool, error) {
	if err := q.enqueue(ctx, job{Kind: jobPendingReminder, Order: *order}); err != nil {
		return false, err
	}
	return true, nil
}

func (q *QueuedNotifier) enqueue(ctx context.Context, j job) error {
	body, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode %s job: %w", j.Kind, err)
	}
	if err := q.queue.SendMessage(ctx, string(body)); err != nil {
		return fmt.Errorf("enqueue %s job for order %s: %w", j.Kind, j.Order.ID, err)
	}
	return nil
}

// Dispatcher consumes queued jobs and delivers them through target.
type Dispatcher struct {
	target Notifier
	logger *zap.Logger
}

func NewDispatcher(target Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{target: target, logger: logger}
}

// Handle processes one queue message. Returning an error leaves the message
// on the queue for redelivery; malformed messages are dropped.
func (d *Dispatcher) Handle(ctx context.Context, body string) error {
	var j job
	if err := json.Unmarshal([]byte(body), &j); err != nil {
		d.logger.Error("Dropping malformed notification job", zap.Error(err))
		return nil
	}

	switch j.Kind {
	case jobAdminOrderAlert:
		return d.target.SendAdminOrderAlert(ctx, &j.Order)
	case jobCustomerStatus:
		return d.target.SendCustomerStatusEmail(ctx, &j.Order, j.Status)
	case jobPendingReminder:
		_, err := d.target.SendAdminPendingReminder(ctx, &j.Order)
		return err
	default:
		d.logger.Warn("Dropping notification job of unknown kind", zap.String("kind", j.Kind))
		return nil
	}
}
