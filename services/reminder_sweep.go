package services

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sanjay9342/ramesh-computers/lock"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/sanjay9342/ramesh-computers/notifier"
	aws_pkg "github.com/sanjay9342/ramesh-computers/pkg/aws"
	"github.com/sanjay9342/ramesh-computers/repository"
	"go.uber.org/zap"
)

const (
	DefaultReminderDelay    = 24 * time.Hour
	DefaultReminderInterval = 15 * time.Minute

	reminderLockKey = "reminder-sweep"
	reminderLockTTL = 5 * time.Minute
)

// remindableStatuses are the statuses an order can sit in unattended.
var remindableStatuses = []models.OrderStatus{models.StatusConfirmed, models.StatusPacked}

// ReminderSweeper emails the admin about orders that have not moved past
// packed within the reminder delay. Each order is reminded about once.
type ReminderSweeper struct {
	orders   repository.OrderRepository
	notifier notifier.Notifier
	locker   lock.Locker
	metrics  MetricsRecorder
	delay    time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewReminderSweeper(
	orders repository.OrderRepository,
	n notifier.Notifier,
	locker lock.Locker,
	metrics MetricsRecorder,
	delay time.Duration,
	logger *zap.Logger,
) *ReminderSweeper {
	if delay <= 0 {
		delay = DefaultReminderDelay
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &ReminderSweeper{
		orders:   orders,
		notifier: n,
		locker:   locker,
		metrics:  metrics,
		delay:    delay,
		now:      time.Now,
		logger:   logger,
	}
}

// dueForReminder reports whether order has waited at least delay in a
// remindable status without a reminder.
func dueForReminder(order *models.Order, now time.Time, delay time.Duration) bool {
	if order.Status != models.StatusConfirmed && order.Status != models.StatusPacked {
		return false
	}
	if order.FollowUpReminderSentAt != nil || order.OrderedAt.IsZero() {
		return false
	}
	return now.Sub(order.OrderedAt) >= delay
}

// RunOnce performs one sweep and returns how many reminders were sent. A
// failure on one order is logged and does not stop the others. When another
// instance holds the sweep lock the run is skipped and reports zero.
func (s *ReminderSweeper) RunOnce(ctx context.Context) (int, error) {
	release, ok, err := s.locker.TryLock(ctx, reminderLockKey, reminderLockTTL)
	if err != nil {
		return 0, err
	}
	if !ok {
		s.logger.Debug("Reminder sweep already running elsewhere")
		return 0, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release reminder sweep lock", zap.Error(err))
		}
	}()

	candidates, err := s.orders.FindByStatuses(ctx, remindableStatuses)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	sent := 0
	for i := range candidates {
		order := &candidates[i]
		if !dueForReminder(order, now, s.delay) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		ok, err := s.notifier.SendAdminPendingReminder(ctx, order)
		if err != nil {
			s.logger.Error("Failed sending pending-order reminder", zap.String("order_id", order.ID), zap.Error(err))
			s.record(ctx, aws_pkg.MetricNotificationFailed, map[string]string{"Kind": "pending_reminder"})
			continue
		}
		if !ok {
			continue
		}

		if err := s.orders.MarkReminderSent(ctx, order.ID, order.Status, s.now().UTC()); err != nil {
			s.logger.Error("Failed recording pending-order reminder", zap.String("order_id", order.ID), zap.Error(err))
			continue
		}
		sent++
	}

	if sent > 0 {
		s.logger.Info("Pending-order reminders sent", zap.Int("count", sent))
		if s.metrics != nil {
			if err := s.metrics.PutMetric(ctx, aws_pkg.MetricRemindersSent, float64(sent), types.StandardUnitCount, nil); err != nil {
				s.logger.Debug("Failed to record metric", zap.String("metric", aws_pkg.MetricRemindersSent), zap.Error(err))
			}
		}
	}
	return sent, nil
}

// Start sweeps every interval until ctx is done. The first sweep runs
// immediately.
func (s *ReminderSweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReminderInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Reminder sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *ReminderSweeper) record(ctx context.Context, name string, dims map[string]string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordCount(ctx, name, dims); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}
