package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *MemoryStore, id string, stock int) {
	t.Helper()
	require.NoError(t, s.Products().Create(context.Background(), &models.Product{
		ID:    id,
		Title: "Product " + id,
		Price: decimal.NewFromInt(100),
		Stock: stock,
	}))
}

func TestMemoryStore_CommitAppliesAllWrites(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()
	now := time.Now().UTC()

	err := s.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.GetProduct(ctx, "p1")
		if err != nil {
			return err
		}
		if err := tx.SetProductStock(ctx, "p1", p.Stock-2, now); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, &models.Order{ID: "o1", UserID: "u1", OrderedAt: now})
	})
	require.NoError(t, err)

	p, err := s.Products().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
	assert.True(t, p.UpdatedAt.Equal(now))

	o, err := s.Orders().FindByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "u1", o.UserID)
}

func TestMemoryStore_ErrorFromFnDiscardsWrites(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.SetProductStock(ctx, "p1", 0, time.Now()))
		require.NoError(t, tx.InsertOrder(ctx, &models.Order{ID: "o1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, _ := s.Products().FindByID(ctx, "p1")
	assert.Equal(t, 5, p.Stock)
	_, err = s.Orders().FindByID(ctx, "o1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConcurrentWriteCausesConflict(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.GetProduct(ctx, "p1")
		require.NoError(t, err)

		// an admin edit lands between the read and the commit
		edited := *p
		edited.Stock = 1
		require.NoError(t, s.Products().Update(ctx, &edited))

		return tx.SetProductStock(ctx, "p1", p.Stock-1, time.Now())
	})
	assert.ErrorIs(t, err, ErrConflict)

	p, _ := s.Products().FindByID(ctx, "p1")
	assert.Equal(t, 1, p.Stock)
}

func TestMemoryStore_ReadYourWrites(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 5)

	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.SetProductStock(ctx, "p1", 2, time.Now()))
		p, err := tx.GetProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 2, p.Stock)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_RejectsNegativeStock(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 1)

	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SetProductStock(ctx, "p1", -1, time.Now())
	})
	assert.Error(t, err)
}

func TestMemoryOrders_ListingsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		for i, id := range []string{"a", "b", "c"} {
			status := models.StatusConfirmed
			if id == "b" {
				status = models.StatusShipped
			}
			if err := tx.InsertOrder(ctx, &models.Order{
				ID: id, UserID: "u" + id[:1], Status: status,
				OrderedAt: base.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	all, err := s.Orders().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	confirmed, err := s.Orders().FindByStatuses(ctx, []models.OrderStatus{models.StatusConfirmed})
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)

	mine, err := s.Orders().FindByUserID(ctx, "ub")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "b", mine[0].ID)
}

func TestMemoryOrders_MarkReminderSent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertOrder(ctx, &models.Order{ID: "o1", Status: models.StatusPacked})
	}))

	sentAt := time.Now().UTC()
	require.NoError(t, s.Orders().MarkReminderSent(ctx, "o1", models.StatusPacked, sentAt))

	o, err := s.Orders().FindByID(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, o.FollowUpReminderSentAt)
	assert.True(t, o.FollowUpReminderSentAt.Equal(sentAt))
	assert.Equal(t, models.StatusPacked, o.FollowUpReminderStatus)
	assert.Equal(t, models.StatusPacked, o.Status)

	assert.ErrorIs(t, s.Orders().MarkReminderSent(ctx, "missing", models.StatusPacked, sentAt), ErrNotFound)
}

func TestMemoryOrders_UpdateStatusComparesPreviousStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertOrder(ctx, &models.Order{ID: "o1", Status: models.StatusShipped, OrderedAt: time.Now()})
	}))

	require.NoError(t, s.Orders().UpdateStatus(ctx, "o1", models.StatusShipped, models.StatusDelivered, time.Now()))

	// a second admin still holding the shipped view loses
	err := s.Orders().UpdateStatus(ctx, "o1", models.StatusShipped, models.StatusCancelled, time.Now())
	assert.ErrorIs(t, err, ErrConflict)

	o, err := s.Orders().FindByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, o.Status)

	err = s.Orders().UpdateStatus(ctx, "missing", models.StatusShipped, models.StatusDelivered, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}
