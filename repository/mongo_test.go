package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestClassifyMongoError(t *testing.T) {
	transient := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	unknownCommit := mongo.CommandError{Code: 50, Labels: []string{"UnknownTransactionCommitResult"}}
	plain := mongo.CommandError{Code: 11000, Name: "DuplicateKey"}
	business := errors.New("insufficient stock")

	assert.ErrorIs(t, classifyMongoError(transient), ErrConflict)
	assert.ErrorIs(t, classifyMongoError(fmt.Errorf("update stock: %w", transient)), ErrConflict)
	assert.ErrorIs(t, classifyMongoError(unknownCommit), ErrConflict)
	assert.NotErrorIs(t, classifyMongoError(plain), ErrConflict)
	assert.Same(t, business, classifyMongoError(business))
	assert.NoError(t, classifyMongoError(nil))
}

func TestMongoOrderMapping_PreservesMoney(t *testing.T) {
	sentAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	order := &models.Order{
		ID:     "o1",
		UserID: "u1",
		Items: []models.OrderLineItem{
			{ProductID: "p1", Title: "SSD", UnitPrice: decimal.RequireFromString("4999.99"), Quantity: 2},
		},
		TotalAmount:            decimal.RequireFromString("9999.98"),
		Status:                 models.StatusPacked,
		PaymentMethod:          models.PaymentOnline,
		PaymentStatus:          models.PaymentPaid,
		FollowUpReminderSentAt: &sentAt,
		FollowUpReminderStatus: models.StatusPacked,
	}

	doc, err := toMongoOrder(order)
	require.NoError(t, err)
	back, err := doc.toModel()
	require.NoError(t, err)

	assert.True(t, order.TotalAmount.Equal(back.TotalAmount))
	assert.True(t, order.Items[0].UnitPrice.Equal(back.Items[0].UnitPrice))
	assert.Equal(t, models.StatusPacked, back.FollowUpReminderStatus)
}

// Requires a replica set, e.g. MONGO_URL=mongodb://localhost:27017/?replicaSet=rs0
func TestMongoStore_Integration(t *testing.T) {
	if os.Getenv("RUN_MONGO_INTEGRATION") != "true" {
		t.Skip("set RUN_MONGO_INTEGRATION=true to run against a real MongoDB")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URL")))
	require.NoError(t, err)
	db := client.Database(fmt.Sprintf("storefront_test_%d", time.Now().UnixNano()))
	defer func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	}()

	store := NewMongoStore(client, db)
	require.NoError(t, store.EnsureIndexes(ctx))
	require.NoError(t, store.Products().Create(ctx, &models.Product{
		ID: "p1", Title: "Mouse", Price: decimal.NewFromInt(499), Stock: 3,
	}))

	err = store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.GetProduct(ctx, "p1")
		if err != nil {
			return err
		}
		if err := tx.SetProductStock(ctx, "p1", p.Stock-2, time.Now().UTC()); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, &models.Order{
			ID: "o1", UserID: "u1", Status: models.StatusConfirmed,
			TotalAmount: decimal.NewFromInt(998), OrderedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	p, err := store.Products().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)

	aborted := errors.New("abort")
	err = store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.SetProductStock(ctx, "p1", 0, time.Now().UTC()); err != nil {
			return err
		}
		return aborted
	})
	assert.ErrorIs(t, err, aborted)
	p, _ = store.Products().FindByID(ctx, "p1")
	assert.Equal(t, 1, p.Stock)
}
