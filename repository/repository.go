package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sanjay9342/ramesh-computers/models"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict marks a transaction that lost a concurrent race or hit a
	// transient datastore condition. The whole transaction may be retried.
	ErrConflict = errors.New("transaction conflict")
)

// ProductRepository covers catalogue reads and admin writes outside transactions.
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindAll(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}

// OrderRepository covers order reads and the single-field updates made after
// an order exists. Orders are only ever inserted through a Tx.
type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	FindByUserID(ctx context.Context, userID string) ([]models.Order, error)
	FindByStatuses(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error)
	// UpdateStatus moves an order from status from to status to. It returns
	// ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, updatedAt time.Time) error
	MarkReminderSent(ctx context.Context, id string, status models.OrderStatus, sentAt time.Time) error
}

// Tx is the view of the datastore inside one atomic unit. Writes become
// visible only if the surrounding RunInTransaction commits.
type Tx interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	SetProductStock(ctx context.Context, id string, stock int, updatedAt time.Time) error
	InsertOrder(ctx context.Context, order *models.Order) error
}

// Transactor runs fn as a single transaction attempt. An error returned by fn
// aborts the transaction and is returned unchanged. Commit failures caused by
// concurrent writers are returned wrapping ErrConflict. Retrying is the
// caller's decision.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store bundles everything the services need from a datastore.
type Store interface {
	Transactor
	Products() ProductRepository
	Orders() OrderRepository
	Close(ctx context.Context) error
}
