package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/sanjay9342/ramesh-computers/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// --- Mock Notifier ---

type mockNotifier struct {
	mu           sync.Mutex
	adminAlerts  []string
	statusEmails []models.OrderStatus
	reminders    []string

	alertErr   error
	statusErr  error
	reminderFn func(order *models.Order) (bool, error)
}

func (m *mockNotifier) SendAdminOrderAlert(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminAlerts = append(m.adminAlerts, order.ID)
	return m.alertErr
}

func (m *mockNotifier) SendCustomerStatusEmail(_ context.Context, _ *models.Order, status models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusEmails = append(m.statusEmails, status)
	return m.statusErr
}

func (m *mockNotifier) SendAdminPendingReminder(_ context.Context, order *models.Order) (bool, error) {
	m.mu.Lock()
	m.reminders = append(m.reminders, order.ID)
	fn := m.reminderFn
	m.mu.Unlock()
	if fn == nil {
		return true, nil
	}
	return fn(order)
}

// --- Mock Publisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, evt models.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return m.err
}

// --- Fake metrics ---

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counts: make(map[string]float64)}
}

func (f *fakeMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	return f.PutMetric(context.Background(), name, 1, types.StandardUnitCount, nil)
}

func (f *fakeMetrics) PutMetric(_ context.Context, name string, value float64, _ types.StandardUnit, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[name] += value
	return nil
}

func (f *fakeMetrics) get(name string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}

// --- Store wrappers ---

// flakyStore fails the first conflicts transactions with ErrConflict before
// handing over to the wrapped store.
type flakyStore struct {
	repository.Store
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (f *flakyStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	f.mu.Lock()
	f.attempts++
	fail := f.conflicts > 0
	if fail {
		f.conflicts--
	}
	f.mu.Unlock()
	if fail {
		return repository.ErrConflict
	}
	return f.Store.RunInTransaction(ctx, fn)
}

// racingStore runs interfere once, just before the first status write, to
// stand in for another admin updating the same order.
type racingStore struct {
	repository.Store
	mu        sync.Mutex
	interfere func()
}

func (r *racingStore) Orders() repository.OrderRepository {
	return racingOrders{OrderRepository: r.Store.Orders(), store: r}
}

type racingOrders struct {
	repository.OrderRepository
	store *racingStore
}

func (o racingOrders) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, updatedAt time.Time) error {
	o.store.mu.Lock()
	fn := o.store.interfere
	o.store.interfere = nil
	o.store.mu.Unlock()
	if fn != nil {
		fn()
	}
	return o.OrderRepository.UpdateStatus(ctx, id, from, to, updatedAt)
}

// untouchableStore fails the test on any datastore access.
type untouchableStore struct {
	repository.Store
	t *testing.T
}

func (u untouchableStore) RunInTransaction(context.Context, func(context.Context, repository.Tx) error) error {
	u.t.Fatal("datastore touched")
	return nil
}

func (u untouchableStore) Orders() repository.OrderRepository {
	u.t.Fatal("datastore touched")
	return nil
}

func (u untouchableStore) Products() repository.ProductRepository {
	u.t.Fatal("datastore touched")
	return nil
}

// --- Helpers ---

func seedProduct(t *testing.T, store repository.Store, id, title string, stock int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.Products().Create(context.Background(), &models.Product{
		ID:        id,
		Title:     title,
		Category:  "laptops",
		Price:     decimal.NewFromInt(1000),
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func seedOrder(t *testing.T, store repository.Store, order models.Order) {
	t.Helper()
	err := store.RunInTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertOrder(ctx, &order)
	})
	require.NoError(t, err)
}

func stockOf(t *testing.T, store repository.Store, id string) int {
	t.Helper()
	p, err := store.Products().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func orderRequest(items ...models.CreateOrderItem) *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		UserID:        "user-1",
		UserEmail:     "customer@example.com",
		Items:         items,
		TotalAmount:   dec("2500.00"),
		PaymentMethod: "cod",
		ShippingAddress: &models.ShippingAddress{
			Name:    "Asha",
			Phone:   "9876543210",
			Street:  "12 MG Road",
			City:    "Bengaluru",
			State:   "Karnataka",
			Pincode: "560001",
		},
	}
}

func item(productID string, qty int) models.CreateOrderItem {
	return models.CreateOrderItem{ProductID: productID, Title: "Item " + productID, Price: dec("500"), Quantity: qty}
}
