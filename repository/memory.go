package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sanjay9342/ramesh-computers/models"
)

type memProduct struct {
	product models.Product
	version uint64
}

// MemoryStore keeps products and orders in process memory. Transactions are
// serialised and validate the versions of every product they read at commit,
// so a write made outside a transaction in the meantime yields ErrConflict.
// Used for local development and tests.
type MemoryStore struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	products map[string]*memProduct
	orders   map[string]models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*memProduct),
		orders:   make(map[string]models.Order),
	}
}

func (s *MemoryStore) Products() ProductRepository { return memoryProducts{s} }
func (s *MemoryStore) Orders() OrderRepository     { return memoryOrders{s} }
func (s *MemoryStore) Close(context.Context) error { return nil }

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{
		store:  s,
		reads:  make(map[string]uint64),
		stock:  make(map[string]stockWrite),
		orders: nil,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

type stockWrite struct {
	stock     int
	updatedAt time.Time
}

type memoryTx struct {
	store  *MemoryStore
	reads  map[string]uint64
	stock  map[string]stockWrite
	orders []models.Order
}

func (tx *memoryTx) GetProduct(_ context.Context, id string) (*models.Product, error) {
	tx.store.mu.RLock()
	mp, ok := tx.store.products[id]
	var p models.Product
	var version uint64
	if ok {
		p = cloneProduct(mp.product)
		version = mp.version
	}
	tx.store.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if _, seen := tx.reads[id]; !seen {
		tx.reads[id] = version
	}
	if w, written := tx.stock[id]; written {
		p.Stock = w.stock
		p.UpdatedAt = w.updatedAt
	}
	return &p, nil
}

func (tx *memoryTx) SetProductStock(ctx context.Context, id string, stock int, updatedAt time.Time) error {
	if stock < 0 {
		return fmt.Errorf("set stock for %s: negative stock %d", id, stock)
	}
	if _, seen := tx.reads[id]; !seen {
		if _, err := tx.GetProduct(ctx, id); err != nil {
			return err
		}
	}
	tx.stock[id] = stockWrite{stock: stock, updatedAt: updatedAt}
	return nil
}

func (tx *memoryTx) InsertOrder(_ context.Context, order *models.Order) error {
	tx.orders = append(tx.orders, cloneOrder(*order))
	return nil
}

func (tx *memoryTx) commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, version := range tx.reads {
		mp, ok := s.products[id]
		if !ok || mp.version != version {
			return fmt.Errorf("product %s changed during transaction: %w", id, ErrConflict)
		}
	}
	for _, o := range tx.orders {
		if _, exists := s.orders[o.ID]; exists {
			return fmt.Errorf("order %s already exists", o.ID)
		}
	}

	for id, w := range tx.stock {
		mp := s.products[id]
		mp.product.Stock = w.stock
		mp.product.UpdatedAt = w.updatedAt
		mp.version++
	}
	for _, o := range tx.orders {
		s.orders[o.ID] = o
	}
	return nil
}

type memoryProducts struct{ s *MemoryStore }

func (r memoryProducts) FindByID(_ context.Context, id string) (*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	mp, ok := r.s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := cloneProduct(mp.product)
	return &p, nil
}

func (r memoryProducts) FindAll(_ context.Context) ([]models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Product, 0, len(r.s.products))
	for _, mp := range r.s.products {
		out = append(out, cloneProduct(mp.product))
	}
	return out, nil
}

func (r memoryProducts) Create(_ context.Context, product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	r.s.products[product.ID] = &memProduct{product: cloneProduct(*product), version: 1}
	return nil
}

func (r memoryProducts) Update(_ context.Context, product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	mp, ok := r.s.products[product.ID]
	if !ok {
		return ErrNotFound
	}
	mp.product = cloneProduct(*product)
	mp.version++
	return nil
}

func (r memoryProducts) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

type memoryOrders struct{ s *MemoryStore }

func (r memoryOrders) FindByID(_ context.Context, id string) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r memoryOrders) FindAll(_ context.Context) ([]models.Order, error) {
	return r.filter(func(models.Order) bool { return true }), nil
}

func (r memoryOrders) FindByUserID(_ context.Context, userID string) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (r memoryOrders) FindByStatuses(_ context.Context, statuses []models.OrderStatus) ([]models.Order, error) {
	want := make(map[models.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return r.filter(func(o models.Order) bool { return want[o.Status] }), nil
}

func (r memoryOrders) filter(keep func(models.Order) bool) []models.Order {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Order, 0)
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sortNewestFirst(out)
	return out
}

func (r memoryOrders) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrConflict
	}
	o.Status = to
	o.UpdatedAt = updatedAt
	r.s.orders[id] = o
	return nil
}

func (r memoryOrders) MarkReminderSent(_ context.Context, id string, status models.OrderStatus, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.FollowUpReminderSentAt = &sentAt
	o.FollowUpReminderStatus = status
	o.UpdatedAt = sentAt
	r.s.orders[id] = o
	return nil
}

func cloneProduct(p models.Product) models.Product {
	if p.Images != nil {
		p.Images = append([]string(nil), p.Images...)
	}
	if p.Specs != nil {
		specs := make(map[string]any, len(p.Specs))
		for k, v := range p.Specs {
			specs[k] = v
		}
		p.Specs = specs
	}
	if p.DiscountPrice != nil {
		d := *p.DiscountPrice
		p.DiscountPrice = &d
	}
	return p
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderLineItem(nil), o.Items...)
	if o.FollowUpReminderSentAt != nil {
		t := *o.FollowUpReminderSentAt
		o.FollowUpReminderSentAt = &t
	}
	return o
}
