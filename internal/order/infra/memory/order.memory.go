// Package memory provides an in-memory order store with the same
// transactional contract as the Postgres store. It backs tests and
// local experiments that should not need a database.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/k-code-yt/order-saga/internal/order/domain"
)

type Store struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	processed map[uuid.UUID]string
}

func NewStore() *Store {
	return &Store{
		orders:    make(map[uuid.UUID]*domain.Order),
		processed: make(map[uuid.UUID]string),
	}
}

// WithinTx serializes writers under one mutex. Mutations are applied to
// copies and only swapped in when fn succeeds, mirroring commit/rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:     s,
		orders:    make(map[uuid.UUID]*domain.Order),
		processed: make(map[uuid.UUID]string),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, o := range tx.orders {
		s.orders[id] = o
	}
	for id, topic := range tx.processed {
		s.processed[id] = topic
	}
	return nil
}

func (s *Store) OrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(o), nil
}

func (s *Store) OrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []*domain.Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			orders = append(orders, clone(o))
		}
	}
	return orders, nil
}

type memTx struct {
	store     *Store
	orders    map[uuid.UUID]*domain.Order
	processed map[uuid.UUID]string
}

func (t *memTx) EventProcessed(eventID uuid.UUID) (bool, error) {
	_, ok := t.store.processed[eventID]
	return ok, nil
}

func (t *memTx) MarkProcessed(eventID uuid.UUID, topic string) error {
	t.processed[eventID] = topic
	return nil
}

func (t *memTx) InsertOrder(o *domain.Order) error {
	t.orders[o.ID] = clone(o)
	return nil
}

func (t *memTx) OrderByID(id uuid.UUID) (*domain.Order, error) {
	if o, ok := t.orders[id]; ok {
		return clone(o), nil
	}
	if o, ok := t.store.orders[id]; ok {
		return clone(o), nil
	}
	return nil, domain.ErrNotFound
}

func (t *memTx) UpdateStatus(o *domain.Order) error {
	stored, err := t.OrderByID(o.ID)
	if err != nil {
		return err
	}
	stored.Status = o.Status
	stored.FailureReason = o.FailureReason
	stored.UpdatedAt = o.UpdatedAt
	t.orders[stored.ID] = stored
	return nil
}

func clone(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.Item(nil), o.Items...)
	return &c
}
