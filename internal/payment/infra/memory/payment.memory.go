// Package memory provides an in-memory payment store for tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/k-code-yt/order-saga/internal/payment/domain"
)

type Store struct {
	mu        sync.Mutex
	payments  map[uuid.UUID]*domain.Payment
	processed map[uuid.UUID]string
}

func NewStore() *Store {
	return &Store{
		payments:  make(map[uuid.UUID]*domain.Payment),
		processed: make(map[uuid.UUID]string),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:     s,
		payments:  make(map[uuid.UUID]*domain.Payment),
		processed: make(map[uuid.UUID]string),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, p := range tx.payments {
		s.payments[id] = p
	}
	for id, topic := range tx.processed {
		s.processed[id] = topic
	}
	return nil
}

// PaymentsForOrder returns copies of all payments recorded for the order.
func (s *Store) PaymentsForOrder(orderID uuid.UUID) []*domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var payments []*domain.Payment
	for _, p := range s.payments {
		if p.OrderID == orderID {
			c := *p
			payments = append(payments, &c)
		}
	}
	return payments
}

type memTx struct {
	store     *Store
	payments  map[uuid.UUID]*domain.Payment
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

func (t *memTx) InsertPayment(p *domain.Payment) error {
	c := *p
	t.payments[p.ID] = &c
	return nil
}
