// Package memory provides an in-memory product store for tests and local
// experiments.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/k-code-yt/order-saga/internal/inventory/domain"
)

type Store struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*domain.Product
	processed map[uuid.UUID]string
}

func NewStore(products ...*domain.Product) *Store {
	s := &Store{
		products:  make(map[uuid.UUID]*domain.Product),
		processed: make(map[uuid.UUID]string),
	}
	for _, p := range products {
		c := *p
		s.products[p.ID] = &c
	}
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:     s,
		products:  make(map[uuid.UUID]*domain.Product),
		processed: make(map[uuid.UUID]string),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, p := range tx.products {
		s.products[id] = p
	}
	for id, topic := range tx.processed {
		s.processed[id] = topic
	}
	return nil
}

// Product returns a copy of the stored product, or nil if absent.
func (s *Store) Product(id uuid.UUID) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil
	}
	c := *p
	return &c
}

type memTx struct {
	store     *Store
	products  map[uuid.UUID]*domain.Product
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

func (t *memTx) ProductsForUpdate(ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	products := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			products[id] = p
			continue
		}
		if p, ok := t.store.products[id]; ok {
			c := *p
			t.products[id] = &c
			products[id] = &c
		}
	}
	return products, nil
}

func (t *memTx) SaveProduct(p *domain.Product) error {
	c := *p
	t.products[p.ID] = &c
	return nil
}
